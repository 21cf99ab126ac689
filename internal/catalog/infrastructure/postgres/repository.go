package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/storefront/internal/catalog/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = "id, name, description, price, available_count, created_at, updated_at"

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO products (name, description, price, available_count)
		VALUES ($1,$2,$3,$4)
		RETURNING `+productColumns,
		p.Name, p.Description, p.Price, p.AvailableCount)
	return scanProduct(row)
}

// List returns one page of the catalog, newest first, together with the total
// product count. Both reads run in one read-only transaction so the count
// matches the page.
func (r *Repository) List(ctx context.Context, offset, limit int) ([]domain.Product, int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `SELECT `+productColumns+` FROM products
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		products = append(products, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, &domain.NotFoundError{ID: id}
	}
	return p, err
}

func (r *Repository) Replace(ctx context.Context, id int64, p domain.Product) (domain.Product, error) {
	row := r.pool.QueryRow(ctx, `UPDATE products
		SET name=$2, description=$3, price=$4, available_count=$5, updated_at=now()
		WHERE id=$1
		RETURNING `+productColumns,
		id, p.Name, p.Description, p.Price, p.AvailableCount)
	updated, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, &domain.NotFoundError{ID: id}
	}
	return updated, err
}

// Patch updates only the fields present in the patch. An empty patch still
// touches updated_at, matching a full-replace with identical values.
func (r *Repository) Patch(ctx context.Context, id int64, patch domain.Patch) (domain.Product, error) {
	sets := []string{"updated_at=now()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.AvailableCount != nil {
		add("available_count", *patch.AvailableCount)
	}

	query := fmt.Sprintf(`UPDATE products SET %s WHERE id=$1 RETURNING %s`,
		strings.Join(sets, ", "), productColumns)
	patched, err := scanProduct(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, &domain.NotFoundError{ID: id}
	}
	return patched, err
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &domain.NotFoundError{ID: id}
	}
	r.log.Info("product deleted", "product_id", id)
	return nil
}

func (r *Repository) Quantities(ctx context.Context, ids []int64) ([]domain.Quantity, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, available_count FROM products WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quantities := make([]domain.Quantity, 0, len(ids))
	for rows.Next() {
		var q domain.Quantity
		if err := rows.Scan(&q.ID, &q.AvailableCount); err != nil {
			return nil, err
		}
		quantities = append(quantities, q)
	}
	return quantities, rows.Err()
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.AvailableCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}
