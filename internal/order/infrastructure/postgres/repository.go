package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	catalogdomain "github.com/example/storefront/internal/catalog/domain"
	"github.com/example/storefront/internal/order/application"
	"github.com/example/storefront/internal/order/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Place runs fn against a transactional view of the store. The transaction
// commits only when fn returns nil; the deferred rollback is a no-op after a
// successful commit.
func (r *Repository) Place(ctx context.Context, fn func(ctx context.Context, tx application.PlacementTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &placementTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type placementTx struct {
	tx pgx.Tx
}

// ProductForUpdate locks the product row until the enclosing transaction
// ends. Concurrent placements on the same product serialize here, which is
// what prevents overselling.
func (p *placementTx) ProductForUpdate(ctx context.Context, id int64) (catalogdomain.Product, error) {
	var product catalogdomain.Product
	err := p.tx.QueryRow(ctx, `SELECT id, name, description, price, available_count, created_at, updated_at
		FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&product.ID, &product.Name, &product.Description, &product.Price,
			&product.AvailableCount, &product.CreatedAt, &product.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalogdomain.Product{}, &catalogdomain.NotFoundError{ID: id}
	}
	if err != nil {
		return catalogdomain.Product{}, err
	}
	return product, nil
}

func (p *placementTx) DecrementStock(ctx context.Context, id int64, quantity int) error {
	ct, err := p.tx.Exec(ctx, `UPDATE products
		SET available_count = available_count - $2, updated_at = now()
		WHERE id=$1`, id, quantity)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("decrement stock: product %d vanished mid-transaction", id)
	}
	return nil
}

func (p *placementTx) CreateOrder(ctx context.Context, o domain.Order, eventType string, payload []byte, traceparent string) error {
	_, err := p.tx.Exec(ctx, `INSERT INTO orders (id, customer_id, order_total, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		o.ID, o.CustomerID, o.Total, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	// line_no keeps the caller's line order and lets the same product appear
	// on more than one line.
	batch := &pgx.Batch{}
	for i, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, line_no, product_id, quantity, price)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, i+1, item.ProductID, item.Quantity, item.Price)
	}
	if err := p.tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	_, err = p.tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,'pending')`,
		"order", o.ID.String(), eventType, payload, traceparent)
	return err
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `SELECT id, customer_id, order_total, status, created_at, updated_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.CustomerID, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, &domain.NotFoundError{ID: id}
	}
	if err != nil {
		return domain.Order{}, err
	}

	items, err := r.loadItems(ctx, []uuid.UUID{id})
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items[id]
	return o, nil
}

// List returns all orders newest first, each with its resolved line items.
func (r *Repository) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, customer_id, order_total, status, created_at, updated_at
		FROM orders ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	var ids []uuid.UUID
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return []domain.Order{}, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

// loadItems resolves line items for a set of orders in one query, in the
// order the caller submitted them. The product name comes from the catalog
// via LEFT JOIN so a deleted product degrades to an empty name instead of
// dropping the line.
func (r *Repository) loadItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]domain.Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.order_id, i.product_id, COALESCE(p.name, ''), i.quantity, i.price
		FROM order_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.order_id = ANY($1)
		ORDER BY i.order_id, i.line_no`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]domain.Item, len(orderIDs))
	for rows.Next() {
		var orderID uuid.UUID
		var item domain.Item
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], item)
	}
	return items, rows.Err()
}
