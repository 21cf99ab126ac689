package application

import (
	"context"

	"github.com/example/storefront/internal/catalog/domain"
)

type ProductRepository interface {
	Create(ctx context.Context, p domain.Product) (domain.Product, error)
	List(ctx context.Context, offset, limit int) ([]domain.Product, int, error)
	Get(ctx context.Context, id int64) (domain.Product, error)
	Replace(ctx context.Context, id int64, p domain.Product) (domain.Product, error)
	Patch(ctx context.Context, id int64, patch domain.Patch) (domain.Product, error)
	Delete(ctx context.Context, id int64) error
	Quantities(ctx context.Context, ids []int64) ([]domain.Quantity, error)
}
