package application

import (
	"context"

	catalog "github.com/example/storefront/internal/catalog/domain"
	"github.com/example/storefront/internal/order/domain"
	"github.com/google/uuid"
)

// PlacementTx is the transactional view of the store an order placement runs
// against. Every method executes inside the same database transaction; if the
// placement callback returns an error, none of the writes survive.
type PlacementTx interface {
	// ProductForUpdate fetches a product row and locks it against concurrent
	// placements until the transaction ends.
	ProductForUpdate(ctx context.Context, id int64) (catalog.Product, error)
	// DecrementStock reduces available_count by quantity.
	DecrementStock(ctx context.Context, id int64, quantity int) error
	// CreateOrder persists the order header, all line items, and the outbox
	// event as a single write.
	CreateOrder(ctx context.Context, o domain.Order, eventType string, payload []byte, traceparent string) error
}

type OrderRepository interface {
	// Place runs fn inside one transaction, committing on nil and rolling
	// back on error.
	Place(ctx context.Context, fn func(ctx context.Context, tx PlacementTx) error) error
	Get(ctx context.Context, id uuid.UUID) (domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}
