package application

import (
	"context"
	"encoding/json"
	"fmt"

	catalogdomain "github.com/example/storefront/internal/catalog/domain"
	"github.com/example/storefront/internal/order/domain"
	"github.com/google/uuid"
)

const orderPlacedEvent = "OrderPlaced"

type Line struct {
	ProductID int64
	Quantity  int
}

type Service struct {
	repo OrderRepository
}

func NewService(repo OrderRepository) *Service {
	return &Service{repo: repo}
}

// PlaceOrder validates and persists an order in one transaction: for each
// line, in caller order, it locks the product row, checks stock, captures the
// current price, and decrements available_count. The order header, its items,
// and the OrderPlaced outbox event commit together; any failure rolls back
// every decrement.
func (s *Service) PlaceOrder(ctx context.Context, customerID uuid.UUID, lines []Line, traceparent string) (domain.Order, error) {
	if len(lines) == 0 {
		return domain.Order{}, &catalogdomain.ValidationError{Msg: "order must contain at least one product"}
	}
	for _, line := range lines {
		if line.ProductID <= 0 {
			return domain.Order{}, &catalogdomain.ValidationError{Msg: fmt.Sprintf("invalid product id %d", line.ProductID)}
		}
		if line.Quantity <= 0 {
			return domain.Order{}, &catalogdomain.ValidationError{Msg: fmt.Sprintf("quantity for product %d must be positive", line.ProductID)}
		}
	}

	var placed domain.Order
	err := s.repo.Place(ctx, func(ctx context.Context, tx PlacementTx) error {
		items := make([]domain.Item, 0, len(lines))
		for _, line := range lines {
			p, err := tx.ProductForUpdate(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if p.AvailableCount < line.Quantity {
				return &domain.InsufficientStockError{
					ProductName: p.Name,
					Available:   p.AvailableCount,
					Requested:   line.Quantity,
				}
			}
			items = append(items, domain.Item{
				ProductID: p.ID,
				Name:      p.Name,
				Quantity:  line.Quantity,
				Price:     p.Price,
			})
			if err := tx.DecrementStock(ctx, p.ID, line.Quantity); err != nil {
				return err
			}
		}

		o := domain.NewOrder(customerID, items)
		payload, err := json.Marshal(domain.NewOrderPlaced(o))
		if err != nil {
			return err
		}
		if err := tx.CreateOrder(ctx, o, orderPlacedEvent, payload, traceparent); err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return placed, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns all orders, newest first, with resolved line items.
func (s *Service) List(ctx context.Context) ([]domain.Order, error) {
	return s.repo.List(ctx)
}
