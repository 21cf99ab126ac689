package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusDispatched OrderStatus = "DISPATCHED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

type Order struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	Items      []Item
	Total      decimal.Decimal
	Status     OrderStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Item is one order line. Price is the product's unit price captured at
// placement time; later catalog edits never change it.
type Item struct {
	ProductID int64
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// NewOrder builds a pending order and computes its total from the captured
// per-line prices.
func NewOrder(customerID uuid.UUID, items []Item) Order {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	now := time.Now().UTC()
	return Order{
		ID:         uuid.New(),
		CustomerID: customerID,
		Items:      items,
		Total:      total,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Order with ID %s not found", e.ID)
}

type InsufficientStockError struct {
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for product %q. Available: %d, Requested: %d",
		e.ProductName, e.Available, e.Requested)
}
