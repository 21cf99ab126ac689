package domain

import (
	"github.com/shopspring/decimal"
)

// OrderPlaced is written to the outbox inside the placement transaction and
// published to Kafka by the relay.
type OrderPlaced struct {
	OrderID    string          `json:"orderId"`
	CustomerID string          `json:"customerId"`
	Total      decimal.Decimal `json:"total"`
	Items      []PlacedItem    `json:"items"`
}

type PlacedItem struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// NewOrderPlaced projects an order into its outbox event payload.
func NewOrderPlaced(o Order) OrderPlaced {
	items := make([]PlacedItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, PlacedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return OrderPlaced{
		OrderID:    o.ID.String(),
		CustomerID: o.CustomerID.String(),
		Total:      o.Total,
		Items:      items,
	}
}
