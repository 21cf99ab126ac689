package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog record. AvailableCount is the authoritative stock
// level and must never go below zero.
type Product struct {
	ID             int64
	Name           string
	Description    string
	Price          decimal.Decimal
	AvailableCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Patch carries a partial product update. Nil fields are left untouched.
type Patch struct {
	Name           *string
	Description    *string
	Price          *decimal.Decimal
	AvailableCount *int
}

// Quantity is the per-product stock answer for a check-quantities lookup.
type Quantity struct {
	ID             int64
	AvailableCount int
}

type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Product with ID %d not found", e.ID)
}

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
