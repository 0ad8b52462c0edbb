package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is one sellable catalog item.
type Product struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Price    float64 `json:"price" yaml:"price"`
	Category string  `json:"category" yaml:"category"`
	ImageURL string  `json:"image_url,omitempty" yaml:"image_url"`
}

// CartLine is one product in a cart or order. Quantity is always >= 1;
// a quantity reaching zero removes the line instead.
type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Category  string  `json:"category,omitempty"`
}

// Extension returns the line total.
func (l CartLine) Extension() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// Order is an immutable snapshot created at checkout. Total excludes the
// display-time tax surcharge. IdentityID is nil for guest checkouts.
type Order struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Lines         []CartLine `json:"lines" db:"lines"`
	Total         float64    `json:"total" db:"total"`
	PaymentMethod string     `json:"payment_method" db:"payment_method"`
	IdentityID    *uuid.UUID `json:"identity_id,omitempty" db:"identity_id"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
