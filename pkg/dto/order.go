package dto

import (
	"github.com/google/uuid"

	"github.com/your-org/facepos/internal/models"
)

type AddToCartRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// CartResponse carries the running cart plus its display totals. Tax is
// a presentation surcharge; the stored order total never includes it.
type CartResponse struct {
	Lines        []models.CartLine `json:"lines"`
	Total        float64           `json:"total"`
	Tax          float64           `json:"tax"`
	DisplayTotal float64           `json:"display_total"`
}

type CheckoutRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
}

type OrderResponse struct {
	ID            uuid.UUID         `json:"id"`
	Lines         []models.CartLine `json:"lines"`
	Total         float64           `json:"total"`
	PaymentMethod string            `json:"payment_method"`
	IdentityID    *uuid.UUID        `json:"identity_id,omitempty"`
	CreatedAt     string            `json:"created_at"`
}

type RecommendationResponse struct {
	Lines       []models.CartLine `json:"lines"`
	Frequency   int               `json:"frequency"`
	LastOrdered string            `json:"last_ordered"`
}
