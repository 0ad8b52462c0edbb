package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facepos/internal/catalog"
	"github.com/your-org/facepos/internal/models"
	"github.com/your-org/facepos/internal/pos"
	"github.com/your-org/facepos/internal/storage"
	"github.com/your-org/facepos/pkg/dto"
)

type POSHandler struct {
	catalog    *catalog.Catalog
	controller *pos.Controller
	db         *storage.PostgresStore
}

func NewPOSHandler(cat *catalog.Catalog, controller *pos.Controller, db *storage.PostgresStore) *POSHandler {
	return &POSHandler{catalog: cat, controller: controller, db: db}
}

func (h *POSHandler) Products(c *gin.Context) {
	products := h.catalog.Products()
	c.JSON(http.StatusOK, gin.H{"products": products, "total": len(products)})
}

func (h *POSHandler) Cart(c *gin.Context) {
	c.JSON(http.StatusOK, h.cartResponse())
}

func (h *POSHandler) AddToCart(c *gin.Context) {
	var req dto.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, ok := h.catalog.Get(req.ProductID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown product"})
		return
	}

	h.controller.AddToCart(product)
	c.JSON(http.StatusOK, h.cartResponse())
}

func (h *POSHandler) SetQuantity(c *gin.Context) {
	var req dto.SetQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.controller.SetQuantity(c.Param("productId"), req.Quantity)
	c.JSON(http.StatusOK, h.cartResponse())
}

func (h *POSHandler) ClearCart(c *gin.Context) {
	h.controller.ClearCart()
	c.JSON(http.StatusOK, h.cartResponse())
}

// Checkout completes the sale. An empty cart returns 204: nothing was
// sold, nothing was stored.
func (h *POSHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.controller.Checkout(c.Request.Context(), req.PaymentMethod)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if order == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusCreated, orderResponse(order))
}

// Orders lists order history: the signed-in customer's when identity_id
// is given, all recent orders otherwise.
func (h *POSHandler) Orders(c *gin.Context) {
	var identityID *uuid.UUID
	if idStr := c.Query("identity_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity_id"})
			return
		}
		identityID = &id
	}

	orders, err := h.db.ListOrders(c.Request.Context(), identityID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, orderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, gin.H{"orders": resp, "total": len(resp)})
}

func (h *POSHandler) Recommendations(c *gin.Context) {
	recs := h.controller.Recommendations()
	resp := make([]dto.RecommendationResponse, 0, len(recs))
	for _, r := range recs {
		resp = append(resp, dto.RecommendationResponse{
			Lines:       r.Lines,
			Frequency:   r.Frequency,
			LastOrdered: r.LastOrdered.Format("2006-01-02T15:04:05Z"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": resp, "total": len(resp)})
}

// Reorder loads a past basket into the cart in one tap, replacing the
// current contents.
func (h *POSHandler) Reorder(c *gin.Context) {
	var req struct {
		Lines []models.CartLine `json:"lines" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.controller.LoadBasket(req.Lines)
	c.JSON(http.StatusOK, h.cartResponse())
}

// SignIn binds a recognized or selected identity to the kiosk session.
func (h *POSHandler) SignIn(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	ident, err := h.db.GetIdentity(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ident == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
		return
	}

	if err := h.controller.SignIn(c.Request.Context(), ident); err != nil {
		// Signed in, history just did not load.
		c.JSON(http.StatusOK, gin.H{"identity": identityResponse(ident), "history_error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": identityResponse(ident)})
}

func (h *POSHandler) SignOut(c *gin.Context) {
	h.controller.SignOut()
	c.JSON(http.StatusOK, gin.H{"status": "signed out"})
}

func (h *POSHandler) Session(c *gin.Context) {
	ident := h.controller.Identity()
	if ident == nil {
		c.JSON(http.StatusOK, gin.H{"identity": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": identityResponse(ident)})
}

func (h *POSHandler) cartResponse() dto.CartResponse {
	return dto.CartResponse{
		Lines:        h.controller.Lines(),
		Total:        h.controller.Total(),
		Tax:          h.controller.Tax(),
		DisplayTotal: h.controller.DisplayTotal(),
	}
}

func orderResponse(o *models.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:            o.ID,
		Lines:         o.Lines,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		IdentityID:    o.IdentityID,
		CreatedAt:     o.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
