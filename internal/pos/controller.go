// Package pos implements the kiosk's point-of-sale flow: the active
// cart, the signed-in customer, checkout, and order history.
package pos

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facepos/internal/models"
	"github.com/your-org/facepos/internal/observability"
	"github.com/your-org/facepos/internal/queue"
	"github.com/your-org/facepos/internal/recommend"
)

// OrderStore persists completed orders and serves order history.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	ListOrders(ctx context.Context, identityID *uuid.UUID) ([]models.Order, error)
}

// SessionCache snapshots kiosk state locally; nil disables caching.
type SessionCache interface {
	SaveIdentity(*models.Identity)
	LoadIdentity() *models.Identity
	ClearIdentity()
	SaveOrders([]models.Order)
	LoadOrders() []models.Order
}

// EventPublisher publishes order events; nil disables publishing.
type EventPublisher interface {
	PublishEvent(ctx context.Context, kind string, data interface{}) error
}

// Controller holds the state of one kiosk. All methods are safe for
// concurrent use.
type Controller struct {
	store    OrderStore
	cache    SessionCache
	producer EventPublisher

	taxRate      float64
	minFrequency int
	topN         int

	// checkoutMu serializes whole checkouts. Holding mu across the store
	// round-trip would freeze every cart read, so checkout instead takes
	// this outer lock for its full duration while mu keeps guarding the
	// short state accesses.
	checkoutMu sync.Mutex

	mu       sync.Mutex
	identity *models.Identity
	lines    []models.CartLine
	history  []models.Order
}

type Options struct {
	TaxRate      float64
	MinFrequency int
	TopN         int
}

func NewController(store OrderStore, cache SessionCache, producer EventPublisher, opts Options) *Controller {
	return &Controller{
		store:        store,
		cache:        cache,
		producer:     producer,
		taxRate:      opts.TaxRate,
		minFrequency: opts.MinFrequency,
		topN:         opts.TopN,
	}
}

// Restore reloads the signed-in identity and order history from the
// local cache, typically on kiosk startup while the backend may still
// be unreachable.
func (c *Controller) Restore() {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ident := c.cache.LoadIdentity(); ident != nil {
		c.identity = ident
		slog.Info("restored cached sign-in", "identity", ident.ID)
	}
	if orders := c.cache.LoadOrders(); orders != nil {
		c.history = orders
	}
}

// SignIn makes ident the active customer and loads their order history.
// A history fetch failure leaves the customer signed in with whatever
// history was cached.
func (c *Controller) SignIn(ctx context.Context, ident *models.Identity) error {
	c.mu.Lock()
	c.identity = ident
	c.mu.Unlock()
	if c.cache != nil {
		c.cache.SaveIdentity(ident)
	}
	return c.RefreshHistory(ctx)
}

// SignOut clears the active customer, the cart, and the loaded history.
func (c *Controller) SignOut() {
	c.mu.Lock()
	c.identity = nil
	c.lines = nil
	c.history = nil
	c.mu.Unlock()
	if c.cache != nil {
		c.cache.ClearIdentity()
		c.cache.SaveOrders(nil)
	}
}

func (c *Controller) Identity() *models.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// AddToCart adds one unit of p, merging into an existing line when the
// product is already in the cart.
func (c *Controller) AddToCart(p models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lines {
		if c.lines[i].ProductID == p.ID {
			c.lines[i].Quantity++
			return
		}
	}
	c.lines = append(c.lines, models.CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Category:  p.Category,
		Quantity:  1,
	})
}

// SetQuantity sets the quantity of a cart line. Zero or negative
// removes the line; an unknown product is a no-op.
func (c *Controller) SetQuantity(productID string, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lines {
		if c.lines[i].ProductID != productID {
			continue
		}
		if quantity <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		} else {
			c.lines[i].Quantity = quantity
		}
		return
	}
}

func (c *Controller) RemoveLine(productID string) {
	c.SetQuantity(productID, 0)
}

func (c *Controller) ClearCart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

func (c *Controller) Lines() []models.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.CartLine(nil), c.lines...)
}

// Total is the pre-tax sum of all line extensions.
func (c *Controller) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total()
}

func (c *Controller) total() float64 {
	var sum float64
	for _, l := range c.lines {
		sum += l.Extension()
	}
	return sum
}

// Tax is the display-only tax amount; it is not folded into the
// persisted order total.
func (c *Controller) Tax() float64 {
	return round2(c.Total() * c.taxRate)
}

func (c *Controller) DisplayTotal() float64 {
	c.mu.Lock()
	total := c.total()
	c.mu.Unlock()
	return round2(total + round2(total*c.taxRate))
}

// LoadBasket replaces the cart with the given lines, used for one-tap
// reorder of a recommended basket.
func (c *Controller) LoadBasket(lines []models.CartLine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append([]models.CartLine(nil), lines...)
}

// Checkout turns the cart into a persisted order. An empty cart is a
// no-op returning (nil, nil). On store failure the cart is left intact
// so the customer can retry. Checkouts are serialized: a double-tapped
// Pay button runs the second checkout against the already-emptied cart
// and gets the no-op, not a duplicate order. Lines added while a
// checkout is in flight stay in the cart; only the snapshotted
// quantities are removed.
func (c *Controller) Checkout(ctx context.Context, paymentMethod string) (*models.Order, error) {
	c.checkoutMu.Lock()
	defer c.checkoutMu.Unlock()

	c.mu.Lock()
	if len(c.lines) == 0 {
		c.mu.Unlock()
		return nil, nil
	}
	snapshot := append([]models.CartLine(nil), c.lines...)
	order := &models.Order{
		ID:            uuid.New(),
		Lines:         snapshot,
		Total:         c.total(),
		PaymentMethod: paymentMethod,
		CreatedAt:     time.Now().UTC(),
	}
	if c.identity != nil {
		id := c.identity.ID
		order.IdentityID = &id
	}
	c.mu.Unlock()

	if err := c.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	c.mu.Lock()
	c.removeSnapshotted(snapshot)
	c.history = append([]models.Order{*order}, c.history...)
	history := append([]models.Order(nil), c.history...)
	c.mu.Unlock()

	if c.cache != nil {
		c.cache.SaveOrders(history)
	}

	observability.OrdersCreated.WithLabelValues(paymentMethod).Inc()
	slog.Info("order created", "order", order.ID, "total", order.Total, "lines", len(order.Lines))

	if c.producer != nil {
		err := c.producer.PublishEvent(ctx, queue.EventOrderCreated, map[string]interface{}{
			"order_id": order.ID, "total": order.Total, "identity_id": order.IdentityID,
		})
		if err != nil {
			slog.Warn("publish order event", "error", err)
		}
	}

	return order, nil
}

// removeSnapshotted subtracts the sold quantities from the cart, so
// additions made while the order was persisting are preserved. Caller
// holds mu.
func (c *Controller) removeSnapshotted(snapshot []models.CartLine) {
	for _, sold := range snapshot {
		for i := range c.lines {
			if c.lines[i].ProductID != sold.ProductID {
				continue
			}
			c.lines[i].Quantity -= sold.Quantity
			if c.lines[i].Quantity <= 0 {
				c.lines = append(c.lines[:i], c.lines[i+1:]...)
			}
			break
		}
	}
}

// RefreshHistory reloads order history from the store: the signed-in
// customer's orders, or all recent orders when no one is signed in.
func (c *Controller) RefreshHistory(ctx context.Context) error {
	c.mu.Lock()
	var identityID *uuid.UUID
	if c.identity != nil {
		id := c.identity.ID
		identityID = &id
	}
	c.mu.Unlock()

	orders, err := c.store.ListOrders(ctx, identityID)
	if err != nil {
		return fmt.Errorf("load order history: %w", err)
	}

	c.mu.Lock()
	c.history = orders
	c.mu.Unlock()
	if c.cache != nil {
		c.cache.SaveOrders(orders)
	}
	return nil
}

func (c *Controller) History() []models.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Order(nil), c.history...)
}

// Recommendations ranks the loaded history's repeat baskets.
func (c *Controller) Recommendations() []recommend.Recommendation {
	c.mu.Lock()
	history := append([]models.Order(nil), c.history...)
	c.mu.Unlock()
	return recommend.Recommend(history, c.minFrequency, c.topN)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
