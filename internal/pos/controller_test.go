package pos

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facepos/internal/models"
)

type fakeOrderStore struct {
	createErr   error
	listErr     error
	createDelay time.Duration
	onCreate    func() // runs during CreateOrder, before the append

	mu      sync.Mutex
	created []models.Order
	orders  []models.Order
}

func (s *fakeOrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	if s.createDelay > 0 {
		time.Sleep(s.createDelay)
	}
	if s.onCreate != nil {
		s.onCreate()
	}
	s.mu.Lock()
	s.created = append(s.created, *order)
	s.mu.Unlock()
	return nil
}

func (s *fakeOrderStore) createdOrders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Order(nil), s.created...)
}

func (s *fakeOrderStore) ListOrders(ctx context.Context, identityID *uuid.UUID) ([]models.Order, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if identityID == nil {
		return s.orders, nil
	}
	var out []models.Order
	for _, o := range s.orders {
		if o.IdentityID != nil && *o.IdentityID == *identityID {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeCache struct {
	identity *models.Identity
	orders   []models.Order
}

func (c *fakeCache) SaveIdentity(ident *models.Identity) { c.identity = ident }
func (c *fakeCache) LoadIdentity() *models.Identity      { return c.identity }
func (c *fakeCache) ClearIdentity()                      { c.identity = nil }
func (c *fakeCache) SaveOrders(orders []models.Order)    { c.orders = orders }
func (c *fakeCache) LoadOrders() []models.Order          { return c.orders }

func product(id string, price float64) models.Product {
	return models.Product{ID: id, Name: id, Price: price, Category: "drinks"}
}

func newTestController(store *fakeOrderStore, cache SessionCache) *Controller {
	return NewController(store, cache, nil, Options{TaxRate: 0.08, MinFrequency: 2, TopN: 3})
}

func TestAddToCartMergesLines(t *testing.T) {
	c := newTestController(&fakeOrderStore{}, nil)
	latte := product("latte", 4.00)

	c.AddToCart(latte)
	c.AddToCart(latte)
	c.AddToCart(product("espresso", 2.50))

	lines := c.Lines()
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].ProductID != "latte" || lines[0].Quantity != 2 {
		t.Errorf("first line = %+v, want latte x2", lines[0])
	}
	if got, want := c.Total(), 10.50; math.Abs(got-want) > 1e-9 {
		t.Errorf("total = %v, want %v", got, want)
	}
}

func TestSetQuantity(t *testing.T) {
	c := newTestController(&fakeOrderStore{}, nil)
	c.AddToCart(product("latte", 4.00))

	c.SetQuantity("latte", 3)
	if lines := c.Lines(); lines[0].Quantity != 3 {
		t.Errorf("quantity = %d, want 3", lines[0].Quantity)
	}

	// Unknown product is a no-op.
	c.SetQuantity("nothing", 5)
	if len(c.Lines()) != 1 {
		t.Errorf("unknown product changed the cart")
	}

	// Zero removes the line.
	c.SetQuantity("latte", 0)
	if len(c.Lines()) != 0 {
		t.Errorf("zero quantity did not remove the line")
	}
}

func TestTaxIsDisplayOnly(t *testing.T) {
	c := newTestController(&fakeOrderStore{}, nil)
	c.AddToCart(product("latte", 10.00))

	if got := c.Tax(); math.Abs(got-0.80) > 1e-9 {
		t.Errorf("tax = %v, want 0.80", got)
	}
	if got := c.DisplayTotal(); math.Abs(got-10.80) > 1e-9 {
		t.Errorf("display total = %v, want 10.80", got)
	}

	order, err := c.Checkout(context.Background(), "card")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if math.Abs(order.Total-10.00) > 1e-9 {
		t.Errorf("persisted total = %v, want the pre-tax 10.00", order.Total)
	}
}

func TestCheckoutEmptyCartIsNoOp(t *testing.T) {
	store := &fakeOrderStore{}
	c := newTestController(store, nil)

	order, err := c.Checkout(context.Background(), "card")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if order != nil {
		t.Errorf("got order %v, want nil", order)
	}
	if len(store.created) != 0 {
		t.Errorf("empty checkout stored %d orders", len(store.created))
	}
}

func TestCheckoutClearsCartAndPrependsHistory(t *testing.T) {
	store := &fakeOrderStore{}
	cache := &fakeCache{}
	c := newTestController(store, cache)

	c.AddToCart(product("latte", 4.00))
	first, err := c.Checkout(context.Background(), "card")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if len(c.Lines()) != 0 {
		t.Fatalf("cart not cleared after checkout")
	}

	c.AddToCart(product("espresso", 2.50))
	second, err := c.Checkout(context.Background(), "cash")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	history := c.History()
	if len(history) != 2 {
		t.Fatalf("history has %d orders, want 2", len(history))
	}
	if history[0].ID != second.ID || history[1].ID != first.ID {
		t.Errorf("history not most-recent-first")
	}
	if len(cache.orders) != 2 {
		t.Errorf("cache holds %d orders, want 2", len(cache.orders))
	}
}

func TestCheckoutStoreFailureKeepsCart(t *testing.T) {
	store := &fakeOrderStore{createErr: errors.New("connection refused")}
	c := newTestController(store, nil)

	c.AddToCart(product("latte", 4.00))
	if _, err := c.Checkout(context.Background(), "card"); err == nil {
		t.Fatal("expected checkout error")
	}
	if len(c.Lines()) != 1 {
		t.Errorf("cart lost after failed checkout")
	}
	if len(c.History()) != 0 {
		t.Errorf("failed order entered history")
	}
}

func TestCheckoutConcurrentDoubleTap(t *testing.T) {
	store := &fakeOrderStore{createDelay: 50 * time.Millisecond}
	c := newTestController(store, nil)
	c.AddToCart(product("latte", 4.00))

	var wg sync.WaitGroup
	results := make([]*models.Order, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, err := c.Checkout(context.Background(), "card")
			if err != nil {
				t.Errorf("Checkout: %v", err)
			}
			results[i] = order
		}(i)
	}
	wg.Wait()

	if got := store.createdOrders(); len(got) != 1 {
		t.Fatalf("one cart produced %d persisted orders, want 1", len(got))
	}
	committed := 0
	for _, order := range results {
		if order != nil {
			committed++
		}
	}
	if committed != 1 {
		t.Errorf("%d checkouts returned an order, want 1 order and 1 no-op", committed)
	}
	if len(c.Lines()) != 0 {
		t.Errorf("cart not empty after concurrent checkouts")
	}
}

func TestCheckoutKeepsLinesAddedDuringPersist(t *testing.T) {
	store := &fakeOrderStore{}
	c := newTestController(store, nil)
	// The cookie lands in the cart while the latte's order is still being
	// persisted.
	store.onCreate = func() {
		c.AddToCart(product("chocolate-cookie", 2.50))
	}

	c.AddToCart(product("latte", 4.00))
	order, err := c.Checkout(context.Background(), "card")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if len(order.Lines) != 1 || order.Lines[0].ProductID != "latte" {
		t.Fatalf("order lines = %+v, want the snapshot only", order.Lines)
	}

	lines := c.Lines()
	if len(lines) != 1 || lines[0].ProductID != "chocolate-cookie" {
		t.Fatalf("cart = %+v, want the mid-checkout addition to survive", lines)
	}
}

func TestCheckoutGuestOrderHasNoIdentity(t *testing.T) {
	store := &fakeOrderStore{}
	c := newTestController(store, nil)

	c.AddToCart(product("latte", 4.00))
	order, err := c.Checkout(context.Background(), "cash")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if order.IdentityID != nil {
		t.Errorf("guest order carries identity %v", order.IdentityID)
	}
}

func TestSignInLoadsHistory(t *testing.T) {
	id := uuid.New()
	store := &fakeOrderStore{orders: []models.Order{
		{ID: uuid.New(), IdentityID: &id, CreatedAt: time.Now()},
		{ID: uuid.New(), CreatedAt: time.Now()}, // someone else's
	}}
	cache := &fakeCache{}
	c := newTestController(store, cache)

	ident := &models.Identity{ID: id, DisplayName: "Alice"}
	if err := c.SignIn(context.Background(), ident); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if len(c.History()) != 1 {
		t.Fatalf("history has %d orders, want only the customer's", len(c.History()))
	}
	if cache.identity == nil || cache.identity.ID != id {
		t.Errorf("identity not cached")
	}

	c.SignOut()
	if c.Identity() != nil {
		t.Errorf("identity survives sign-out")
	}
	if cache.identity != nil {
		t.Errorf("cached identity survives sign-out")
	}
}

func TestSignInHistoryFailureStillSignsIn(t *testing.T) {
	store := &fakeOrderStore{listErr: errors.New("timeout")}
	c := newTestController(store, nil)

	ident := &models.Identity{ID: uuid.New(), DisplayName: "Alice"}
	if err := c.SignIn(context.Background(), ident); err == nil {
		t.Fatal("expected history error")
	}
	if c.Identity() == nil {
		t.Errorf("customer not signed in after history failure")
	}
}

func TestRestoreFromCache(t *testing.T) {
	ident := &models.Identity{ID: uuid.New(), DisplayName: "Alice"}
	cache := &fakeCache{identity: ident, orders: []models.Order{{ID: uuid.New()}}}
	c := newTestController(&fakeOrderStore{}, cache)

	c.Restore()
	if c.Identity() == nil || c.Identity().ID != ident.ID {
		t.Errorf("identity not restored from cache")
	}
	if len(c.History()) != 1 {
		t.Errorf("history not restored from cache")
	}
}

func TestLoadBasketReplacesCart(t *testing.T) {
	c := newTestController(&fakeOrderStore{}, nil)
	c.AddToCart(product("latte", 4.00))

	c.LoadBasket([]models.CartLine{
		{ProductID: "mocha", Name: "Mocha", UnitPrice: 4.50, Quantity: 2},
	})

	lines := c.Lines()
	if len(lines) != 1 || lines[0].ProductID != "mocha" || lines[0].Quantity != 2 {
		t.Fatalf("cart = %+v, want the loaded basket only", lines)
	}
}
