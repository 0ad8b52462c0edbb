// Package cache keeps a small local snapshot of kiosk state (signed-in
// identity, recent order history) in an embedded SQLite database so a
// restarted kiosk picks up where it left off before the backend is even
// reachable. Every operation is best effort: failures are logged and
// swallowed, never surfaced to the caller.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/your-org/facepos/internal/models"
)

const (
	keyIdentity = "current_identity"
	keyOrders   = "order_history"
)

type Cache struct {
	db *sql.DB
}

func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) SaveIdentity(ident *models.Identity) {
	c.put(keyIdentity, ident)
}

func (c *Cache) LoadIdentity() *models.Identity {
	var ident models.Identity
	if !c.get(keyIdentity, &ident) {
		return nil
	}
	return &ident
}

func (c *Cache) ClearIdentity() {
	if _, err := c.db.Exec(`DELETE FROM kv WHERE key = ?`, keyIdentity); err != nil {
		slog.Warn("cache clear", "key", keyIdentity, "error", err)
	}
}

func (c *Cache) SaveOrders(orders []models.Order) {
	c.put(keyOrders, orders)
}

func (c *Cache) LoadOrders() []models.Order {
	var orders []models.Order
	if !c.get(keyOrders, &orders) {
		return nil
	}
	return orders
}

func (c *Cache) put(key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("cache encode", "key", key, "error", err)
		return
	}
	_, err = c.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, data)
	if err != nil {
		slog.Warn("cache write", "key", key, "error", err)
	}
}

func (c *Cache) get(key string, out interface{}) bool {
	var data []byte
	err := c.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		slog.Warn("cache read", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		slog.Warn("cache decode", "key", key, "error", err)
		return false
	}
	return true
}
