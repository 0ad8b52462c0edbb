// Package catalog holds the product list the kiosk sells. A built-in
// coffee-shop menu ships as the default; operators can replace it with
// a YAML file.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/your-org/facepos/internal/models"
)

type Catalog struct {
	products []models.Product
	byID     map[string]models.Product
}

// Load reads a product catalog from a YAML file. An empty path returns
// the built-in default menu.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return New(defaultProducts()), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var doc struct {
		Products []models.Product `yaml:"products"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Products) == 0 {
		return nil, fmt.Errorf("catalog %s lists no products", path)
	}
	return New(doc.Products), nil
}

func New(products []models.Product) *Catalog {
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &Catalog{products: products, byID: byID}
}

// Products returns the full menu in display order.
func (c *Catalog) Products() []models.Product {
	return append([]models.Product(nil), c.products...)
}

func (c *Catalog) Get(id string) (models.Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

func defaultProducts() []models.Product {
	return []models.Product{
		{ID: "espresso", Name: "Espresso", Price: 2.50, Category: "drinks"},
		{ID: "cappuccino", Name: "Cappuccino", Price: 3.75, Category: "drinks"},
		{ID: "latte", Name: "Latte", Price: 4.00, Category: "drinks"},
		{ID: "americano", Name: "Americano", Price: 3.00, Category: "drinks"},
		{ID: "mocha", Name: "Mocha", Price: 4.50, Category: "drinks"},
		{ID: "flat-white", Name: "Flat White", Price: 4.25, Category: "drinks"},
		{ID: "cold-brew", Name: "Cold Brew", Price: 4.00, Category: "drinks"},
		{ID: "macchiato", Name: "Macchiato", Price: 3.50, Category: "drinks"},
		{ID: "croissant", Name: "Croissant", Price: 3.50, Category: "food"},
		{ID: "blueberry-muffin", Name: "Blueberry Muffin", Price: 3.00, Category: "food"},
		{ID: "chocolate-cookie", Name: "Chocolate Cookie", Price: 2.50, Category: "food"},
		{ID: "bagel", Name: "Bagel", Price: 2.75, Category: "food"},
		{ID: "cinnamon-roll", Name: "Cinnamon Roll", Price: 4.00, Category: "food"},
		{ID: "banana-bread", Name: "Banana Bread", Price: 3.25, Category: "food"},
		{ID: "orange-juice", Name: "Orange Juice", Price: 3.50, Category: "drinks"},
		{ID: "bottled-water", Name: "Bottled Water", Price: 1.50, Category: "drinks"},
	}
}
