package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Product describes what a purchasable item grants.
type Product struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Credits      int64  `yaml:"credits"`
	Subscription bool   `yaml:"subscription"`
}

// Catalog maps product identifiers reported by the payment processor to grants.
type Catalog struct {
	products map[string]Product
}

type catalogFile struct {
	Products []Product `yaml:"products"`
}

// DefaultCatalog is used when no catalog file is configured.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog([]Product{
		{ID: "image-3pack", Name: "3 image exports", Credits: 3},
		{ID: "monthly-subscription", Name: "Unlimited monthly", Subscription: true},
	})
	return c
}

// NewCatalog validates products and builds a Catalog.
func NewCatalog(products []Product) (*Catalog, error) {
	c := &Catalog{products: make(map[string]Product, len(products))}
	for _, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog product without id")
		}
		if _, dup := c.products[p.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog product %q", p.ID)
		}
		if p.Credits < 0 {
			return nil, fmt.Errorf("catalog product %q has negative credits", p.ID)
		}
		if p.Credits == 0 && !p.Subscription {
			return nil, fmt.Errorf("catalog product %q grants nothing", p.ID)
		}
		c.products[p.ID] = p
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog. An empty path yields DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return NewCatalog(f.Products)
}

// Lookup returns the product registered under id.
func (c *Catalog) Lookup(id string) (Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}
