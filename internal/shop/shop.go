// Package shop provides the immutable shop registry.
// Each shop negotiates independently but reads the same shared market.
package shop

import (
	"fmt"

	"github.com/talgya/electro-bazaar/internal/catalog"
)

// ID identifies a shop.
type ID uint8

// Shop is one shopkeeper's fixed configuration.
type Shop struct {
	ID           ID               `json:"id"`
	Name         string           `json:"name"`
	Specialty    catalog.ItemType `json:"specialty"`     // Item sold at a discount
	DiscountRate float64          `json:"discount_rate"` // Specialty price multiplier, in (0,1)
}

// Registry holds all configured shops, keyed by ID.
type Registry struct {
	shops map[ID]Shop
	order []ID
}

// Default returns the stock three-shop registry.
func Default() *Registry {
	r, err := New([]Shop{
		{ID: 1, Name: "ElectroMart", Specialty: catalog.ItemBulb, DiscountRate: 0.95},
		{ID: 2, Name: "CircuitWorld", Specialty: catalog.ItemCapacitor, DiscountRate: 0.92},
		{ID: 3, Name: "WireHub", Specialty: catalog.ItemWire, DiscountRate: 0.90},
	})
	if err != nil {
		panic(err)
	}
	return r
}

// New builds a registry from a shop list.
func New(shops []Shop) (*Registry, error) {
	if len(shops) == 0 {
		return nil, fmt.Errorf("registry needs at least one shop")
	}
	r := &Registry{shops: make(map[ID]Shop, len(shops))}
	for _, s := range shops {
		if s.Name == "" {
			return nil, fmt.Errorf("shop %d: empty name", s.ID)
		}
		if int(s.Specialty) >= catalog.NumItems {
			return nil, fmt.Errorf("shop %q: unknown specialty item %d", s.Name, s.Specialty)
		}
		if s.DiscountRate <= 0 || s.DiscountRate >= 1 {
			return nil, fmt.Errorf("shop %q: discount rate must be in (0,1), got %g", s.Name, s.DiscountRate)
		}
		if _, dup := r.shops[s.ID]; dup {
			return nil, fmt.Errorf("shop %q: duplicate id %d", s.Name, s.ID)
		}
		r.shops[s.ID] = s
		r.order = append(r.order, s.ID)
	}
	return r, nil
}

// Get returns the shop for an ID.
func (r *Registry) Get(id ID) (Shop, bool) {
	s, ok := r.shops[id]
	return s, ok
}

// All returns shops in configuration order.
func (r *Registry) All() []Shop {
	out := make([]Shop, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.shops[id])
	}
	return out
}

// Competitors returns the names of every shop except the given one.
func (r *Registry) Competitors(id ID) []string {
	var names []string
	for _, other := range r.order {
		if other != id {
			names = append(names, r.shops[other].Name)
		}
	}
	return names
}
