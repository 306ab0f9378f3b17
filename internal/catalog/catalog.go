// Package catalog provides the fixed item catalog for the marketplace.
// Items are identified by a closed enum so free-text shop dialogue resolves
// to a known item or fails loudly, never to a misspelled string key.
package catalog

import (
	"fmt"
	"strings"
)

// ItemType is a unique identifier for a catalog item.
type ItemType uint8

const (
	ItemBulb ItemType = iota
	ItemWire
	ItemResistor
	ItemCapacitor
	ItemBattery
)

// NumItems is the total number of item types.
const NumItems = 5

// Item is one tradeable good. Immutable after startup.
type Item struct {
	Type       ItemType `json:"type"`
	Name       string   `json:"name"`
	BasePrice  int      `json:"base_price"` // Rupees, production cost anchor
	Volatility float64  `json:"volatility"` // Price noise amplitude, in (0,1)
}

// Catalog is the fixed set of tradeable items.
type Catalog struct {
	items  [NumItems]Item
	byName map[string]ItemType
}

// Default returns the stock electronics catalog.
func Default() *Catalog {
	c, err := New([]Item{
		{Type: ItemBulb, Name: "Bulb", BasePrice: 50, Volatility: 0.15},
		{Type: ItemWire, Name: "Wire", BasePrice: 20, Volatility: 0.10},
		{Type: ItemResistor, Name: "Resistor", BasePrice: 10, Volatility: 0.10},
		{Type: ItemCapacitor, Name: "Capacitor", BasePrice: 30, Volatility: 0.12},
		{Type: ItemBattery, Name: "Battery", BasePrice: 100, Volatility: 0.20},
	})
	if err != nil {
		// The stock catalog is compile-time data; a failure here is a programming error.
		panic(err)
	}
	return c
}

// New builds a catalog from an item list. Every ItemType must appear exactly
// once with a positive base price and volatility in (0,1).
func New(items []Item) (*Catalog, error) {
	if len(items) != NumItems {
		return nil, fmt.Errorf("catalog needs %d items, got %d", NumItems, len(items))
	}

	c := &Catalog{byName: make(map[string]ItemType, NumItems)}
	seen := [NumItems]bool{}
	for _, it := range items {
		if int(it.Type) >= NumItems {
			return nil, fmt.Errorf("item %q: unknown type %d", it.Name, it.Type)
		}
		if seen[it.Type] {
			return nil, fmt.Errorf("item %q: duplicate type %d", it.Name, it.Type)
		}
		if it.Name == "" {
			return nil, fmt.Errorf("item type %d: empty name", it.Type)
		}
		if it.BasePrice < 1 {
			return nil, fmt.Errorf("item %q: base price must be positive, got %d", it.Name, it.BasePrice)
		}
		if it.Volatility <= 0 || it.Volatility >= 1 {
			return nil, fmt.Errorf("item %q: volatility must be in (0,1), got %g", it.Name, it.Volatility)
		}
		seen[it.Type] = true
		c.items[it.Type] = it
		c.byName[strings.ToLower(it.Name)] = it.Type
	}
	return c, nil
}

// Get returns the item definition for a type.
func (c *Catalog) Get(t ItemType) Item {
	return c.items[t]
}

// Items returns all items in enum order.
func (c *Catalog) Items() []Item {
	out := make([]Item, NumItems)
	copy(out, c.items[:])
	return out
}

// Lookup resolves a free-text token to an item type. Matching is
// case-insensitive and tolerates plural forms ("wires" → Wire,
// "batteries" → Battery).
func (c *Catalog) Lookup(token string) (ItemType, bool) {
	key := strings.ToLower(strings.TrimSpace(token))
	if t, ok := c.byName[key]; ok {
		return t, true
	}
	if strings.HasSuffix(key, "ies") {
		if t, ok := c.byName[strings.TrimSuffix(key, "ies")+"y"]; ok {
			return t, true
		}
	}
	if strings.HasSuffix(key, "s") {
		if t, ok := c.byName[strings.TrimSuffix(key, "s")]; ok {
			return t, true
		}
	}
	return 0, false
}

// Plural returns the display form of an item name for a quantity.
func Plural(name string, qty int) string {
	if qty == 1 {
		return name
	}
	if strings.HasSuffix(name, "y") {
		return strings.TrimSuffix(name, "y") + "ies"
	}
	return name + "s"
}

// Names returns all item names in enum order, for "valid items" replies.
func (c *Catalog) Names() []string {
	out := make([]string, NumItems)
	for i, it := range c.items {
		out[i] = it.Name
	}
	return out
}
