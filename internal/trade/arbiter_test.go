package trade

import (
	"testing"

	"github.com/talgya/electro-bazaar/internal/catalog"
	"github.com/talgya/electro-bazaar/internal/entropy"
)

// Fixed entropy pins the flexibility draw: Fixed(0) selects the low end of
// the band, Fixed(1) the high end.

func buyIntent(item catalog.ItemType, qty, price int) TradeIntent {
	return TradeIntent{Direction: Buy, Item: item, Quantity: qty, UnitPrice: price, Shop: testShop.ID}
}

func sellIntent(item catalog.ItemType, qty, price int) TradeIntent {
	return TradeIntent{Direction: Sell, Item: item, Quantity: qty, UnitPrice: price, Shop: testShop.ID}
}

func TestBuySpecialtyDiscountAnchorsCounter(t *testing.T) {
	a := NewArbiter(catalog.Default(), entropy.Fixed(0))

	// Bulb at its specialty shop: reference 50 × 0.95 truncates to 47,
	// and the low-band draw puts the floor at round(47 × 0.85) = 40.
	q := Quote{Price: 50, Demand: 1.0}
	lv := LedgerView{Wallet: 1000}

	v := a.Evaluate(buyIntent(catalog.ItemBulb, 2, 39), testShop, q, lv)
	if v.Kind != PriceRejected {
		t.Fatalf("kind = %v, want price rejected", v.Kind)
	}
	if v.Counter != 40 {
		t.Fatalf("counter = %d, want 40", v.Counter)
	}

	v = a.Evaluate(buyIntent(catalog.ItemBulb, 2, 40), testShop, q, lv)
	if v.Kind != Accepted {
		t.Fatalf("kind = %v, want accepted", v.Kind)
	}
	if v.Txn.Total != 80 || v.Txn.ItemName != "Bulb" {
		t.Fatalf("txn = %+v", v.Txn)
	}
}

func TestBuyNonSpecialtyUsesMarketPrice(t *testing.T) {
	a := NewArbiter(catalog.Default(), entropy.Fixed(0))

	// Wire is not this shop's specialty: the anchor is the raw quote.
	q := Quote{Price: 20, Demand: 1.0}
	lv := LedgerView{Wallet: 1000}

	v := a.Evaluate(buyIntent(catalog.ItemWire, 2, 16), testShop, q, lv)
	if v.Kind != PriceRejected {
		t.Fatalf("kind = %v, want price rejected", v.Kind)
	}
	if v.Counter != 17 { // round(20 × 0.85)
		t.Fatalf("counter = %d, want 17", v.Counter)
	}
}

func TestBuyDemandBands(t *testing.T) {
	a := NewArbiter(catalog.Default(), entropy.Fixed(1))
	lv := LedgerView{Wallet: 10000}

	// Hot demand: floor rises to round(47 × 0.97) = 46.
	v := a.Evaluate(buyIntent(catalog.ItemBulb, 1, 45), testShop, Quote{Price: 50, Demand: 1.5}, lv)
	if v.Kind != PriceRejected || v.Counter != 46 {
		t.Fatalf("hot band: %+v", v)
	}

	// Cold demand: floor drops to round(47 × 0.85) = 40.
	v = a.Evaluate(buyIntent(catalog.ItemBulb, 1, 40), testShop, Quote{Price: 50, Demand: 0.6}, lv)
	if v.Kind != Accepted {
		t.Fatalf("cold band: %+v", v)
	}
}

func TestBuyBulkEasesFloor(t *testing.T) {
	a := NewArbiter(catalog.Default(), entropy.Fixed(0))
	lv := LedgerView{Wallet: 10000}
	q := Quote{Price: 50, Demand: 1.0}

	// 10+ units: flex 0.85 − 0.03, floor round(47 × 0.82) = 39.
	v := a.Evaluate(buyIntent(catalog.ItemBulb, 10, 39), testShop, q, lv)
	if v.Kind != Accepted {
		t.Fatalf("bulk buy at eased floor: %+v", v)
	}
	v = a.Evaluate(buyIntent(catalog.ItemBulb, 10, 38), testShop, q, lv)
	if v.Kind != PriceRejected || v.Counter != 39 {
		t.Fatalf("bulk buy below eased floor: %+v", v)
	}
}

func TestCounterIndependentOfOfferedPrice(t *testing.T) {
	a := NewArbiter(catalog.Default(), entropy.Fixed(0))
	q := Quote{Price: 50, Demand: 1.0}
	lv := LedgerView{Wallet: 1000}

	// The counter is the band edge, not a function of how low the offer was.
	low := a.Evaluate(buyIntent(catalog.ItemBulb, 2, 1), testShop, q, lv)
	high := a.Evaluate(buyIntent(catalog.ItemBulb, 2, 39), testShop, q, lv)
	if low.Kind != PriceRejected || high.Kind != PriceRejected {
		t.Fatalf("kinds: %v, %v", low.Kind, high.Kind)
	}
	if low.Counter != high.Counter {
		t.Fatalf("counter varies with offer: %d vs %d", low.Counter, high.Counter)
	}
}

func TestBuyInsufficientFunds(t *testing.T) {
	a := NewArbiter(catalog.Default(), entropy.Fixed(0))

	v := a.Evaluate(buyIntent(catalog.ItemBulb, 10, 50), testShop, Quote{Price: 50, Demand: 1.0}, LedgerView{Wallet: 300})
	if v.Kind != InsufficientFunds {
		t.Fatalf("kind = %v, want insufficient funds", v.Kind)
	}
	if v.Shortfall != 200 {
		t.Fatalf("shortfall = %d, want 200", v.Shortfall)
	}
}

func TestSellWithinCeiling(t *testing.T) {
	a := NewArbiter(catalog.Default(), entropy.Fixed(0))

	// Specialty sell: ceiling round(50 × (1.08 + 0.03)) = 56.
	q := Quote{Price: 50, Demand: 1.0}
	lv := LedgerView{Wallet: 100, HeldQty: 5, AvgCost: 50}

	v := a.Evaluate(sellIntent(catalog.ItemBulb, 2, 56), testShop, q, lv)
	if v.Kind != Accepted {
		t.Fatalf("kind = %v, want accepted", v.Kind)
	}
	if v.Txn.Profit != 12 { // (56 − 50) × 2
		t.Fatalf("profit = %g, want 12", v.Txn.Profit)
	}

	v = a.Evaluate(sellIntent(catalog.ItemBulb, 2, 57), testShop, q, lv)
	if v.Kind != PriceRejected || v.Counter != 56 {
		t.Fatalf("above ceiling: %+v", v)
	}
}

func TestSellStockGuardFiresBeforePriceTalk(t *testing.T) {
	a := NewArbiter(catalog.Default(), entropy.Fixed(0))

	// An absurd asking price must not mask the missing stock.
	v := a.Evaluate(sellIntent(catalog.ItemBulb, 10, 9999), testShop, Quote{Price: 50, Demand: 1.0}, LedgerView{HeldQty: 5})
	if v.Kind != InsufficientStock {
		t.Fatalf("kind = %v, want insufficient stock", v.Kind)
	}
	if v.Shortfall != 5 {
		t.Fatalf("shortfall = %d, want 5", v.Shortfall)
	}
}

func TestSellBulkPenalty(t *testing.T) {
	a := NewArbiter(catalog.Default(), entropy.Fixed(0))
	q := Quote{Price: 20, Demand: 1.0}
	lv := LedgerView{HeldQty: 100, AvgCost: 20}

	// Wire is not the specialty. 16+ units: ceiling round(20 × (1.08 − 0.04)) = 21.
	v := a.Evaluate(sellIntent(catalog.ItemWire, 20, 21), testShop, q, lv)
	if v.Kind != Accepted {
		t.Fatalf("bulk sell at ceiling: %+v", v)
	}
	v = a.Evaluate(sellIntent(catalog.ItemWire, 20, 22), testShop, q, lv)
	if v.Kind != PriceRejected || v.Counter != 21 {
		t.Fatalf("bulk sell above ceiling: %+v", v)
	}
}

func TestSellHotDemandPaysUp(t *testing.T) {
	a := NewArbiter(catalog.Default(), entropy.Fixed(1))
	lv := LedgerView{HeldQty: 10, AvgCost: 90}

	// Hot band high draw on a non-specialty item: round(100 × 1.25) = 125.
	v := a.Evaluate(sellIntent(catalog.ItemBattery, 2, 125), testShop, Quote{Price: 100, Demand: 1.5}, lv)
	if v.Kind != Accepted {
		t.Fatalf("hot sell: %+v", v)
	}
}
