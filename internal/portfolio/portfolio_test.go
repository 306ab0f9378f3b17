package portfolio

import (
	"math"
	"testing"

	"github.com/talgya/electro-bazaar/internal/catalog"
	"github.com/talgya/electro-bazaar/internal/trade"
)

func buyTxn(item catalog.ItemType, qty, price int) trade.Transaction {
	return trade.Transaction{Kind: trade.Buy, Item: item, Quantity: qty, UnitPrice: price, Total: qty * price}
}

func sellTxn(item catalog.ItemType, qty, price int, profit float64) trade.Transaction {
	return trade.Transaction{Kind: trade.Sell, Item: item, Quantity: qty, UnitPrice: price, Total: qty * price, Profit: profit}
}

func TestApplyBuyReweightsAverageCost(t *testing.T) {
	p := New(Seed{Wallet: 1000})

	if err := p.ApplyBuy(buyTxn(catalog.ItemBulb, 5, 50)); err != nil {
		t.Fatal(err)
	}
	if err := p.ApplyBuy(buyTxn(catalog.ItemBulb, 5, 70)); err != nil {
		t.Fatal(err)
	}

	v := p.View(catalog.ItemBulb)
	if v.HeldQty != 10 {
		t.Fatalf("held = %d, want 10", v.HeldQty)
	}
	if math.Abs(v.AvgCost-60) > 1e-9 {
		t.Fatalf("avg cost = %g, want 60", v.AvgCost)
	}
	if p.Wallet() != 1000-250-350 {
		t.Fatalf("wallet = %d", p.Wallet())
	}
}

func TestWalletConservation(t *testing.T) {
	p := New(DefaultSeed())
	start := p.Wallet()

	if err := p.ApplyBuy(buyTxn(catalog.ItemWire, 4, 18)); err != nil {
		t.Fatal(err)
	}
	if err := p.ApplySell(sellTxn(catalog.ItemWire, 6, 25, 30)); err != nil {
		t.Fatal(err)
	}

	want := start - 4*18 + 6*25
	if p.Wallet() != want {
		t.Fatalf("wallet = %d, want %d", p.Wallet(), want)
	}
	if p.RealizedPnL() != 30 {
		t.Fatalf("realized = %g, want 30", p.RealizedPnL())
	}
	if got := len(p.History()); got != 2 {
		t.Fatalf("history length = %d, want 2", got)
	}
}

func TestApplyBuyGuardsWallet(t *testing.T) {
	p := New(Seed{Wallet: 100})
	if err := p.ApplyBuy(buyTxn(catalog.ItemBattery, 2, 100)); err == nil {
		t.Fatal("expected wallet guard error")
	}
	if p.Wallet() != 100 {
		t.Fatalf("wallet mutated on rejected buy: %d", p.Wallet())
	}
}

func TestApplySellGuardsStock(t *testing.T) {
	p := New(DefaultSeed())
	held := p.View(catalog.ItemBattery).HeldQty

	if err := p.ApplySell(sellTxn(catalog.ItemBattery, held+1, 100, 0)); err == nil {
		t.Fatal("expected stock guard error")
	}
	if p.View(catalog.ItemBattery).HeldQty != held {
		t.Fatal("holdings mutated on rejected sell")
	}
}

func TestSellOutClearsCostBasis(t *testing.T) {
	p := New(Seed{Wallet: 0, Holdings: func() [catalog.NumItems]Holding {
		var h [catalog.NumItems]Holding
		h[catalog.ItemWire] = Holding{Quantity: 3, AvgBuyPrice: 20}
		return h
	}()})

	if err := p.ApplySell(sellTxn(catalog.ItemWire, 3, 25, 15)); err != nil {
		t.Fatal(err)
	}
	v := p.View(catalog.ItemWire)
	if v.HeldQty != 0 || v.AvgCost != 0 {
		t.Fatalf("position after sell-out: %+v", v)
	}
}

func TestResetRestoresSeed(t *testing.T) {
	p := New(DefaultSeed())
	if err := p.ApplyBuy(buyTxn(catalog.ItemBulb, 2, 40)); err != nil {
		t.Fatal(err)
	}

	p.Reset()
	seed := DefaultSeed()
	if p.Wallet() != seed.Wallet {
		t.Fatalf("wallet = %d, want %d", p.Wallet(), seed.Wallet)
	}
	if v := p.View(catalog.ItemBulb); v.HeldQty != seed.Holdings[catalog.ItemBulb].Quantity {
		t.Fatalf("bulb holding = %d", v.HeldQty)
	}
	if len(p.History()) != 0 || p.RealizedPnL() != 0 {
		t.Fatal("history or P/L survived reset")
	}
}

func TestSummarize(t *testing.T) {
	cat := catalog.Default()
	p := New(DefaultSeed())

	s := p.Summarize(cat, func(t catalog.ItemType) int {
		return cat.Get(t).BasePrice
	})
	if s.Wallet != 1000 {
		t.Fatalf("wallet = %d", s.Wallet)
	}
	// Seed lots are valued at their buy price, so nothing is unrealized yet.
	wantTotal := 1000 + 5*50 + 10*20 + 15*10 + 8*30 + 3*100
	if s.TotalValue != wantTotal {
		t.Fatalf("total value = %d, want %d", s.TotalValue, wantTotal)
	}
	for _, h := range s.Holdings {
		if h.UnrealizedPnL != 0 {
			t.Fatalf("%s: unrealized = %g at seed prices", h.Item, h.UnrealizedPnL)
		}
	}
}
