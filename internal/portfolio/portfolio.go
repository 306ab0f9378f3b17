// Package portfolio provides the per-session ledger: wallet, holdings with
// cost basis, transaction history, and realized profit/loss.
//
// Single-writer discipline: only the arbiter's settlement path calls the
// mutators. Everything else reads through View and Summary.
package portfolio

import (
	"fmt"

	"github.com/talgya/electro-bazaar/internal/catalog"
	"github.com/talgya/electro-bazaar/internal/trade"
)

// Holding is one item's position: units held and quantity-weighted average
// purchase price.
type Holding struct {
	Quantity    int     `json:"quantity"`
	AvgBuyPrice float64 `json:"avg_buy_price"`
}

// Seed is the state a fresh (or reset) portfolio starts from.
type Seed struct {
	Wallet   int
	Holdings [catalog.NumItems]Holding
}

// DefaultSeed returns the stock starting portfolio: the classic five-lot
// electronics kit plus pocket money.
func DefaultSeed() Seed {
	var s Seed
	s.Wallet = 1000
	s.Holdings[catalog.ItemBulb] = Holding{Quantity: 5, AvgBuyPrice: 50}
	s.Holdings[catalog.ItemWire] = Holding{Quantity: 10, AvgBuyPrice: 20}
	s.Holdings[catalog.ItemResistor] = Holding{Quantity: 15, AvgBuyPrice: 10}
	s.Holdings[catalog.ItemCapacitor] = Holding{Quantity: 8, AvgBuyPrice: 30}
	s.Holdings[catalog.ItemBattery] = Holding{Quantity: 3, AvgBuyPrice: 100}
	return s
}

// Portfolio is one session's ledger.
type Portfolio struct {
	seed Seed

	wallet   int
	holdings [catalog.NumItems]Holding
	history  []trade.Transaction
	realized float64
}

// New creates a portfolio initialized from seed.
func New(seed Seed) *Portfolio {
	p := &Portfolio{seed: seed}
	p.Reset()
	return p
}

// Reset restores the seed state, discarding history and realized P/L.
func (p *Portfolio) Reset() {
	p.wallet = p.seed.Wallet
	p.holdings = p.seed.Holdings
	p.history = nil
	p.realized = 0
}

// View returns the arbiter's snapshot for one item.
func (p *Portfolio) View(item catalog.ItemType) trade.LedgerView {
	h := p.holdings[item]
	return trade.LedgerView{Wallet: p.wallet, HeldQty: h.Quantity, AvgCost: h.AvgBuyPrice}
}

// Wallet returns the current balance.
func (p *Portfolio) Wallet() int { return p.wallet }

// RealizedPnL returns cumulative realized profit/loss.
func (p *Portfolio) RealizedPnL() float64 { return p.realized }

// History returns the transaction log, oldest first.
func (p *Portfolio) History() []trade.Transaction {
	out := make([]trade.Transaction, len(p.history))
	copy(out, p.history)
	return out
}

// ApplyBuy settles an accepted buy: wallet down, position up, average cost
// reweighted over the combined lot.
func (p *Portfolio) ApplyBuy(txn trade.Transaction) error {
	if txn.Kind != trade.Buy {
		return fmt.Errorf("ApplyBuy on %s transaction", txn.Kind)
	}
	if txn.Total > p.wallet {
		return fmt.Errorf("buy of ₹%d exceeds wallet ₹%d", txn.Total, p.wallet)
	}

	h := p.holdings[txn.Item]
	newQty := h.Quantity + txn.Quantity
	if newQty > 0 {
		h.AvgBuyPrice = (float64(h.Quantity)*h.AvgBuyPrice + float64(txn.Quantity)*float64(txn.UnitPrice)) / float64(newQty)
	}
	h.Quantity = newQty

	p.wallet -= txn.Total
	p.holdings[txn.Item] = h
	p.history = append(p.history, txn)
	return nil
}

// ApplySell settles an accepted sell: wallet up, position down, realized P/L
// credited with the transaction's profit.
func (p *Portfolio) ApplySell(txn trade.Transaction) error {
	if txn.Kind != trade.Sell {
		return fmt.Errorf("ApplySell on %s transaction", txn.Kind)
	}
	h := p.holdings[txn.Item]
	if txn.Quantity > h.Quantity {
		return fmt.Errorf("sell of %d exceeds held %d", txn.Quantity, h.Quantity)
	}

	h.Quantity -= txn.Quantity
	if h.Quantity == 0 {
		h.AvgBuyPrice = 0
	}

	p.wallet += txn.Total
	p.holdings[txn.Item] = h
	p.realized += txn.Profit
	p.history = append(p.history, txn)
	return nil
}

// HoldingSummary is one line of the read-only portfolio summary.
type HoldingSummary struct {
	Item          string  `json:"item"`
	Quantity      int     `json:"quantity"`
	AvgBuyPrice   float64 `json:"avg_buy_price"`
	CurrentPrice  int     `json:"current_price"`
	CurrentValue  int     `json:"current_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// Summary is the read-only portfolio view.
type Summary struct {
	Wallet      int              `json:"wallet"`
	Holdings    []HoldingSummary `json:"holdings"`
	TotalValue  int              `json:"total_value"` // wallet + holdings at market
	RealizedPnL float64          `json:"realized_pnl"`
}

// Summarize values holdings at current prices. priceOf must return the
// market price for an item.
func (p *Portfolio) Summarize(cat *catalog.Catalog, priceOf func(catalog.ItemType) int) Summary {
	s := Summary{Wallet: p.wallet, RealizedPnL: p.realized, TotalValue: p.wallet}
	for _, it := range cat.Items() {
		h := p.holdings[it.Type]
		price := priceOf(it.Type)
		value := h.Quantity * price
		s.TotalValue += value
		s.Holdings = append(s.Holdings, HoldingSummary{
			Item:          it.Name,
			Quantity:      h.Quantity,
			AvgBuyPrice:   h.AvgBuyPrice,
			CurrentPrice:  price,
			CurrentValue:  value,
			UnrealizedPnL: float64(value) - float64(h.Quantity)*h.AvgBuyPrice,
		})
	}
	return s
}
