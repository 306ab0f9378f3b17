// Deal arbiter: adjudicates a parsed intent against shop-specific acceptance
// bands and the session ledger's guards. Each round is stateless: the verdict
// depends only on the intent, the market quote, the ledger view, and one
// stochastic flexibility draw.
package trade

import (
	"math"
	"time"

	"github.com/talgya/electro-bazaar/internal/catalog"
	"github.com/talgya/electro-bazaar/internal/entropy"
	"github.com/talgya/electro-bazaar/internal/shop"
)

// Flexibility tuning. The draw inside each demand band is stochastic per
// negotiation round, so two identical offers can receive different verdicts.
const (
	highDemand = 1.2
	lowDemand  = 0.8

	// Buy side: the shop accepts offers at or above reference × flex.
	buyFlexLo, buyFlexHi         = 0.85, 0.90
	buyFlexHotLo, buyFlexHotHi   = 0.92, 0.97
	buyFlexColdLo, buyFlexColdHi = 0.75, 0.85
	buyBulkQty                   = 10
	buyBulkEase                  = 0.03

	// Sell side: the shop pays up to market × flex.
	sellFlexLo, sellFlexHi         = 1.08, 1.15
	sellFlexHotLo, sellFlexHotHi   = 1.15, 1.25
	sellFlexColdLo, sellFlexColdHi = 1.03, 1.08
	sellSpecialtyBonus             = 0.03
	sellBulkQty                    = 15
	sellBulkPenalty                = 0.04
)

// Arbiter decides accept/reject/counter for parsed intents.
type Arbiter struct {
	cat *catalog.Catalog
	src entropy.Source
	now func() time.Time
}

// NewArbiter creates an arbiter drawing flexibility from src.
func NewArbiter(cat *catalog.Catalog, src entropy.Source) *Arbiter {
	return &Arbiter{cat: cat, src: src, now: time.Now}
}

// Evaluate adjudicates one intent. The quote must be a consistent snapshot
// for the intent's item; the ledger view must come from the session that is
// settling, taken under its settlement lock.
func (a *Arbiter) Evaluate(intent TradeIntent, sh shop.Shop, q Quote, lv LedgerView) Verdict {
	if intent.Direction == Buy {
		return a.evaluateBuy(intent, sh, q, lv)
	}
	return a.evaluateSell(intent, sh, q, lv)
}

// referencePrice is the shop's anchor for an item: market price, discounted
// for the shop's specialty. Truncated, matching how shopkeepers quote whole
// rupees down.
func referencePrice(sh shop.Shop, intent TradeIntent, q Quote) int {
	ref := q.Price
	if intent.Item == sh.Specialty {
		ref = int(float64(q.Price) * sh.DiscountRate)
	}
	if ref < 1 {
		ref = 1
	}
	return ref
}

func (a *Arbiter) evaluateBuy(intent TradeIntent, sh shop.Shop, q Quote, lv LedgerView) Verdict {
	ref := referencePrice(sh, intent, q)

	lo, hi := buyFlexLo, buyFlexHi
	switch {
	case q.Demand > highDemand:
		// Hot item, the shop holds firm.
		lo, hi = buyFlexHotLo, buyFlexHotHi
	case q.Demand < lowDemand:
		lo, hi = buyFlexColdLo, buyFlexColdHi
	}
	flex := entropy.Between(a.src, lo, hi)
	if intent.Quantity >= buyBulkQty {
		flex -= buyBulkEase
	}

	lower := int(math.Round(float64(ref) * flex))
	if lower < 1 {
		lower = 1
	}

	if intent.UnitPrice < lower {
		return Verdict{Kind: PriceRejected, Counter: lower}
	}

	total := intent.UnitPrice * intent.Quantity
	if total > lv.Wallet {
		return Verdict{Kind: InsufficientFunds, Shortfall: total - lv.Wallet}
	}

	return Verdict{Kind: Accepted, Txn: a.transaction(intent, sh, 0)}
}

func (a *Arbiter) evaluateSell(intent TradeIntent, sh shop.Shop, q Quote, lv LedgerView) Verdict {
	// Stock guard fires before any price talk.
	if intent.Quantity > lv.HeldQty {
		return Verdict{Kind: InsufficientStock, Shortfall: intent.Quantity - lv.HeldQty}
	}

	lo, hi := sellFlexLo, sellFlexHi
	switch {
	case q.Demand > highDemand:
		// The shop wants stock and pays up.
		lo, hi = sellFlexHotLo, sellFlexHotHi
	case q.Demand < lowDemand:
		lo, hi = sellFlexColdLo, sellFlexColdHi
	}
	flex := entropy.Between(a.src, lo, hi)
	if intent.Item == sh.Specialty {
		flex += sellSpecialtyBonus
	}
	if intent.Quantity > sellBulkQty {
		flex -= sellBulkPenalty
	}

	upper := int(math.Round(float64(q.Price) * flex))
	if upper < 1 {
		upper = 1
	}

	if intent.UnitPrice > upper {
		return Verdict{Kind: PriceRejected, Counter: upper}
	}

	profit := (float64(intent.UnitPrice) - lv.AvgCost) * float64(intent.Quantity)
	return Verdict{Kind: Accepted, Txn: a.transaction(intent, sh, profit)}
}

func (a *Arbiter) transaction(intent TradeIntent, sh shop.Shop, profit float64) Transaction {
	return Transaction{
		Kind:      intent.Direction,
		Item:      intent.Item,
		ItemName:  a.cat.Get(intent.Item).Name,
		Quantity:  intent.Quantity,
		UnitPrice: intent.UnitPrice,
		Total:     intent.UnitPrice * intent.Quantity,
		Shop:      sh.ID,
		ShopName:  sh.Name,
		Profit:    profit,
		Timestamp: a.now(),
	}
}
