// Package trade holds the negotiation core: the value types shared across the
// marketplace, the free-text command parser, and the deal arbiter.
package trade

import (
	"time"

	"github.com/talgya/electro-bazaar/internal/catalog"
	"github.com/talgya/electro-bazaar/internal/shop"
)

// Direction is the side of a trade from the user's point of view.
type Direction uint8

const (
	Buy Direction = iota
	Sell
)

// String returns the direction label used in replies and the journal.
func (d Direction) String() string {
	if d == Sell {
		return "sell"
	}
	return "buy"
}

// Transaction records one settled trade. Immutable once created; copies live
// in both the session portfolio history and the shared market transcript.
type Transaction struct {
	Kind      Direction        `json:"kind"`
	Item      catalog.ItemType `json:"item"`
	ItemName  string           `json:"item_name"`
	Quantity  int              `json:"quantity"`
	UnitPrice int              `json:"unit_price"`
	Total     int              `json:"total"`
	Shop      shop.ID          `json:"shop"`
	ShopName  string           `json:"shop_name"`
	Profit    float64          `json:"profit,omitempty"` // Sell only: (unit - avg cost) × qty
	Timestamp time.Time        `json:"timestamp"`
}

// TradeIntent is the structured intent extracted from one utterance.
// Ephemeral; it never outlives the negotiation round that produced it.
type TradeIntent struct {
	Direction Direction
	Item      catalog.ItemType
	Quantity  int
	UnitPrice int
	Shop      shop.ID
}

// Role identifies who produced a transcript entry.
type Role uint8

const (
	RoleUser Role = iota
	RoleShop
)

// Entry is one line of the shared market transcript. Settled trades carry a
// Transaction; plain dialogue carries only text.
type Entry struct {
	Shop shop.ID      `json:"shop"`
	Role Role         `json:"role"`
	Text string       `json:"text"`
	Txn  *Transaction `json:"txn,omitempty"`
	Time time.Time    `json:"time"`
}

// Quote is the market's per-item view handed to the arbiter: a consistent
// snapshot of one item's price and demand at negotiation time.
type Quote struct {
	Price  int
	Demand float64
}

// LedgerView is the portfolio snapshot the arbiter needs for its guards.
type LedgerView struct {
	Wallet  int
	HeldQty int
	AvgCost float64
}

// ParseKind tags the outcome of parsing one utterance.
type ParseKind uint8

const (
	// ParsedNone means no structured intent; delegate to free-form dialogue.
	ParsedNone ParseKind = iota
	// ParsedIntent carries a complete TradeIntent.
	ParsedIntent
	// ParsedUnknownItem means a trade verb matched but the item token did not.
	ParsedUnknownItem
	// ParsedBadNumbers means quantity or price failed to parse as a positive integer.
	ParsedBadNumbers
)

// ParseResult is the parser's verdict on one utterance.
type ParseResult struct {
	Kind      ParseKind
	Intent    TradeIntent
	ItemToken string // unmatched token, set for ParsedUnknownItem
}

// VerdictKind tags the arbiter's decision.
type VerdictKind uint8

const (
	// Accepted means the deal settles at the offered price.
	Accepted VerdictKind = iota
	// PriceRejected means the offer fell outside the acceptance band.
	// The verdict carries the band edge as the shop's counter price.
	PriceRejected
	// InsufficientFunds means the price passed but the wallet cannot cover it.
	InsufficientFunds
	// InsufficientStock means the user holds fewer units than offered.
	InsufficientStock
)

// Verdict is the arbiter's decision on one intent. For Accepted the embedded
// Transaction is ready to settle; for PriceRejected Counter is the shop's
// best price; for the guard failures Shortfall is how much was missing.
type Verdict struct {
	Kind      VerdictKind
	Txn       Transaction
	Counter   int
	Shortfall int
}
