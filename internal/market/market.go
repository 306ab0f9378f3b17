// Package market holds the process-wide market state: per-item prices and
// demand multipliers, the time-gated price refresh, and the shared transcript
// of shop dialogue and settled trades.
//
// One Market instance is shared by every session. All state lives behind a
// single mutex so concurrent negotiations always observe a consistent
// per-item snapshot and exactly one caller performs each due refresh.
package market

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/talgya/electro-bazaar/internal/catalog"
	"github.com/talgya/electro-bazaar/internal/entropy"
	"github.com/talgya/electro-bazaar/internal/shop"
	"github.com/talgya/electro-bazaar/internal/trade"
)

const (
	// DefaultUpdatePeriod is the refresh gate interval.
	DefaultUpdatePeriod = 60 * time.Second
	// DefaultTranscriptCap bounds the shared transcript.
	DefaultTranscriptCap = 50

	// maxStepFraction caps a single refresh's price move at ±20% of base.
	maxStepFraction = 0.2

	demandMin = 0.5
	demandMax = 2.0

	// Demand nudges applied synchronously at settlement.
	buyNudge  = 1.05
	sellNudge = 0.95
)

// Market is the shared mutable market state.
type Market struct {
	mu sync.Mutex

	cat *catalog.Catalog
	src entropy.Source
	now func() time.Time

	updatePeriod  time.Duration
	transcriptCap int

	lastUpdate time.Time
	nextUpdate time.Time

	prices [catalog.NumItems]int
	demand [catalog.NumItems]float64

	transcript []trade.Entry
}

// Option configures a Market.
type Option func(*Market)

// WithUpdatePeriod overrides the refresh gate interval.
func WithUpdatePeriod(d time.Duration) Option {
	return func(m *Market) { m.updatePeriod = d }
}

// WithTranscriptCap overrides the transcript bound.
func WithTranscriptCap(n int) Option {
	return func(m *Market) { m.transcriptCap = n }
}

// WithClock injects the time source. Tests use this to open and close the
// refresh gate deterministically.
func WithClock(now func() time.Time) Option {
	return func(m *Market) { m.now = now }
}

// New creates a market with every price at its base and demand at 1.0.
func New(cat *catalog.Catalog, src entropy.Source, opts ...Option) *Market {
	m := &Market{
		cat:           cat,
		src:           src,
		now:           time.Now,
		updatePeriod:  DefaultUpdatePeriod,
		transcriptCap: DefaultTranscriptCap,
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, it := range cat.Items() {
		m.prices[it.Type] = it.BasePrice
		m.demand[it.Type] = 1.0
	}
	start := m.now()
	m.lastUpdate = start
	m.nextUpdate = start.Add(m.updatePeriod)
	return m
}

// RefreshIfDue recomputes prices if the update gate has opened; otherwise it
// is a no-op. Exactly one concurrent caller performs a due refresh; the
// check and the recompute happen under the same lock.
func (m *Market) RefreshIfDue() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastUpdate) < m.updatePeriod {
		return
	}

	for _, it := range m.cat.Items() {
		m.refreshItem(it)
	}
	m.lastUpdate = now
	m.nextUpdate = now.Add(m.updatePeriod)

	slog.Debug("market refreshed", "next_update", m.nextUpdate)
}

// refreshItem draws new demand and price for one item. Caller holds the lock.
func (m *Market) refreshItem(it catalog.Item) {
	d := m.demand[it.Type] * entropy.Between(m.src, 0.9, 1.1)
	m.demand[it.Type] = clampDemand(d)

	noise := entropy.Between(m.src, 1-it.Volatility, 1+it.Volatility)
	candidate := float64(it.BasePrice) * m.demand[it.Type] * noise

	// A single step never moves the price more than ±20% of base.
	prev := float64(m.prices[it.Type])
	maxStep := maxStepFraction * float64(it.BasePrice)
	if candidate > prev+maxStep {
		candidate = prev + maxStep
	}
	if candidate < prev-maxStep {
		candidate = prev - maxStep
	}

	price := int(math.Round(candidate))
	if price < 1 {
		price = 1
	}
	m.prices[it.Type] = price
}

// Quote returns a consistent price/demand snapshot for one item.
func (m *Market) Quote(item catalog.ItemType) trade.Quote {
	m.mu.Lock()
	defer m.mu.Unlock()
	return trade.Quote{Price: m.prices[item], Demand: m.demand[item]}
}

// NudgeDemand applies the settlement-time demand feedback for one item:
// accepted buys push demand up, accepted sells push it down.
func (m *Market) NudgeDemand(item catalog.ItemType, dir trade.Direction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	factor := buyNudge
	if dir == trade.Sell {
		factor = sellNudge
	}
	m.demand[item] = clampDemand(m.demand[item] * factor)
}

// Snapshot is a read-only view of the whole market.
type Snapshot struct {
	Prices           map[string]int     `json:"prices"`
	Demand           map[string]float64 `json:"demand"`
	SecondsUntilNext int                `json:"seconds_until_next_update"`
}

// Snapshot returns current prices, demand, and time until the next refresh.
func (m *Market) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Prices: make(map[string]int, catalog.NumItems),
		Demand: make(map[string]float64, catalog.NumItems),
	}
	for _, it := range m.cat.Items() {
		snap.Prices[it.Name] = m.prices[it.Type]
		snap.Demand[it.Name] = m.demand[it.Type]
	}
	remaining := m.nextUpdate.Sub(m.now())
	if remaining < 0 {
		remaining = 0
	}
	snap.SecondsUntilNext = int(remaining.Seconds())
	return snap
}

// AppendDialogue records a non-transactional transcript line.
func (m *Market) AppendDialogue(sh shop.ID, role trade.Role, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendEntry(trade.Entry{Shop: sh, Role: role, Text: text, Time: m.now()})
}

// RecordTransaction appends a settled trade to the shared transcript, with a
// readable text line so later acceptance scans can reference it.
func (m *Market) RecordTransaction(txn trade.Transaction, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := txn
	m.appendEntry(trade.Entry{Shop: txn.Shop, Role: trade.RoleShop, Text: text, Txn: &t, Time: m.now()})
}

// appendEntry adds an entry, evicting the oldest past the cap. Caller holds
// the lock.
func (m *Market) appendEntry(e trade.Entry) {
	m.transcript = append(m.transcript, e)
	if len(m.transcript) > m.transcriptCap {
		m.transcript = m.transcript[len(m.transcript)-m.transcriptCap:]
	}
}

// RecentShopEntries returns up to n of the given shop's transcript entries,
// most recent first. This is the parser's bounded lookback window.
func (m *Market) RecentShopEntries(sh shop.ID, n int) []trade.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]trade.Entry, 0, n)
	for i := len(m.transcript) - 1; i >= 0 && len(out) < n; i-- {
		if m.transcript[i].Shop == sh && m.transcript[i].Role == trade.RoleShop {
			out = append(out, m.transcript[i])
		}
	}
	return out
}

// RecentEntries returns up to n transcript entries across all shops, most
// recent first.
func (m *Market) RecentEntries(n int) []trade.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]trade.Entry, 0, n)
	for i := len(m.transcript) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.transcript[i])
	}
	return out
}

// State exports prices, demand, and the last update time for checkpointing.
func (m *Market) State() (prices map[catalog.ItemType]int, demand map[catalog.ItemType]float64, lastUpdate time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prices = make(map[catalog.ItemType]int, catalog.NumItems)
	demand = make(map[catalog.ItemType]float64, catalog.NumItems)
	for _, it := range m.cat.Items() {
		prices[it.Type] = m.prices[it.Type]
		demand[it.Type] = m.demand[it.Type]
	}
	return prices, demand, m.lastUpdate
}

// Restore loads a checkpointed state. Values are clamped back into their
// invariant ranges in case the stored state predates a tuning change.
func (m *Market) Restore(prices map[catalog.ItemType]int, demand map[catalog.ItemType]float64, lastUpdate time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for item, p := range prices {
		if int(item) >= catalog.NumItems {
			continue
		}
		if p < 1 {
			p = 1
		}
		m.prices[item] = p
	}
	for item, d := range demand {
		if int(item) >= catalog.NumItems {
			continue
		}
		m.demand[item] = clampDemand(d)
	}
	if !lastUpdate.IsZero() {
		m.lastUpdate = lastUpdate
		m.nextUpdate = lastUpdate.Add(m.updatePeriod)
	}
}

func clampDemand(d float64) float64 {
	if d < demandMin {
		return demandMin
	}
	if d > demandMax {
		return demandMax
	}
	return d
}
