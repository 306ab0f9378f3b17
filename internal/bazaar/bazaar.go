// Package bazaar is the negotiation core's single entry point: it composes
// parser → arbiter → ledger → market feedback for every inbound message and
// exposes the read-only market and portfolio views.
package bazaar

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/electro-bazaar/internal/catalog"
	"github.com/talgya/electro-bazaar/internal/llm"
	"github.com/talgya/electro-bazaar/internal/market"
	"github.com/talgya/electro-bazaar/internal/persistence"
	"github.com/talgya/electro-bazaar/internal/portfolio"
	"github.com/talgya/electro-bazaar/internal/session"
	"github.com/talgya/electro-bazaar/internal/shop"
	"github.com/talgya/electro-bazaar/internal/trade"
)

// transcriptLookback bounds how many prior shop lines one negotiation round
// may reference.
const transcriptLookback = 3

// DialogueFunc generates a free-form shopkeeper reply for utterances with no
// structured trade intent. Failures degrade to a stock apology, never to a
// surfaced error.
type DialogueFunc func(ctx llm.ShopContext, utterance string) (string, error)

// Core wires the negotiation pipeline together. One Core serves all sessions.
type Core struct {
	cat      *catalog.Catalog
	shops    *shop.Registry
	market   *market.Market
	sessions *session.Manager
	parser   *trade.Parser
	arbiter  *trade.Arbiter

	db       *persistence.DB // optional journal
	dialogue DialogueFunc    // optional free-form fallback
}

// Option configures a Core.
type Option func(*Core)

// WithJournal persists settled trades and market checkpoints.
func WithJournal(db *persistence.DB) Option {
	return func(c *Core) { c.db = db }
}

// WithDialogue sets the free-form fallback.
func WithDialogue(fn DialogueFunc) Option {
	return func(c *Core) { c.dialogue = fn }
}

// New creates the core.
func New(cat *catalog.Catalog, shops *shop.Registry, mkt *market.Market, sessions *session.Manager, arbiter *trade.Arbiter, opts ...Option) *Core {
	c := &Core{
		cat:      cat,
		shops:    shops,
		market:   mkt,
		sessions: sessions,
		parser:   trade.NewParser(cat),
		arbiter:  arbiter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is the outcome of one inbound message.
type Result struct {
	SessionID   string             `json:"session_id"`
	ShopName    string             `json:"shop_name"`
	Reply       string             `json:"reply"`
	Settled     bool               `json:"settled"`
	Transaction *trade.Transaction `json:"transaction,omitempty"`
}

// EvaluateMessage runs one negotiation round: parse the utterance, adjudicate
// any trade intent, settle on acceptance, or hand the line to the dialogue
// fallback. Every path resolves to reply text.
func (c *Core) EvaluateMessage(sessionID string, shopID shop.ID, utterance string) (Result, error) {
	sh, ok := c.shops.Get(shopID)
	if !ok {
		return Result{}, fmt.Errorf("unknown shop id %d", shopID)
	}

	// Any caller that finds the gate open performs the refresh.
	c.market.RefreshIfDue()

	sess := c.sessions.GetOrCreate(sessionID)
	sess.Lock()
	defer sess.Unlock()

	recent := c.market.RecentShopEntries(shopID, transcriptLookback)
	parsed := c.parser.Parse(utterance, sh, recent)
	c.market.AppendDialogue(shopID, trade.RoleUser, utterance)

	res := Result{SessionID: sess.ID, ShopName: sh.Name}
	switch parsed.Kind {
	case trade.ParsedIntent:
		c.adjudicate(&res, parsed.Intent, sh, sess)
	case trade.ParsedUnknownItem:
		res.Reply = fmt.Sprintf("We don't deal in %q here. I trade in %s.",
			parsed.ItemToken, strings.Join(c.cat.Names(), ", "))
	case trade.ParsedBadNumbers:
		res.Reply = "Quantity and price both need to be positive whole numbers. Try again."
	default:
		res.Reply = c.fallbackReply(sh, utterance)
	}

	c.market.AppendDialogue(shopID, trade.RoleShop, res.Reply)
	return res, nil
}

// adjudicate runs the arbiter and applies an accepted settlement to the
// session ledger, the market demand feedback, and the journal.
func (c *Core) adjudicate(res *Result, intent trade.TradeIntent, sh shop.Shop, sess *session.Session) {
	quote := c.market.Quote(intent.Item)
	view := sess.Portfolio.View(intent.Item)
	verdict := c.arbiter.Evaluate(intent, sh, quote, view)

	itemLabel := catalog.Plural(c.cat.Get(intent.Item).Name, intent.Quantity)

	switch verdict.Kind {
	case trade.Accepted:
		c.settle(res, verdict.Txn, sess, itemLabel)

	case trade.PriceRejected:
		if intent.Direction == trade.Buy {
			res.Reply = fmt.Sprintf("₹%s each? Can't do it. I can sell you %d %s for ₹%s apiece, and that's my best.",
				humanize.Comma(int64(intent.UnitPrice)), intent.Quantity, itemLabel,
				humanize.Comma(int64(verdict.Counter)))
		} else {
			res.Reply = fmt.Sprintf("₹%s each is too rich for me. I can buy %d %s at ₹%s apiece.",
				humanize.Comma(int64(intent.UnitPrice)), intent.Quantity, itemLabel,
				humanize.Comma(int64(verdict.Counter)))
		}

	case trade.InsufficientFunds:
		res.Reply = fmt.Sprintf("That's ₹%s all told and your wallet holds ₹%s. You're ₹%s short.",
			humanize.Comma(int64(intent.UnitPrice*intent.Quantity)),
			humanize.Comma(int64(view.Wallet)),
			humanize.Comma(int64(verdict.Shortfall)))

	case trade.InsufficientStock:
		res.Reply = fmt.Sprintf("You're offering %d %s but only carry %d. Come back when you have the goods.",
			intent.Quantity, itemLabel, view.HeldQty)
	}
}

// settle applies an accepted trade: ledger mutation, shared transcript
// record, synchronous demand nudge, journal append.
func (c *Core) settle(res *Result, txn trade.Transaction, sess *session.Session, itemLabel string) {
	var err error
	if txn.Kind == trade.Buy {
		err = sess.Portfolio.ApplyBuy(txn)
	} else {
		err = sess.Portfolio.ApplySell(txn)
	}
	if err != nil {
		// The arbiter guards funds/stock under the session lock, so this is
		// a programming error, not a user mistake.
		slog.Error("settlement failed", "session_id", sess.ID, "error", err)
		res.Reply = "Something went wrong on my side of the counter. The deal is off."
		return
	}

	// Past tense on purpose: a settled record must not read as a live offer
	// to later acceptance scans.
	past := "bought"
	if txn.Kind == trade.Sell {
		past = "sold"
	}
	record := fmt.Sprintf("%s settled: customer %s %d %s at ₹%d each (total ₹%d)",
		txn.ShopName, past, txn.Quantity, itemLabel, txn.UnitPrice, txn.Total)
	c.market.RecordTransaction(txn, record)
	c.market.NudgeDemand(txn.Item, txn.Kind)

	if c.db != nil {
		if err := c.db.SaveTransaction(sess.ID, txn); err != nil {
			slog.Warn("journal append failed", "error", err)
		}
	}

	if txn.Kind == trade.Buy {
		res.Reply = fmt.Sprintf("Deal! %d %s for ₹%s. Your wallet's at ₹%s now.",
			txn.Quantity, itemLabel, humanize.Comma(int64(txn.Total)),
			humanize.Comma(int64(sess.Portfolio.Wallet())))
	} else {
		res.Reply = fmt.Sprintf("Deal! I'll take %d %s for ₹%s. Your wallet's at ₹%s now.",
			txn.Quantity, itemLabel, humanize.Comma(int64(txn.Total)),
			humanize.Comma(int64(sess.Portfolio.Wallet())))
	}

	res.Settled = true
	t := txn
	res.Transaction = &t

	slog.Info("trade settled",
		"session_id", sess.ID,
		"shop", txn.ShopName,
		"kind", txn.Kind.String(),
		"item", txn.ItemName,
		"quantity", txn.Quantity,
		"unit_price", txn.UnitPrice,
	)
}

// fallbackReply delegates chatter to the dialogue collaborator, recovering
// any failure into a stock apology.
func (c *Core) fallbackReply(sh shop.Shop, utterance string) string {
	const apology = "I'm not sure what you want to trade. Ask me to buy or sell something, like \"buy 2 Bulbs for ₹45\"."

	if c.dialogue == nil {
		return apology
	}

	snap := c.market.Snapshot()
	var recentLines []string
	for _, e := range c.market.RecentEntries(transcriptLookback) {
		recentLines = append(recentLines, e.Text)
	}

	reply, err := c.dialogue(llm.ShopContext{
		ShopName:    sh.Name,
		Competitors: c.shops.Competitors(sh.ID),
		Prices:      snap.Prices,
		Demand:      snap.Demand,
		Recent:      recentLines,
	}, utterance)
	if err != nil {
		slog.Warn("dialogue fallback failed", "shop", sh.Name, "error", err)
		return apology
	}
	return strings.TrimSpace(reply)
}

// MarketSnapshot returns current prices and the time to the next refresh.
func (c *Core) MarketSnapshot() market.Snapshot {
	c.market.RefreshIfDue()
	return c.market.Snapshot()
}

// PortfolioSummary values a session's holdings at current prices.
func (c *Core) PortfolioSummary(sessionID string) (portfolio.Summary, error) {
	sess := c.sessions.Get(sessionID)
	if sess == nil {
		return portfolio.Summary{}, fmt.Errorf("unknown session %q", sessionID)
	}

	prices, _, _ := c.market.State()
	sess.Lock()
	defer sess.Unlock()
	return sess.Portfolio.Summarize(c.cat, func(t catalog.ItemType) int {
		return prices[t]
	}), nil
}

// InventoryLine renders a session's holdings in the classic one-line format:
// "Bulb (x5) - ₹50, Wire (x10) - ₹20, ...".
func (c *Core) InventoryLine(sessionID string) (string, error) {
	summary, err := c.PortfolioSummary(sessionID)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(summary.Holdings))
	for _, h := range summary.Holdings {
		parts = append(parts, fmt.Sprintf("%s (x%d) - ₹%d", h.Item, h.Quantity, h.CurrentPrice))
	}
	return strings.Join(parts, ", "), nil
}

// ResetPortfolio restores a session to its seed state.
func (c *Core) ResetPortfolio(sessionID string) error {
	sess := c.sessions.Get(sessionID)
	if sess == nil {
		return fmt.Errorf("unknown session %q", sessionID)
	}
	sess.Lock()
	defer sess.Unlock()
	sess.Portfolio.Reset()
	slog.Info("portfolio reset", "session_id", sessionID)
	return nil
}

// RecentTransactions serves the shared journal, newest first.
func (c *Core) RecentTransactions(limit int) ([]persistence.TransactionRow, error) {
	if c.db == nil {
		return nil, nil
	}
	return c.db.RecentTransactions(limit)
}

// Checkpoint persists the market state; a nil journal makes it a no-op.
// The server calls it on shutdown.
func (c *Core) Checkpoint() error {
	if c.db == nil {
		return nil
	}
	prices, demand, lastUpdate := c.market.State()
	return c.db.SaveMarketState(prices, demand, lastUpdate)
}

// Shops exposes the registry for the HTTP layer.
func (c *Core) Shops() *shop.Registry { return c.shops }
