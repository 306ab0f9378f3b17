package bazaar

import (
	"errors"
	"strings"
	"testing"

	"github.com/talgya/electro-bazaar/internal/catalog"
	"github.com/talgya/electro-bazaar/internal/entropy"
	"github.com/talgya/electro-bazaar/internal/llm"
	"github.com/talgya/electro-bazaar/internal/market"
	"github.com/talgya/electro-bazaar/internal/portfolio"
	"github.com/talgya/electro-bazaar/internal/session"
	"github.com/talgya/electro-bazaar/internal/shop"
	"github.com/talgya/electro-bazaar/internal/trade"
)

// newTestCore builds a core with pinned entropy so verdicts are deterministic.
// Fixed(0) selects the low end of every flexibility band.
func newTestCore(t *testing.T, opts ...Option) *Core {
	t.Helper()
	cat := catalog.Default()
	src := entropy.Fixed(0)
	return New(
		cat,
		shop.Default(),
		market.New(cat, src),
		session.NewManager(portfolio.DefaultSeed()),
		trade.NewArbiter(cat, src),
		opts...,
	)
}

func TestEvaluateMessageSettlesDirectBuy(t *testing.T) {
	c := newTestCore(t)

	// ElectroMart discounts Bulbs: reference 47, low-band floor 40.
	res, err := c.EvaluateMessage("", 1, "buy 2 bulbs for ₹50")
	if err != nil {
		t.Fatal(err)
	}
	if res.SessionID == "" {
		t.Fatal("no session id assigned")
	}
	if !res.Settled || res.Transaction == nil {
		t.Fatalf("not settled: %+v", res)
	}
	if res.Transaction.Total != 100 {
		t.Fatalf("total = %d", res.Transaction.Total)
	}
	if !strings.Contains(res.Reply, "Deal!") {
		t.Fatalf("reply = %q", res.Reply)
	}

	summary, err := c.PortfolioSummary(res.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Wallet != 900 {
		t.Fatalf("wallet = %d, want 900", summary.Wallet)
	}
}

func TestEvaluateMessageCounterThenAcceptance(t *testing.T) {
	c := newTestCore(t)

	res, err := c.EvaluateMessage("haggler", 1, "buy 2 bulbs for ₹10")
	if err != nil {
		t.Fatal(err)
	}
	if res.Settled {
		t.Fatal("lowball settled")
	}
	// The rejection names the shop's counter price.
	if !strings.Contains(res.Reply, "₹40") {
		t.Fatalf("reply = %q", res.Reply)
	}

	// Plain acceptance settles the counter from the transcript.
	res, err = c.EvaluateMessage("haggler", 1, "ok deal")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Settled || res.Transaction == nil {
		t.Fatalf("acceptance did not settle: %+v", res)
	}
	if res.Transaction.UnitPrice != 40 || res.Transaction.Quantity != 2 {
		t.Fatalf("txn = %+v", res.Transaction)
	}

	// A second "ok" has nothing live to accept; the settled record is history.
	res, err = c.EvaluateMessage("haggler", 1, "ok")
	if err != nil {
		t.Fatal(err)
	}
	if res.Settled {
		t.Fatal("acceptance replayed a settled trade")
	}
}

func TestEvaluateMessageGuards(t *testing.T) {
	c := newTestCore(t)

	res, err := c.EvaluateMessage("s", 1, "buy 100 batteries for ₹100")
	if err != nil {
		t.Fatal(err)
	}
	if res.Settled || !strings.Contains(res.Reply, "short") {
		t.Fatalf("funds guard reply = %q", res.Reply)
	}

	res, err = c.EvaluateMessage("s", 1, "sell 50 bulbs at ₹40")
	if err != nil {
		t.Fatal(err)
	}
	if res.Settled || !strings.Contains(res.Reply, "only carry") {
		t.Fatalf("stock guard reply = %q", res.Reply)
	}
}

func TestEvaluateMessageUnknownItemAndBadNumbers(t *testing.T) {
	c := newTestCore(t)

	res, err := c.EvaluateMessage("s", 1, "buy 2 sprockets for ₹10")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "sprockets") || !strings.Contains(res.Reply, "Bulb") {
		t.Fatalf("unknown item reply = %q", res.Reply)
	}

	res, err = c.EvaluateMessage("s", 1, "buy 0 bulbs for ₹10")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "positive whole numbers") {
		t.Fatalf("bad numbers reply = %q", res.Reply)
	}
}

func TestEvaluateMessageRejectsUnknownShop(t *testing.T) {
	c := newTestCore(t)
	if _, err := c.EvaluateMessage("s", 99, "hello"); err == nil {
		t.Fatal("expected error for unknown shop")
	}
}

func TestFallbackDialogue(t *testing.T) {
	var gotCtx llm.ShopContext
	c := newTestCore(t, WithDialogue(func(ctx llm.ShopContext, utterance string) (string, error) {
		gotCtx = ctx
		return "Fine weather for haggling, friend.", nil
	}))

	res, err := c.EvaluateMessage("s", 2, "lovely day, isn't it")
	if err != nil {
		t.Fatal(err)
	}
	if res.Settled {
		t.Fatal("chatter settled a trade")
	}
	if res.Reply != "Fine weather for haggling, friend." {
		t.Fatalf("reply = %q", res.Reply)
	}
	if gotCtx.ShopName != "CircuitWorld" {
		t.Fatalf("shop name = %q", gotCtx.ShopName)
	}
	if len(gotCtx.Competitors) != 2 {
		t.Fatalf("competitors = %v", gotCtx.Competitors)
	}
	if gotCtx.Prices["Bulb"] == 0 {
		t.Fatal("market prices missing from dialogue context")
	}
}

func TestFallbackDialogueErrorDegradesToApology(t *testing.T) {
	c := newTestCore(t, WithDialogue(func(ctx llm.ShopContext, utterance string) (string, error) {
		return "", errors.New("api down")
	}))

	res, err := c.EvaluateMessage("s", 1, "lovely day, isn't it")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "not sure what you want to trade") {
		t.Fatalf("reply = %q", res.Reply)
	}
}

func TestNoDialogueConfiguredStillReplies(t *testing.T) {
	c := newTestCore(t)
	res, err := c.EvaluateMessage("s", 1, "tell me about yourself")
	if err != nil {
		t.Fatal(err)
	}
	if res.Reply == "" {
		t.Fatal("empty reply")
	}
}

func TestResetPortfolio(t *testing.T) {
	c := newTestCore(t)

	res, err := c.EvaluateMessage("s", 1, "buy 2 bulbs for ₹50")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Settled {
		t.Fatal("setup trade did not settle")
	}

	if err := c.ResetPortfolio("s"); err != nil {
		t.Fatal(err)
	}
	summary, err := c.PortfolioSummary("s")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Wallet != 1000 {
		t.Fatalf("wallet after reset = %d", summary.Wallet)
	}

	if err := c.ResetPortfolio("missing"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestInventoryLine(t *testing.T) {
	c := newTestCore(t)
	if _, err := c.EvaluateMessage("s", 1, "hello"); err != nil {
		t.Fatal(err)
	}

	line, err := c.InventoryLine("s")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(line, "Bulb (x5) - ₹50") {
		t.Fatalf("line = %q", line)
	}
	if !strings.Contains(line, "Battery (x3) - ₹100") {
		t.Fatalf("line = %q", line)
	}
}

func TestDemandNudgeAfterSettlement(t *testing.T) {
	c := newTestCore(t)

	if _, err := c.EvaluateMessage("s", 1, "buy 2 bulbs for ₹50"); err != nil {
		t.Fatal(err)
	}
	snap := c.market.Snapshot()
	if snap.Demand["Bulb"] <= 1.0 {
		t.Fatalf("demand after buy = %g, want > 1", snap.Demand["Bulb"])
	}
}
