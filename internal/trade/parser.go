// Free-text negotiation parser. Three recognized shapes, tried in priority
// order: direct command, acceptance of a prior shop offer, counter-offer.
// Anything else is ParsedNone and belongs to the dialogue fallback.
package trade

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/talgya/electro-bazaar/internal/catalog"
	"github.com/talgya/electro-bazaar/internal/shop"
)

// offerLookback bounds how many prior shop lines acceptance and counter
// resolution may scan.
const offerLookback = 3

var (
	// Numeric tokens accept comma grouping ("1,200") since both users and
	// shop replies write large rupee amounts that way; commas are stripped
	// before conversion.

	// Direct command: verb, quantity, item token, then a price token with
	// optional connective and currency marker.
	// e.g. "buy 5 wires for ₹22", "sell 3 batteries @ 90", "purchase 2 bulb 45"
	directRe = regexp.MustCompile(`(?i)\b(buy|purchase|acquire|sell|offer|give)\b\s+(\d[\d,]*)\s*x?\s*([a-zA-Z]+)[^0-9₹$]*(?:₹|rs\.?|\$)?\s*(\d[\d,]*)`)

	// Directional offer embedded in prior shop dialogue,
	// e.g. "I can sell you 5 Wires for ₹22".
	offerRe = regexp.MustCompile(`(?i)\b(buy|sell)\b(?:\s+you)?\s+(\d[\d,]*)\s+([a-zA-Z]+)\s+(?:for|at)\s+(?:₹|rs\.?|\$)?\s*(\d[\d,]*)`)

	// Counter sub-pattern: quantity, item, price in one utterance,
	// e.g. "how about 5 wires for 18".
	counterFullRe = regexp.MustCompile(`(?i)\b(\d[\d,]*)\s*x?\s*([a-zA-Z]+)\b[^0-9₹$]*(?:₹|rs\.?|\$)?\s*(\d[\d,]*)`)

	// Counter sub-pattern: price then item, quantity recovered from the
	// prior shop offer, e.g. "I'll pay ₹40 per bulb".
	counterPriceRe = regexp.MustCompile(`(?i)(?:₹|rs\.?|\$)\s*(\d[\d,]*)\s*(?:for|per|each)?\s*(?:a\s+|an\s+|the\s+)?([a-zA-Z]+)|\b(\d[\d,]*)\s+(?:for|per|each)\s+(?:a\s+|an\s+|the\s+)?([a-zA-Z]+)`)

	acceptWordRe = regexp.MustCompile(`(?i)\b(accept|accepted|deal|ok|okay|yes|yep|agreed|done|sure|fine)\b`)
)

var acceptPhrases = []string{"sounds good", "i'll take it", "ill take it", "you got it"}

var counterPhrases = []string{
	"how about", "what about", "counter", "i propose", "propose",
	"i'll pay", "ill pay", "i'll give", "ill give", "i'll do", "ill do",
	"instead", "can you do", "could you do", "make it",
}

var buyVerbs = map[string]bool{"buy": true, "purchase": true, "acquire": true}

// Parser extracts structured trade intents from raw utterances.
type Parser struct {
	cat *catalog.Catalog
}

// NewParser creates a parser bound to the fixed catalog.
func NewParser(cat *catalog.Catalog) *Parser {
	return &Parser{cat: cat}
}

// Parse interprets one utterance against a shop's recent transcript window.
// recent must be the shop's prior lines, most recent first; only the first
// offerLookback entries are consulted.
func (p *Parser) Parse(utterance string, sh shop.Shop, recent []Entry) ParseResult {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return ParseResult{Kind: ParsedNone}
	}
	if len(recent) > offerLookback {
		recent = recent[:offerLookback]
	}

	if res, ok := p.parseDirect(text, sh); ok {
		return res
	}
	if res, ok := p.parseAcceptance(text, sh, recent); ok {
		return res
	}
	if res, ok := p.parseCounter(text, sh, recent); ok {
		return res
	}
	return ParseResult{Kind: ParsedNone}
}

// parseDirect matches an imperative trade command.
func (p *Parser) parseDirect(text string, sh shop.Shop) (ParseResult, bool) {
	m := directRe.FindStringSubmatch(text)
	if m == nil {
		return ParseResult{}, false
	}

	dir := Sell
	if buyVerbs[strings.ToLower(m[1])] {
		dir = Buy
	}

	item, ok := p.cat.Lookup(m[3])
	if !ok {
		// A recognized verb with an unmatched item is user-correctable,
		// not fallback material.
		return ParseResult{Kind: ParsedUnknownItem, ItemToken: m[3]}, true
	}

	qty, price, ok := positiveInts(m[2], m[4])
	if !ok {
		return ParseResult{Kind: ParsedBadNumbers}, true
	}

	return ParseResult{
		Kind: ParsedIntent,
		Intent: TradeIntent{
			Direction: dir,
			Item:      item,
			Quantity:  qty,
			UnitPrice: price,
			Shop:      sh.ID,
		},
	}, true
}

// parseAcceptance matches "take the deal" phrasing and reconstructs the
// intent from the most recent shop offer it can find.
func (p *Parser) parseAcceptance(text string, sh shop.Shop, recent []Entry) (ParseResult, bool) {
	if !isAcceptance(text) {
		return ParseResult{}, false
	}

	for _, e := range recent {
		if e.Txn != nil {
			// A settlement consumes the offers that led to it.
			break
		}
		intent, ok := p.offerFromLine(e.Text, sh)
		if !ok {
			continue
		}
		return ParseResult{Kind: ParsedIntent, Intent: intent}, true
	}
	// Acceptance with nothing to accept reads as small talk.
	return ParseResult{}, false
}

// parseCounter matches counter-offer phrasing. Tries a full qty/item/price
// form first, then price-and-item with the quantity recovered from the last
// shop offer.
func (p *Parser) parseCounter(text string, sh shop.Shop, recent []Entry) (ParseResult, bool) {
	if !hasCounterSignal(text) {
		return ParseResult{}, false
	}

	dir := counterDirection(recent)

	if m := counterFullRe.FindStringSubmatch(text); m != nil {
		if item, ok := p.cat.Lookup(m[2]); ok {
			qty, price, ok := positiveInts(m[1], m[3])
			if !ok {
				return ParseResult{Kind: ParsedBadNumbers}, true
			}
			return ParseResult{
				Kind: ParsedIntent,
				Intent: TradeIntent{
					Direction: dir,
					Item:      item,
					Quantity:  qty,
					UnitPrice: price,
					Shop:      sh.ID,
				},
			}, true
		}
	}

	if m := counterPriceRe.FindStringSubmatch(text); m != nil {
		priceTok, itemTok := m[1], m[2]
		if priceTok == "" {
			priceTok, itemTok = m[3], m[4]
		}
		item, ok := p.cat.Lookup(itemTok)
		if !ok {
			return ParseResult{}, false
		}
		price, ok := parsePositive(priceTok)
		if !ok {
			return ParseResult{Kind: ParsedBadNumbers}, true
		}

		qty := 1
		for _, e := range recent {
			if e.Txn != nil {
				break
			}
			if offer, found := p.offerFromLine(e.Text, sh); found && offer.Item == item {
				qty = offer.Quantity
				break
			}
		}
		return ParseResult{
			Kind: ParsedIntent,
			Intent: TradeIntent{
				Direction: dir,
				Item:      item,
				Quantity:  qty,
				UnitPrice: price,
				Shop:      sh.ID,
			},
		}, true
	}

	return ParseResult{}, false
}

// offerFromLine reconstructs a user-side intent from a shop's offer line.
// The shop selling means the user buys, and vice versa.
func (p *Parser) offerFromLine(line string, sh shop.Shop) (TradeIntent, bool) {
	m := offerRe.FindStringSubmatch(line)
	if m == nil {
		return TradeIntent{}, false
	}
	item, ok := p.cat.Lookup(m[3])
	if !ok {
		return TradeIntent{}, false
	}
	qty, price, ok := positiveInts(m[2], m[4])
	if !ok {
		return TradeIntent{}, false
	}

	dir := Buy
	if strings.EqualFold(m[1], "buy") {
		dir = Sell
	}
	return TradeIntent{
		Direction: dir,
		Item:      item,
		Quantity:  qty,
		UnitPrice: price,
		Shop:      sh.ID,
	}, true
}

// isAcceptance reports whether the utterance accepts a prior offer and does
// not simultaneously counter it ("ok, how about 18" is a counter).
func isAcceptance(text string) bool {
	if hasCounterSignal(text) {
		return false
	}
	lower := strings.ToLower(text)
	for _, phrase := range acceptPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return acceptWordRe.MatchString(text)
}

func hasCounterSignal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range counterPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// counterDirection infers the user's side from phrasing cues in the shop's
// recent lines. A shop that was selling makes the user a buyer. Defaults to
// Buy; users approach shops to purchase far more often than to unload.
func counterDirection(recent []Entry) Direction {
	for _, e := range recent {
		lower := strings.ToLower(e.Text)
		switch {
		case strings.Contains(lower, "i can sell"), strings.Contains(lower, "buy from me"),
			strings.Contains(lower, "sell you"):
			return Buy
		case strings.Contains(lower, "i can buy"), strings.Contains(lower, "sell to me"),
			strings.Contains(lower, "buy from you"):
			return Sell
		}
	}
	return Buy
}

// parsePositive converts one numeric token, tolerating comma grouping.
func parsePositive(tok string) (int, bool) {
	n, err := strconv.Atoi(strings.ReplaceAll(tok, ",", ""))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// positiveInts parses two decimal tokens that must both be strictly positive.
func positiveInts(a, b string) (int, int, bool) {
	x, ok := parsePositive(a)
	if !ok {
		return 0, 0, false
	}
	y, ok := parsePositive(b)
	if !ok {
		return 0, 0, false
	}
	return x, y, true
}
