// Shopkeeper persona: turns market context plus a free-form utterance into
// in-character haggling banter.
package llm

import (
	"fmt"
	"sort"
	"strings"
)

// ShopContext carries the market awareness every shopkeeper negotiates with.
// Each shop sees the same shared data but speaks with its own voice.
type ShopContext struct {
	ShopName    string
	Competitors []string
	Prices      map[string]int
	Demand      map[string]float64
	Recent      []string // Last few transcript lines, most recent first
}

// ShopkeeperReply generates an in-character response for dialogue that
// carried no structured trade intent.
func ShopkeeperReply(client *Client, ctx ShopContext, utterance string) (string, error) {
	if !client.Enabled() {
		return "", fmt.Errorf("LLM client not configured")
	}

	system := fmt.Sprintf(`You are the shopkeeper of %s, an independent shop in a competitive electronics marketplace. You haggle hard but fair, in character, in 1-3 sentences. Prices are in rupees (₹). Do not invent items outside the listed catalog and do not break character or reference being an AI.

Competing shops: %s
Current market prices: %s
Demand factors: %s
Recent dealings:
%s`,
		ctx.ShopName,
		strings.Join(ctx.Competitors, ", "),
		formatPrices(ctx.Prices),
		formatDemand(ctx.Demand),
		formatRecent(ctx.Recent),
	)

	prompt := fmt.Sprintf("Customer: %s", utterance)
	return client.Complete(system, prompt, 200)
}

func formatPrices(prices map[string]int) string {
	if len(prices) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(prices))
	for name, p := range prices {
		parts = append(parts, fmt.Sprintf("%s ₹%d", name, p))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func formatDemand(demand map[string]float64) string {
	if len(demand) == 0 {
		return "(normal)"
	}
	parts := make([]string, 0, len(demand))
	for name, d := range demand {
		parts = append(parts, fmt.Sprintf("%s %.2f", name, d))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func formatRecent(recent []string) string {
	if len(recent) == 0 {
		return "(no prior dealings)"
	}
	var b strings.Builder
	for _, line := range recent {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
