package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

const defaultPriceKey = "default"

var tokensPerMillion = decimal.NewFromInt(1_000_000)

// Price is USD per one million tokens.
type Price struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

// PriceTable maps model identifiers to prices; the "default" entry is the fallback.
type PriceTable map[string]Price

func price(input, output string) Price {
	return Price{Input: decimal.RequireFromString(input), Output: decimal.RequireFromString(output)}
}

// OpenAIPrices holds approximate list prices.
var OpenAIPrices = PriceTable{
	"gpt-4-turbo":            price("10", "30"),
	"gpt-4":                  price("30", "60"),
	"gpt-3.5-turbo":          price("0.5", "1.5"),
	"text-embedding-3-small": price("0.02", "0"),
	"text-embedding-3-large": price("0.13", "0"),
	defaultPriceKey:          price("2", "6"),
}

var AnthropicPrices = PriceTable{
	"claude-3-opus":      price("15", "75"),
	"claude-3-sonnet":    price("3", "15"),
	"claude-3-haiku":     price("0.25", "1.25"),
	"claude-2.1":         price("8", "24"),
	"claude-2.0":         price("8", "24"),
	"claude-instant-1.2": price("0.8", "2.4"),
	defaultPriceKey:      price("3", "15"),
}

// PricesFor returns the table for a provider slug, or nil when none is known.
func PricesFor(provider string) PriceTable {
	switch NormalizeProviderSlug(provider) {
	case ProviderOpenAI:
		return OpenAIPrices
	case ProviderAnthropic:
		return AnthropicPrices
	default:
		return nil
	}
}

// PricesForModel picks a table from a model's family name, for providers
// that relay another vendor's models. It returns nil for unknown families.
func PricesForModel(model string) PriceTable {
	model = strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(model, "claude-"):
		return AnthropicPrices
	case strings.HasPrefix(model, "gpt-"),
		strings.HasPrefix(model, "text-embedding-"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"):
		return OpenAIPrices
	default:
		return nil
	}
}

// Lookup resolves a model by exact name, then by the longest table key the
// model extends with a "-" suffix (dated snapshots such as gpt-4-0613), then
// falls back to the default entry. gpt-4o is not a gpt-4 snapshot.
func (t PriceTable) Lookup(model string) Price {
	model = strings.ToLower(strings.TrimSpace(model))
	if p, ok := t[model]; ok && model != "" {
		return p
	}
	best := ""
	for key := range t {
		if key == defaultPriceKey {
			continue
		}
		if strings.HasPrefix(model, key+"-") && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return t[best]
	}
	return t[defaultPriceKey]
}

// Cost prices the token counts for a model.
func (t PriceTable) Cost(model string, inputTokens, outputTokens int64) decimal.Decimal {
	return t.Lookup(model).Cost(inputTokens, outputTokens)
}

func (p Price) Cost(inputTokens, outputTokens int64) decimal.Decimal {
	in := decimal.NewFromInt(inputTokens).Mul(p.Input)
	out := decimal.NewFromInt(outputTokens).Mul(p.Output)
	return in.Add(out).Div(tokensPerMillion)
}
