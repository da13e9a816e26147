package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLookupPrefersLongestPrefix(t *testing.T) {
	// gpt-4-turbo-2024-04-09 must not fall back to plain gpt-4 pricing.
	p := OpenAIPrices.Lookup("gpt-4-turbo-2024-04-09")
	require.True(t, p.Input.Equal(decimal.NewFromInt(10)))

	p = OpenAIPrices.Lookup("gpt-4-0613")
	require.True(t, p.Input.Equal(decimal.NewFromInt(30)))

	p = AnthropicPrices.Lookup("claude-3-haiku-20240307")
	require.True(t, p.Output.Equal(decimal.RequireFromString("1.25")))
}

func TestLookupDoesNotMatchSiblingModels(t *testing.T) {
	def := OpenAIPrices[defaultPriceKey]
	for _, model := range []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4o-2024-08-06"} {
		p := OpenAIPrices.Lookup(model)
		if !p.Input.Equal(def.Input) || !p.Output.Equal(def.Output) {
			t.Fatalf("%s: expected default price, got %s/%s", model, p.Input, p.Output)
		}
	}
	require.True(t, AnthropicPrices.Lookup("claude-2.10").Input.Equal(decimal.NewFromInt(3)))
}

func TestLookupFallsBackToDefault(t *testing.T) {
	p := OpenAIPrices.Lookup("o3-mini")
	require.True(t, p.Input.Equal(decimal.NewFromInt(2)))
	require.True(t, p.Output.Equal(decimal.NewFromInt(6)))

	p = AnthropicPrices.Lookup("")
	require.True(t, p.Input.Equal(decimal.NewFromInt(3)))
}

func TestCostPerMillionTokens(t *testing.T) {
	cost := OpenAIPrices.Cost("gpt-3.5-turbo", 2_000_000, 1_000_000)
	require.Equal(t, "2.5", cost.String())

	cost = AnthropicPrices.Cost("claude-3-opus", 1000, 500)
	require.Equal(t, "0.0525", cost.String())
}

func TestPricesForNormalizesSlug(t *testing.T) {
	require.NotNil(t, PricesFor(" OpenAI "))
	require.NotNil(t, PricesFor("claude"))
	require.Nil(t, PricesFor("sendgrid"))
}

func TestPricesForModelFamily(t *testing.T) {
	require.NotNil(t, PricesForModel("claude-3-haiku-20240307"))
	require.True(t, PricesForModel("claude-3-opus").Lookup("claude-3-opus").Input.Equal(decimal.NewFromInt(15)))
	require.True(t, PricesForModel(" GPT-3.5-turbo ").Lookup("gpt-3.5-turbo").Input.Equal(decimal.RequireFromString("0.5")))
	require.NotNil(t, PricesForModel("o3-mini"))
	require.Nil(t, PricesForModel("mixtral-8x7b"))
	require.Nil(t, PricesForModel(""))
}
