package providers

import "github.com/ncecere/spendwatch/internal/config"

// Providers tracked by hand: usage arrives through manual entries only.
var manualProviders = map[string]string{
	"stripe":   "Stripe API (manual tracking)",
	"sendgrid": "SendGrid (manual tracking)",
	"nansen":   "Nansen (manual tracking)",
	"custom":   "Custom API (manual tracking)",
}

func init() {
	for name, description := range manualProviders {
		RegisterDefinition(Definition{
			Name:         name,
			Description:  description,
			Capabilities: []string{"manual"},
			Builder:      func(*config.Config) UsageFetcher { return noopFetcher{} },
		})
	}
}
