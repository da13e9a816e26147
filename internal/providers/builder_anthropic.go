package providers

import (
	"context"
	"net/http"
	"time"

	native "github.com/ncecere/spendwatch/internal/adapters/anthropic"
	"github.com/ncecere/spendwatch/internal/catalog"
	"github.com/ncecere/spendwatch/internal/config"
)

func init() {
	RegisterDefinition(Definition{
		Name:         catalog.ProviderAnthropic,
		Description:  "Anthropic admin usage report (admin keys only)",
		Capabilities: []string{"usage"},
		Builder:      buildAnthropicFetcher,
	})
}

type anthropicFetcher struct {
	opts native.Options
}

func buildAnthropicFetcher(cfg *config.Config) UsageFetcher {
	cfg = EnsureConfig(cfg)
	timeout := cfg.Sync.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return anthropicFetcher{opts: native.Options{
		BaseURL:    cfg.Providers.AnthropicBaseURL,
		Version:    cfg.Providers.AnthropicVersion,
		HTTPClient: &http.Client{Timeout: timeout},
	}}
}

func (f anthropicFetcher) FetchUsage(ctx context.Context, apiKey string, start, end time.Time) ([]DailyUsage, error) {
	opts := f.opts
	opts.APIKey = apiKey
	adapter, err := native.New(opts)
	if err != nil {
		return nil, err
	}
	return adapter.FetchUsage(ctx, start, end)
}
