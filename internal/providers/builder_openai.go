package providers

import (
	"context"
	"time"

	native "github.com/ncecere/spendwatch/internal/adapters/openai"
	"github.com/ncecere/spendwatch/internal/catalog"
	"github.com/ncecere/spendwatch/internal/config"
)

func init() {
	RegisterDefinition(Definition{
		Name:         catalog.ProviderOpenAI,
		Description:  "OpenAI usage endpoint, priced per snapshot",
		Capabilities: []string{"usage", "validate_key"},
		Builder:      buildOpenAIFetcher,
	})
}

type openAIFetcher struct {
	baseURL string
	timeout time.Duration
}

func buildOpenAIFetcher(cfg *config.Config) UsageFetcher {
	cfg = EnsureConfig(cfg)
	return openAIFetcher{
		baseURL: cfg.Providers.OpenAIBaseURL,
		timeout: cfg.Sync.RequestTimeout,
	}
}

func (f openAIFetcher) adapter(apiKey string) (*native.Adapter, error) {
	return native.New(native.Options{
		APIKey:     apiKey,
		BaseURL:    f.baseURL,
		Timeout:    f.timeout,
		MaxRetries: 2,
	})
}

func (f openAIFetcher) FetchUsage(ctx context.Context, apiKey string, start, end time.Time) ([]DailyUsage, error) {
	adapter, err := f.adapter(apiKey)
	if err != nil {
		return nil, err
	}
	return adapter.FetchUsage(ctx, start, end)
}

func (f openAIFetcher) ValidateKey(ctx context.Context, apiKey string) error {
	adapter, err := f.adapter(apiKey)
	if err != nil {
		return err
	}
	return adapter.Validate(ctx)
}
