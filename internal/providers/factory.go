package providers

import (
	"context"
	"time"

	"github.com/ncecere/spendwatch/internal/catalog"
	"github.com/ncecere/spendwatch/internal/config"
)

// Builder constructs the usage fetcher for one provider kind.
type Builder func(cfg *config.Config) UsageFetcher

// Registry resolves provider names to usage fetchers.
type Registry struct {
	cfg      *config.Config
	builders map[string]Builder
}

// NewRegistry creates a registry with the default provider definitions.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{cfg: EnsureConfig(cfg), builders: cloneDefaultBuilders()}
}

// Register allows tests or callers to override provider builders.
func (r *Registry) Register(name string, builder Builder) {
	if r.builders == nil {
		r.builders = make(map[string]Builder)
	}
	r.builders[catalog.NormalizeProviderSlug(name)] = builder
}

// Fetcher returns the fetcher for a provider name. Providers without a
// usage API get a fetcher that reports nothing.
func (r *Registry) Fetcher(providerName string) UsageFetcher {
	builder, ok := r.builders[catalog.NormalizeProviderSlug(providerName)]
	if !ok {
		return noopFetcher{}
	}
	return builder(r.cfg)
}

// SupportsSync reports whether a provider has a real usage integration.
func (r *Registry) SupportsSync(providerName string) bool {
	_, ok := r.Fetcher(providerName).(noopFetcher)
	return !ok
}

type noopFetcher struct{}

func (noopFetcher) FetchUsage(context.Context, string, time.Time, time.Time) ([]DailyUsage, error) {
	return nil, nil
}
