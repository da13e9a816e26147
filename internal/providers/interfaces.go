package providers

import (
	"context"
	"time"

	"github.com/ncecere/spendwatch/internal/models"
)

// DailyUsage is re-exported so callers only depend on this package.
type DailyUsage = models.DailyUsage

var (
	ErrUnauthorized = models.ErrUnauthorized
	ErrRateLimited  = models.ErrRateLimited
)

// UsageFetcher pulls a provider's daily usage for a time window using the
// caller's decrypted credential.
type UsageFetcher interface {
	FetchUsage(ctx context.Context, apiKey string, start, end time.Time) ([]DailyUsage, error)
}

// KeyValidator is implemented by fetchers that can check a credential up front.
type KeyValidator interface {
	ValidateKey(ctx context.Context, apiKey string) error
}
