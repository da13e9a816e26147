package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnauthorized is matched by upstream errors carrying 401 or 403.
	ErrUnauthorized = errors.New("provider rejected credentials")
	// ErrRateLimited is matched by upstream errors carrying 429.
	ErrRateLimited = errors.New("provider rate limited the request")
)

// DailyUsage is one provider's aggregated usage for a single UTC day.
type DailyUsage struct {
	Date     time.Time       `json:"date"`
	Requests int64           `json:"requests"`
	Tokens   *int64          `json:"tokens,omitempty"`
	CostUSD  decimal.Decimal `json:"cost_usd"`
	Model    string          `json:"model,omitempty"`
	Endpoint string          `json:"endpoint,omitempty"`
}

// UpstreamError describes a non-2xx answer from a provider API.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s api error %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s api error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Is lets callers match status classes with errors.Is.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == 401 || e.StatusCode == 403
	case ErrRateLimited:
		return e.StatusCode == 429
	default:
		return false
	}
}
