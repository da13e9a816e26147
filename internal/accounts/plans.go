package accounts

import (
	"strings"
	"time"

	"github.com/ncecere/spendwatch/internal/config"
)

// Tier is a user's subscription level.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// ParseTier falls back to free for unknown values.
func ParseTier(value string) Tier {
	if strings.EqualFold(strings.TrimSpace(value), string(TierPro)) {
		return TierPro
	}
	return TierFree
}

// Plan captures what a tier unlocks.
type Plan struct {
	Tier         Tier `json:"tier"`
	MaxProviders int  `json:"max_providers"` // 0 means unlimited
	HistoryDays  int  `json:"history_days"`
	EmailAlerts  bool `json:"email_alerts"`
}

// Catalog resolves plans by tier.
type Catalog struct {
	free Plan
	pro  Plan
}

// DefaultCatalog mirrors the published pricing page.
func DefaultCatalog() Catalog {
	return Catalog{
		free: Plan{Tier: TierFree, MaxProviders: 2, HistoryDays: 30},
		pro:  Plan{Tier: TierPro, HistoryDays: 365, EmailAlerts: true},
	}
}

func NewCatalog(cfg config.PlansConfig) Catalog {
	return Catalog{
		free: Plan{Tier: TierFree, MaxProviders: cfg.Free.MaxProviders, HistoryDays: cfg.Free.HistoryDays, EmailAlerts: cfg.Free.EmailAlerts},
		pro:  Plan{Tier: TierPro, MaxProviders: cfg.Pro.MaxProviders, HistoryDays: cfg.Pro.HistoryDays, EmailAlerts: cfg.Pro.EmailAlerts},
	}
}

func (c Catalog) For(tier string) Plan {
	if ParseTier(tier) == TierPro {
		return c.pro
	}
	return c.free
}

// AllowsAnotherProvider reports whether a user with activeCount active providers may add one more.
func (p Plan) AllowsAnotherProvider(activeCount int64) bool {
	if p.MaxProviders <= 0 {
		return true
	}
	return activeCount < int64(p.MaxProviders)
}

// HistoryStart is the earliest instant the plan exposes.
func (p Plan) HistoryStart(now time.Time) time.Time {
	if p.HistoryDays <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -p.HistoryDays)
}
