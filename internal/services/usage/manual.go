package usage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/ncecere/spendwatch/internal/catalog"
	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/timeutil"
)

var (
	ErrInvalidDate     = errors.New("date must be formatted YYYY-MM-DD")
	ErrFutureDate      = errors.New("date cannot be in the future")
	ErrNegativeValues  = errors.New("requests, tokens, and cost must not be negative")
	ErrCostUnavailable = errors.New("cost_usd is required when the provider has no price table")
	ErrSyncedProvider  = errors.New("usage for this provider is synced automatically and cannot be entered by hand")
)

// ManualEntry is usage recorded by hand for providers without a usage API.
type ManualEntry struct {
	Date         string           `json:"date"`
	Requests     int64            `json:"requests"`
	InputTokens  int64            `json:"input_tokens"`
	OutputTokens int64            `json:"output_tokens"`
	CostUSD      *decimal.Decimal `json:"cost_usd"`
	Model        string           `json:"model"`
	Endpoint     string           `json:"endpoint"`
}

// IsValidation reports whether err was caused by a bad manual entry.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrFutureDate) ||
		errors.Is(err, ErrNegativeValues) ||
		errors.Is(err, ErrCostUnavailable) ||
		errors.Is(err, ErrSyncedProvider)
}

// RecordManual adds entry to the provider's row for that day. When no cost
// is given it is priced from the provider's token price table, or from the
// model's family table for relaying providers. Providers with a usage API
// are rejected since each sync replaces the day's row.
func (s *Service) RecordManual(ctx context.Context, user db.User, providerID uuid.UUID, entry ManualEntry) (Entry, error) {
	provider, err := s.store.GetProviderForUser(ctx, db.GetProviderForUserParams{
		ID:     db.UUID(providerID),
		UserID: user.ID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrProviderNotFound
		}
		return Entry{}, fmt.Errorf("load provider: %w", err)
	}
	if s.synced != nil && s.synced.SupportsSync(provider.ProviderName) {
		return Entry{}, ErrSyncedProvider
	}

	today := timeutil.TruncateToDay(s.now(), time.UTC)
	day := today
	if raw := strings.TrimSpace(entry.Date); raw != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
		if err != nil {
			return Entry{}, ErrInvalidDate
		}
		day = parsed
	}
	if day.After(today) {
		return Entry{}, ErrFutureDate
	}
	if entry.Requests < 0 || entry.InputTokens < 0 || entry.OutputTokens < 0 {
		return Entry{}, ErrNegativeValues
	}

	cost := decimal.Zero
	switch {
	case entry.CostUSD != nil:
		if entry.CostUSD.IsNegative() {
			return Entry{}, ErrNegativeValues
		}
		cost = *entry.CostUSD
	case entry.InputTokens+entry.OutputTokens > 0:
		prices := catalog.PricesFor(provider.ProviderName)
		if prices == nil {
			prices = catalog.PricesForModel(entry.Model)
		}
		if prices == nil {
			return Entry{}, ErrCostUnavailable
		}
		cost = prices.Cost(entry.Model, entry.InputTokens, entry.OutputTokens)
	}

	params := db.AddUsageLogParams{
		ProviderID:    provider.ID,
		Date:          pgDate(day),
		RequestsCount: entry.Requests,
		CostUsd:       cost,
		Endpoint:      db.Text(strings.TrimSpace(entry.Endpoint)),
		Model:         db.Text(strings.TrimSpace(entry.Model)),
	}
	if tokens := entry.InputTokens + entry.OutputTokens; tokens > 0 {
		params.TokensUsed = pgtype.Int8{Int64: tokens, Valid: true}
	}
	row, err := s.store.AddUsageLog(ctx, params)
	if err != nil {
		return Entry{}, fmt.Errorf("record usage: %w", err)
	}
	return toEntry(db.ListUsageForUserRow{
		ID:            row.ID,
		ProviderID:    row.ProviderID,
		Date:          row.Date,
		RequestsCount: row.RequestsCount,
		TokensUsed:    row.TokensUsed,
		CostUsd:       row.CostUsd,
		Endpoint:      row.Endpoint,
		Model:         row.Model,
		CreatedAt:     row.CreatedAt,
		ProviderName:  provider.ProviderName,
	}), nil
}
