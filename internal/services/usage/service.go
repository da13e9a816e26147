package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/ncecere/spendwatch/internal/accounts"
	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/timeutil"
)

var ErrProviderNotFound = errors.New("provider not found")

const (
	PeriodWeek  = "7d"
	PeriodMonth = "30d"

	dashboardSeriesDays = 30
	topLabelLimit       = 5
)

// Store is the subset of queries used for reporting.
type Store interface {
	ListProvidersByUser(ctx context.Context, userID pgtype.UUID) ([]db.ApiProvider, error)
	GetProviderForUser(ctx context.Context, arg db.GetProviderForUserParams) (db.ApiProvider, error)
	ListUsageForUser(ctx context.Context, arg db.ListUsageForUserParams) ([]db.ListUsageForUserRow, error)
	SumUsageForUser(ctx context.Context, arg db.SumUsageForUserParams) (db.SumUsageForUserRow, error)
	SumUsageByProvider(ctx context.Context, arg db.SumUsageByProviderParams) ([]db.SumUsageByProviderRow, error)
	TopUsageLabels(ctx context.Context, arg db.TopUsageLabelsParams) ([]db.TopUsageLabelsRow, error)
	ListDailyCost(ctx context.Context, arg db.ListDailyCostParams) ([]db.ListDailyCostRow, error)
	CountActiveAlertsByUser(ctx context.Context, userID pgtype.UUID) (int64, error)
	AddUsageLog(ctx context.Context, arg db.AddUsageLogParams) (db.UsageLog, error)
}

// SyncChecker reports which providers are filled by automatic syncs.
// *providers.Registry satisfies it.
type SyncChecker interface {
	SupportsSync(providerName string) bool
}

// Service exposes usage reporting for the dashboard and export routes.
type Service struct {
	store  Store
	plans  accounts.Catalog
	synced SyncChecker
	now    func() time.Time
}

func NewService(store Store, plans accounts.Catalog, synced SyncChecker) *Service {
	return &Service{store: store, plans: plans, synced: synced, now: time.Now}
}

// Entry is one daily usage row as returned to clients.
type Entry struct {
	ID            uuid.UUID `json:"id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	ProviderName  string    `json:"provider_name"`
	Date          string    `json:"date"`
	RequestsCount int64     `json:"requests_count"`
	TokensUsed    *int64    `json:"tokens_used"`
	CostUSD       float64   `json:"cost_usd"`
	Endpoint      string    `json:"endpoint,omitempty"`
	Model         string    `json:"model,omitempty"`
}

// Summary totals a reporting window.
type Summary struct {
	Period        string  `json:"period"`
	Start         string  `json:"start"`
	End           string  `json:"end"`
	Days          int     `json:"days"`
	TotalCost     float64 `json:"totalCost"`
	TotalRequests int64   `json:"totalRequests"`
	AvgDailyCost  float64 `json:"avgDailyCost"`
}

// Report is the payload for GET /api/usage.
type Report struct {
	Usage   []Entry `json:"usage"`
	Summary Summary `json:"summary"`
}

// ResolvePeriod maps a period name to a UTC window. Unknown names fall back to 30d.
func ResolvePeriod(period string, now time.Time) timeutil.Window {
	switch period {
	case PeriodWeek, PeriodMonth, timeutil.PeriodThisMonth, timeutil.PeriodLastMonth:
	default:
		period = PeriodMonth
	}
	window, err := timeutil.NewWindow(period, now, time.UTC)
	if err != nil {
		window, _ = timeutil.NewWindow(PeriodMonth, now, time.UTC)
	}
	return window
}

// Summary lists usage rows for the window with totals. providerID narrows the
// report to one provider when non-nil.
func (s *Service) Summary(ctx context.Context, user db.User, period string, providerID *uuid.UUID) (Report, error) {
	window, scope, err := s.scope(ctx, user, period, providerID)
	if err != nil {
		return Report{}, err
	}
	report := Report{Usage: []Entry{}, Summary: summaryFor(window)}

	owned, err := s.store.ListProvidersByUser(ctx, user.ID)
	if err != nil {
		return Report{}, fmt.Errorf("list providers: %w", err)
	}
	if len(owned) == 0 {
		return report, nil
	}

	rows, err := s.store.ListUsageForUser(ctx, db.ListUsageForUserParams{
		UserID:     user.ID,
		StartDate:  pgDate(window.FirstDay()),
		EndDate:    pgDate(window.LastDay()),
		ProviderID: scope,
	})
	if err != nil {
		return Report{}, fmt.Errorf("list usage: %w", err)
	}

	total := decimal.Zero
	for _, row := range rows {
		report.Usage = append(report.Usage, toEntry(row))
		total = total.Add(row.CostUsd)
		report.Summary.TotalRequests += row.RequestsCount
	}
	report.Summary.TotalCost = total.InexactFloat64()
	if days := window.Days(); days > 0 {
		report.Summary.AvgDailyCost = total.Div(decimal.NewFromInt(int64(days))).InexactFloat64()
	}
	return report, nil
}

// scope resolves the plan-clamped window and optional provider filter.
func (s *Service) scope(ctx context.Context, user db.User, period string, providerID *uuid.UUID) (timeutil.Window, pgtype.UUID, error) {
	now := s.now().UTC()
	window := ResolvePeriod(period, now)
	plan := s.plans.For(user.SubscriptionTier)
	if earliest := plan.HistoryStart(now); !earliest.IsZero() {
		window = window.ClampStart(timeutil.TruncateToDay(earliest, time.UTC))
	}

	scope := pgtype.UUID{}
	if providerID != nil && *providerID != uuid.Nil {
		if _, err := s.store.GetProviderForUser(ctx, db.GetProviderForUserParams{
			ID:     db.UUID(*providerID),
			UserID: user.ID,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return timeutil.Window{}, scope, ErrProviderNotFound
			}
			return timeutil.Window{}, scope, fmt.Errorf("load provider: %w", err)
		}
		scope = db.UUID(*providerID)
	}
	return window, scope, nil
}

func summaryFor(window timeutil.Window) Summary {
	return Summary{
		Period: window.Period(),
		Start:  window.FirstDay().Format(time.DateOnly),
		End:    window.LastDay().Format(time.DateOnly),
		Days:   window.Days(),
	}
}

func toEntry(row db.ListUsageForUserRow) Entry {
	entry := Entry{
		ID:            db.FromUUID(row.ID),
		ProviderID:    db.FromUUID(row.ProviderID),
		ProviderName:  row.ProviderName,
		Date:          row.Date.Time.Format(time.DateOnly),
		RequestsCount: row.RequestsCount,
		CostUSD:       row.CostUsd.InexactFloat64(),
		Endpoint:      row.Endpoint.String,
		Model:         row.Model.String,
	}
	if row.TokensUsed.Valid {
		tokens := row.TokensUsed.Int64
		entry.TokensUsed = &tokens
	}
	return entry
}

func pgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: t, Valid: true}
}
