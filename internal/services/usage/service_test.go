package usage

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/spendwatch/internal/accounts"
	"github.com/ncecere/spendwatch/internal/config"
	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/providers"
)

type fakeStore struct {
	providers []db.ApiProvider
	rows      []db.ListUsageForUserRow
	lastUsage db.ListUsageForUserParams
	sums      map[string]db.SumUsageForUserRow
	byProv    []db.SumUsageByProviderRow
	labels    []db.TopUsageLabelsRow
	daily     []db.ListDailyCostRow
	alerts    int64
	added     []db.AddUsageLogParams
}

func (f *fakeStore) ListProvidersByUser(_ context.Context, userID pgtype.UUID) ([]db.ApiProvider, error) {
	var out []db.ApiProvider
	for _, p := range f.providers {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProviderForUser(_ context.Context, arg db.GetProviderForUserParams) (db.ApiProvider, error) {
	for _, p := range f.providers {
		if p.ID == arg.ID && p.UserID == arg.UserID {
			return p, nil
		}
	}
	return db.ApiProvider{}, pgx.ErrNoRows
}

func (f *fakeStore) ListUsageForUser(_ context.Context, arg db.ListUsageForUserParams) ([]db.ListUsageForUserRow, error) {
	f.lastUsage = arg
	return f.rows, nil
}

func (f *fakeStore) SumUsageForUser(_ context.Context, arg db.SumUsageForUserParams) (db.SumUsageForUserRow, error) {
	return f.sums[arg.StartDate.Time.Format(time.DateOnly)], nil
}

func (f *fakeStore) SumUsageByProvider(context.Context, db.SumUsageByProviderParams) ([]db.SumUsageByProviderRow, error) {
	return f.byProv, nil
}

func (f *fakeStore) TopUsageLabels(context.Context, db.TopUsageLabelsParams) ([]db.TopUsageLabelsRow, error) {
	return f.labels, nil
}

func (f *fakeStore) ListDailyCost(context.Context, db.ListDailyCostParams) ([]db.ListDailyCostRow, error) {
	return f.daily, nil
}

func (f *fakeStore) CountActiveAlertsByUser(context.Context, pgtype.UUID) (int64, error) {
	return f.alerts, nil
}

func (f *fakeStore) AddUsageLog(_ context.Context, arg db.AddUsageLogParams) (db.UsageLog, error) {
	f.added = append(f.added, arg)
	return db.UsageLog{
		ID:            db.UUID(uuid.New()),
		ProviderID:    arg.ProviderID,
		Date:          arg.Date,
		RequestsCount: arg.RequestsCount,
		TokensUsed:    arg.TokensUsed,
		CostUsd:       arg.CostUsd,
		Endpoint:      arg.Endpoint,
		Model:         arg.Model,
	}, nil
}

var fixedNow = time.Date(2024, time.March, 20, 15, 30, 0, 0, time.UTC)

func newTestService(store *fakeStore) *Service {
	svc := NewService(store, accounts.DefaultCatalog(), providers.NewRegistry(&config.Config{}))
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func day(d int) pgtype.Date {
	return pgtype.Date{Time: time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

func TestResolvePeriod(t *testing.T) {
	tests := []struct {
		period    string
		wantStart time.Time
		wantEnd   time.Time
		wantDays  int
	}{
		{"7d", fixedNow.AddDate(0, 0, -7), fixedNow, 7},
		{"30d", fixedNow.AddDate(0, 0, -30), fixedNow, 30},
		{"", fixedNow.AddDate(0, 0, -30), fixedNow, 30},
		{"90d", fixedNow.AddDate(0, 0, -30), fixedNow, 30},
		{"this_month", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), 31},
		{"last_month", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 29},
	}
	for _, tt := range tests {
		w := ResolvePeriod(tt.period, fixedNow)
		if !w.Start().Equal(tt.wantStart) || !w.End().Equal(tt.wantEnd) {
			t.Errorf("%q: got [%s, %s)", tt.period, w.Start(), w.End())
		}
		if w.Days() != tt.wantDays {
			t.Errorf("%q: want %d days, got %d", tt.period, tt.wantDays, w.Days())
		}
	}
}

func TestSummaryTotalsAndAverage(t *testing.T) {
	user := db.User{ID: db.UUID(uuid.New()), SubscriptionTier: "pro"}
	provider := db.ApiProvider{ID: db.UUID(uuid.New()), UserID: user.ID, ProviderName: "openai"}
	store := &fakeStore{
		providers: []db.ApiProvider{provider},
		rows: []db.ListUsageForUserRow{
			{ID: db.UUID(uuid.New()), ProviderID: provider.ID, ProviderName: "openai", Date: day(14), RequestsCount: 10, CostUsd: decimal.RequireFromString("4.00"), TokensUsed: pgtype.Int8{Int64: 900, Valid: true}},
			{ID: db.UUID(uuid.New()), ProviderID: provider.ID, ProviderName: "openai", Date: day(15), RequestsCount: 5, CostUsd: decimal.RequireFromString("3.00")},
		},
	}
	svc := newTestService(store)

	report, err := svc.Summary(context.Background(), user, "7d", nil)
	require.NoError(t, err)
	require.Len(t, report.Usage, 2)
	require.Equal(t, "2024-03-14", report.Usage[0].Date)
	require.Equal(t, int64(900), *report.Usage[0].TokensUsed)
	require.Nil(t, report.Usage[1].TokensUsed)
	require.Equal(t, 7.0, report.Summary.TotalCost)
	require.Equal(t, int64(15), report.Summary.TotalRequests)
	require.Equal(t, 1.0, report.Summary.AvgDailyCost)
	require.Equal(t, "2024-03-13", report.Summary.Start)
	require.Equal(t, "2024-03-20", report.Summary.End)
	require.False(t, store.lastUsage.ProviderID.Valid)

	pid := db.FromUUID(provider.ID)
	_, err = svc.Summary(context.Background(), user, "7d", &pid)
	require.NoError(t, err)
	require.Equal(t, provider.ID, store.lastUsage.ProviderID)

	foreign := uuid.New()
	_, err = svc.Summary(context.Background(), user, "7d", &foreign)
	require.ErrorIs(t, err, ErrProviderNotFound)
}

func TestSummaryWithoutProvidersIsZero(t *testing.T) {
	svc := newTestService(&fakeStore{rows: []db.ListUsageForUserRow{{RequestsCount: 99}}})
	report, err := svc.Summary(context.Background(), db.User{ID: db.UUID(uuid.New())}, "30d", nil)
	require.NoError(t, err)
	require.Empty(t, report.Usage)
	require.Zero(t, report.Summary.TotalCost)
	require.Zero(t, report.Summary.AvgDailyCost)
}

func TestSummaryClampsFreeHistory(t *testing.T) {
	user := db.User{ID: db.UUID(uuid.New()), SubscriptionTier: "free"}
	store := &fakeStore{providers: []db.ApiProvider{{ID: db.UUID(uuid.New()), UserID: user.ID}}}
	svc := newTestService(store)

	report, err := svc.Summary(context.Background(), user, "last_month", nil)
	require.NoError(t, err)
	// Free plans see 30 days back from March 20th.
	require.Equal(t, "2024-02-19", report.Summary.Start)
	require.Equal(t, "2024-02-29", report.Summary.End)
	require.Equal(t, "2024-02-19", store.lastUsage.StartDate.Time.Format(time.DateOnly))
}

func TestDashboard(t *testing.T) {
	user := db.User{ID: db.UUID(uuid.New())}
	openaiID := db.UUID(uuid.New())
	store := &fakeStore{
		sums: map[string]db.SumUsageForUserRow{
			"2024-03-01": {Requests: 120, CostUsd: decimal.RequireFromString("75")},
			"2024-02-01": {Requests: 80, CostUsd: decimal.RequireFromString("50")},
		},
		byProv: []db.SumUsageByProviderRow{
			{ProviderID: openaiID, ProviderName: "openai", Requests: 100, CostUsd: decimal.RequireFromString("60")},
			{ProviderID: db.UUID(uuid.New()), ProviderName: "anthropic", Requests: 20, CostUsd: decimal.RequireFromString("15")},
		},
		labels: []db.TopUsageLabelsRow{{Label: "gpt-4", ProviderName: "openai", Requests: 50, CostUsd: decimal.RequireFromString("40")}},
		daily:  []db.ListDailyCostRow{{Date: day(19), Requests: 7, CostUsd: decimal.RequireFromString("2.5")}},
		alerts: 3,
	}
	dash, err := newTestService(store).Dashboard(context.Background(), user)
	require.NoError(t, err)

	require.Equal(t, 75.0, dash.CurrentMonthSpend)
	require.Equal(t, 50.0, dash.LastMonthSpend)
	require.Equal(t, 50.0, dash.PercentChange)
	require.Equal(t, int64(120), dash.TotalRequests)
	require.Equal(t, int64(3), dash.ActiveAlerts)
	require.Len(t, dash.Providers, 2)
	require.Equal(t, 80.0, dash.Providers[0].Share)
	require.Equal(t, 20.0, dash.Providers[1].Share)
	require.Equal(t, "gpt-4", dash.TopUsage[0].Label)

	require.Len(t, dash.Daily, 30)
	require.Equal(t, "2024-02-20", dash.Daily[0].Date)
	require.Equal(t, "2024-03-20", dash.Daily[29].Date)
	require.Equal(t, 2.5, dash.Daily[28].CostUSD)
	require.Zero(t, dash.Daily[29].CostUSD)
}

func TestPercentChangeWithoutPreviousSpend(t *testing.T) {
	if got := percentChange(decimal.NewFromInt(10), decimal.Zero); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := percentChange(decimal.NewFromInt(5), decimal.NewFromInt(10)); got != -50 {
		t.Fatalf("expected -50, got %v", got)
	}
}

func TestExportCSV(t *testing.T) {
	user := db.User{ID: db.UUID(uuid.New()), SubscriptionTier: "pro"}
	provider := db.ApiProvider{ID: db.UUID(uuid.New()), UserID: user.ID, ProviderName: "openai"}
	store := &fakeStore{
		providers: []db.ApiProvider{provider},
		rows: []db.ListUsageForUserRow{
			{ProviderID: provider.ID, ProviderName: "openai", Date: day(14), RequestsCount: 10, CostUsd: decimal.RequireFromString("4.25"),
				TokensUsed: pgtype.Int8{Int64: 900, Valid: true}, Model: pgtype.Text{String: "gpt-4, turbo", Valid: true}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, newTestService(store).ExportCSV(context.Background(), user, "30d", nil, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, "date,provider,model,endpoint,requests,tokens,cost_usd", lines[0])
	require.Equal(t, `2024-03-14,openai,"gpt-4, turbo",,10,900,4.25`, lines[1])
}

func TestRecordManual(t *testing.T) {
	user := db.User{ID: db.UUID(uuid.New())}
	relay := db.ApiProvider{ID: db.UUID(uuid.New()), UserID: user.ID, ProviderName: "custom"}
	sendgrid := db.ApiProvider{ID: db.UUID(uuid.New()), UserID: user.ID, ProviderName: "sendgrid"}
	store := &fakeStore{providers: []db.ApiProvider{relay, sendgrid}}
	svc := newTestService(store)
	ctx := context.Background()

	entry, err := svc.RecordManual(ctx, user, db.FromUUID(relay.ID), ManualEntry{
		Date: "2024-03-18", Requests: 3, InputTokens: 1_000_000, OutputTokens: 1_000_000, Model: "claude-3-haiku-20240307",
	})
	require.NoError(t, err)
	require.Equal(t, "2024-03-18", entry.Date)
	require.Equal(t, 1.5, entry.CostUSD)
	require.Equal(t, int64(2_000_000), *entry.TokensUsed)
	require.Equal(t, "custom", entry.ProviderName)

	cost := decimal.RequireFromString("12.40")
	entry, err = svc.RecordManual(ctx, user, db.FromUUID(sendgrid.ID), ManualEntry{Requests: 1000, CostUSD: &cost})
	require.NoError(t, err)
	require.Equal(t, "2024-03-20", entry.Date)
	require.Equal(t, 12.4, entry.CostUSD)

	_, err = svc.RecordManual(ctx, user, db.FromUUID(sendgrid.ID), ManualEntry{InputTokens: 10})
	require.ErrorIs(t, err, ErrCostUnavailable)
	_, err = svc.RecordManual(ctx, user, db.FromUUID(sendgrid.ID), ManualEntry{Date: "03/18/2024"})
	require.ErrorIs(t, err, ErrInvalidDate)
	_, err = svc.RecordManual(ctx, user, db.FromUUID(sendgrid.ID), ManualEntry{Date: "2024-03-21"})
	require.ErrorIs(t, err, ErrFutureDate)
	require.True(t, IsValidation(err))
	_, err = svc.RecordManual(ctx, user, uuid.New(), ManualEntry{})
	require.ErrorIs(t, err, ErrProviderNotFound)
	require.Len(t, store.added, 2)
}

func TestRecordManualRejectsSyncedProviders(t *testing.T) {
	user := db.User{ID: db.UUID(uuid.New())}
	store := &fakeStore{}
	for _, name := range []string{"openai", "anthropic"} {
		store.providers = append(store.providers, db.ApiProvider{ID: db.UUID(uuid.New()), UserID: user.ID, ProviderName: name})
	}
	svc := newTestService(store)

	cost := decimal.RequireFromString("5")
	for _, provider := range store.providers {
		_, err := svc.RecordManual(context.Background(), user, db.FromUUID(provider.ID), ManualEntry{Requests: 1, CostUSD: &cost})
		require.ErrorIs(t, err, ErrSyncedProvider, provider.ProviderName)
		require.True(t, IsValidation(err))
	}
	require.Empty(t, store.added)
}
