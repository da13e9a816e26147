package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/timeutil"
)

// Dashboard is the payload behind the overview page.
type Dashboard struct {
	CurrentMonthSpend float64             `json:"currentMonthSpend"`
	LastMonthSpend    float64             `json:"lastMonthSpend"`
	PercentChange     float64             `json:"percentChange"`
	TotalRequests     int64               `json:"totalRequests"`
	ActiveAlerts      int64               `json:"activeAlerts"`
	Providers         []ProviderBreakdown `json:"providers"`
	TopUsage          []LabelUsage        `json:"topUsage"`
	Daily             []DailyPoint        `json:"daily"`
}

// ProviderBreakdown is one provider's share of the current month.
type ProviderBreakdown struct {
	ProviderID   string  `json:"provider_id"`
	ProviderName string  `json:"provider_name"`
	Requests     int64   `json:"requests"`
	CostUSD      float64 `json:"cost_usd"`
	Share        float64 `json:"share"`
}

// LabelUsage is a model or endpoint ranked by spend.
type LabelUsage struct {
	Label        string  `json:"label"`
	ProviderName string  `json:"provider_name"`
	Requests     int64   `json:"requests"`
	CostUSD      float64 `json:"cost_usd"`
}

// DailyPoint is a daily time-series datapoint.
type DailyPoint struct {
	Date     string  `json:"date"`
	Requests int64   `json:"requests"`
	CostUSD  float64 `json:"cost_usd"`
}

// Dashboard compares month-to-date spend with last month and lists the
// breakdowns the overview page renders.
func (s *Service) Dashboard(ctx context.Context, user db.User) (Dashboard, error) {
	now := s.now().UTC()
	today := timeutil.TruncateToDay(now, time.UTC)
	monthStart := timeutil.MonthStart(now, time.UTC)
	lastMonthStart := monthStart.AddDate(0, -1, 0)
	lastMonthEnd := monthStart.AddDate(0, 0, -1)

	current, err := s.store.SumUsageForUser(ctx, db.SumUsageForUserParams{
		UserID:    user.ID,
		StartDate: pgDate(monthStart),
		EndDate:   pgDate(today),
	})
	if err != nil {
		return Dashboard{}, fmt.Errorf("sum current month: %w", err)
	}
	previous, err := s.store.SumUsageForUser(ctx, db.SumUsageForUserParams{
		UserID:    user.ID,
		StartDate: pgDate(lastMonthStart),
		EndDate:   pgDate(lastMonthEnd),
	})
	if err != nil {
		return Dashboard{}, fmt.Errorf("sum last month: %w", err)
	}
	activeAlerts, err := s.store.CountActiveAlertsByUser(ctx, user.ID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("count alerts: %w", err)
	}

	out := Dashboard{
		CurrentMonthSpend: current.CostUsd.InexactFloat64(),
		LastMonthSpend:    previous.CostUsd.InexactFloat64(),
		PercentChange:     percentChange(current.CostUsd, previous.CostUsd),
		TotalRequests:     current.Requests,
		ActiveAlerts:      activeAlerts,
		Providers:         []ProviderBreakdown{},
		TopUsage:          []LabelUsage{},
	}

	byProvider, err := s.store.SumUsageByProvider(ctx, db.SumUsageByProviderParams{
		StartDate: pgDate(monthStart),
		EndDate:   pgDate(today),
		UserID:    user.ID,
	})
	if err != nil {
		return Dashboard{}, fmt.Errorf("sum by provider: %w", err)
	}
	for _, row := range byProvider {
		share := 0.0
		if current.CostUsd.IsPositive() {
			share = row.CostUsd.Div(current.CostUsd).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
		}
		out.Providers = append(out.Providers, ProviderBreakdown{
			ProviderID:   db.FromUUID(row.ProviderID).String(),
			ProviderName: row.ProviderName,
			Requests:     row.Requests,
			CostUSD:      row.CostUsd.InexactFloat64(),
			Share:        share,
		})
	}

	labels, err := s.store.TopUsageLabels(ctx, db.TopUsageLabelsParams{
		UserID:    user.ID,
		StartDate: pgDate(monthStart),
		EndDate:   pgDate(today),
		RowLimit:  topLabelLimit,
	})
	if err != nil {
		return Dashboard{}, fmt.Errorf("top usage: %w", err)
	}
	for _, row := range labels {
		out.TopUsage = append(out.TopUsage, LabelUsage{
			Label:        row.Label,
			ProviderName: row.ProviderName,
			Requests:     row.Requests,
			CostUSD:      row.CostUsd.InexactFloat64(),
		})
	}

	seriesStart := today.AddDate(0, 0, -(dashboardSeriesDays - 1))
	daily, err := s.store.ListDailyCost(ctx, db.ListDailyCostParams{
		UserID:    user.ID,
		StartDate: pgDate(seriesStart),
		EndDate:   pgDate(today),
	})
	if err != nil {
		return Dashboard{}, fmt.Errorf("daily cost: %w", err)
	}
	out.Daily = buildDailySeries(seriesStart, today, daily)
	return out, nil
}

// buildDailySeries fills every day in [first, last] and zeroes missing days.
func buildDailySeries(first, last time.Time, rows []db.ListDailyCostRow) []DailyPoint {
	byDay := make(map[string]db.ListDailyCostRow, len(rows))
	for _, row := range rows {
		byDay[row.Date.Time.Format(time.DateOnly)] = row
	}
	days := timeutil.DaysInRange(first, last)
	points := make([]DailyPoint, 0, len(days))
	for _, day := range days {
		key := day.Format(time.DateOnly)
		point := DailyPoint{Date: key}
		if row, ok := byDay[key]; ok {
			point.Requests = row.Requests
			point.CostUSD = row.CostUsd.InexactFloat64()
		}
		points = append(points, point)
	}
	return points
}

func percentChange(current, previous decimal.Decimal) float64 {
	if !previous.IsPositive() {
		return 0
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
}
