package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/services/notifications"
	"github.com/ncecere/spendwatch/internal/timeutil"
)

const (
	dailyLookbackDays = 30
	warningMarkerTTL  = 32 * 24 * time.Hour
)

var hundred = decimal.NewFromInt(100)

// Evaluation is the outcome of checking one alert.
type Evaluation struct {
	AlertID  uuid.UUID
	Type     string
	Value    decimal.Decimal
	Percent  decimal.Decimal
	Severity notifications.Severity
}

// Evaluate checks every active alert for user against stored usage and
// dispatches notifications for alerts crossing the warning or limit level.
func (s *Service) Evaluate(ctx context.Context, user db.User) ([]Evaluation, error) {
	active, err := s.store.ListActiveAlertsByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	if len(active) == 0 {
		return nil, nil
	}
	now := s.now().UTC()
	today := timeutil.TruncateToDay(now, time.UTC)
	monthStart := timeutil.MonthStart(now, time.UTC)
	plan := s.opts.Plans.For(user.SubscriptionTier)

	var (
		out  []Evaluation
		errs []error
	)
	for _, alert := range active {
		value, ok, err := s.measure(ctx, user.ID, alert, today, monthStart)
		if err != nil {
			errs = append(errs, fmt.Errorf("alert %s: %w", db.FromUUID(alert.ID), err))
			continue
		}
		if !ok || !alert.ThresholdAmount.IsPositive() {
			continue
		}
		eval := Evaluation{
			AlertID: db.FromUUID(alert.ID),
			Type:    alert.Type,
			Value:   value,
			Percent: value.Div(alert.ThresholdAmount).Mul(hundred),
		}

		switch {
		case eval.Percent.GreaterThanOrEqual(hundred):
			if err := s.store.MarkAlertTriggered(ctx, alert.ID); err != nil {
				errs = append(errs, fmt.Errorf("mark alert %s: %w", eval.AlertID, err))
				continue
			}
			eval.Severity = notifications.SeverityCritical
		case eval.Percent.GreaterThanOrEqual(s.warning):
			marker := fmt.Sprintf("alert-warning:%s:%s", eval.AlertID, monthStart.Format("2006-01"))
			seen, err := s.opts.Cache.SeenBefore(ctx, marker, warningMarkerTTL)
			if err != nil {
				s.logger.Warn("alert warning dedupe failed", "alert_id", eval.AlertID, "error", err)
			}
			if seen {
				out = append(out, eval)
				continue
			}
			eval.Severity = notifications.SeverityWarning
		}

		if eval.Severity != "" {
			s.opts.Metrics.RecordAlert(alert.Type, string(eval.Severity))
			if err := s.notify(ctx, user, alert, eval, plan.EmailAlerts, now); err != nil {
				s.logger.Error("alert notification failed", "alert_id", eval.AlertID, "error", err)
			}
		}
		out = append(out, eval)
	}
	return out, errors.Join(errs...)
}

func (s *Service) measure(ctx context.Context, userID pgtype.UUID, alert db.Alert, today, monthStart time.Time) (decimal.Decimal, bool, error) {
	switch alert.Type {
	case TypeBudgetLimit:
		row, err := s.store.SumUsageForUser(ctx, db.SumUsageForUserParams{
			UserID:     userID,
			StartDate:  pgDate(monthStart),
			EndDate:    pgDate(today),
			ProviderID: alert.ProviderID,
		})
		if err != nil {
			return decimal.Zero, false, err
		}
		return row.CostUsd, true, nil
	case TypePriceThreshold, TypePercentageChange:
		rows, err := s.store.ListDailyCost(ctx, db.ListDailyCostParams{
			UserID:     userID,
			StartDate:  pgDate(today.AddDate(0, 0, -dailyLookbackDays)),
			EndDate:    pgDate(today),
			ProviderID: alert.ProviderID,
		})
		if err != nil {
			return decimal.Zero, false, err
		}
		if len(rows) == 0 {
			return decimal.Zero, false, nil
		}
		latest := rows[len(rows)-1]
		if alert.Type == TypePriceThreshold {
			return latest.CostUsd, true, nil
		}
		if len(rows) < 2 {
			return decimal.Zero, false, nil
		}
		previous := rows[len(rows)-2]
		if !previous.Date.Time.AddDate(0, 0, 1).Equal(latest.Date.Time) || !previous.CostUsd.IsPositive() {
			return decimal.Zero, false, nil
		}
		change := latest.CostUsd.Sub(previous.CostUsd).Div(previous.CostUsd).Mul(hundred)
		return change, true, nil
	}
	return decimal.Zero, false, nil
}

func (s *Service) notify(ctx context.Context, user db.User, alert db.Alert, eval Evaluation, emailAllowed bool, now time.Time) error {
	if s.opts.Sink == nil {
		return nil
	}
	providerName := "all providers"
	if alert.ProviderID.Valid {
		if provider, err := s.store.GetProviderForUser(ctx, db.GetProviderForUserParams{ID: alert.ProviderID, UserID: user.ID}); err == nil {
			providerName = provider.ProviderName
		}
	}
	return s.opts.Sink.Notify(ctx, notifications.Event{
		UserID:       db.FromUUID(user.ID),
		Email:        user.Email,
		EmailAllowed: emailAllowed,
		AlertID:      eval.AlertID,
		AlertName:    alert.Name,
		AlertType:    alert.Type,
		ProviderName: providerName,
		Severity:     eval.Severity,
		Value:        eval.Value,
		Threshold:    alert.ThresholdAmount,
		Percent:      eval.Percent,
		Timestamp:    now,
	})
}

func pgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: t, Valid: true}
}
