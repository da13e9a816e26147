package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/ncecere/spendwatch/internal/accounts"
	"github.com/ncecere/spendwatch/internal/cache"
	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/observability"
	"github.com/ncecere/spendwatch/internal/services/notifications"
)

const (
	TypeBudgetLimit      = "budget_limit"
	TypePercentageChange = "percentage_change"
	TypePriceThreshold   = "price_threshold"

	StatusActive    = "active"
	StatusTriggered = "triggered"
	StatusDisabled  = "disabled"
)

var (
	ErrNotFound         = errors.New("alert not found")
	ErrMissingFields    = errors.New("name, type, and threshold_amount are required")
	ErrInvalidType      = errors.New("type must be budget_limit, percentage_change, or price_threshold")
	ErrInvalidThreshold = errors.New("threshold_amount must be greater than zero")
	ErrInvalidStatus    = errors.New("status must be active, triggered, or disabled")
	ErrUnknownProvider  = errors.New("provider not found")
)

// IsValidation reports whether err was caused by bad client input.
func IsValidation(err error) bool {
	for _, target := range []error{ErrMissingFields, ErrInvalidType, ErrInvalidThreshold, ErrInvalidStatus} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Store is the subset of queries the alerts service needs.
type Store interface {
	ListAlertsByUser(ctx context.Context, userID pgtype.UUID) ([]db.ListAlertsByUserRow, error)
	ListActiveAlertsByUser(ctx context.Context, userID pgtype.UUID) ([]db.Alert, error)
	CreateAlert(ctx context.Context, arg db.CreateAlertParams) (db.Alert, error)
	UpdateAlertStatus(ctx context.Context, arg db.UpdateAlertStatusParams) (db.Alert, error)
	MarkAlertTriggered(ctx context.Context, id pgtype.UUID) error
	DeleteAlertForUser(ctx context.Context, arg db.DeleteAlertForUserParams) (int64, error)
	GetProviderForUser(ctx context.Context, arg db.GetProviderForUserParams) (db.ApiProvider, error)
	SumUsageForUser(ctx context.Context, arg db.SumUsageForUserParams) (db.SumUsageForUserRow, error)
	ListDailyCost(ctx context.Context, arg db.ListDailyCostParams) ([]db.ListDailyCostRow, error)
}

// Alert is the client-facing alert representation.
type Alert struct {
	ID              uuid.UUID  `json:"id"`
	ProviderID      *uuid.UUID `json:"provider_id"`
	ProviderName    string     `json:"provider_name,omitempty"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	ThresholdAmount float64    `json:"threshold_amount"`
	Status          string     `json:"status"`
	LastTriggeredAt *time.Time `json:"last_triggered_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

// CreateInput carries the fields accepted when creating an alert.
type CreateInput struct {
	Name            string
	Type            string
	ThresholdAmount decimal.Decimal
	ProviderID      *uuid.UUID
	Status          string
}

// Options configures alert evaluation.
type Options struct {
	WarningPercent float64
	Plans          accounts.Catalog
	Sink           notifications.Sink
	Cache          *cache.Store
	Metrics        *observability.Provider
	Logger         *slog.Logger
}

// Service owns alert CRUD and threshold evaluation.
type Service struct {
	store   Store
	opts    Options
	warning decimal.Decimal
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(store Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	warning := opts.WarningPercent
	if warning <= 0 || warning >= 100 {
		warning = 80
	}
	return &Service{
		store:   store,
		opts:    opts,
		warning: decimal.NewFromFloat(warning),
		logger:  logger,
		now:     time.Now,
	}
}

// List returns the user's alerts newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Alert, error) {
	rows, err := s.store.ListAlertsByUser(ctx, db.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	out := make([]Alert, 0, len(rows))
	for _, row := range rows {
		a := toAlert(db.Alert{
			ID:              row.ID,
			UserID:          row.UserID,
			ProviderID:      row.ProviderID,
			Name:            row.Name,
			Type:            row.Type,
			ThresholdAmount: row.ThresholdAmount,
			Status:          row.Status,
			LastTriggeredAt: row.LastTriggeredAt,
			CreatedAt:       row.CreatedAt,
			UpdatedAt:       row.UpdatedAt,
		})
		a.ProviderName = row.ProviderName.String
		out = append(out, a)
	}
	return out, nil
}

// Create validates and stores a new alert.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (Alert, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if in.Name == "" || in.Type == "" || in.ThresholdAmount.IsZero() {
		return Alert{}, ErrMissingFields
	}
	if !validType(in.Type) {
		return Alert{}, ErrInvalidType
	}
	// Stored as NUMERIC(14, 2) with a positive CHECK.
	in.ThresholdAmount = in.ThresholdAmount.Round(2)
	if !in.ThresholdAmount.IsPositive() {
		return Alert{}, ErrInvalidThreshold
	}
	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = StatusActive
	}
	if !validStatus(status) {
		return Alert{}, ErrInvalidStatus
	}

	var providerName string
	providerID := pgtype.UUID{}
	if in.ProviderID != nil && *in.ProviderID != uuid.Nil {
		provider, err := s.store.GetProviderForUser(ctx, db.GetProviderForUserParams{
			ID:     db.UUID(*in.ProviderID),
			UserID: db.UUID(userID),
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Alert{}, ErrUnknownProvider
			}
			return Alert{}, fmt.Errorf("load provider: %w", err)
		}
		providerID = provider.ID
		providerName = provider.ProviderName
	}

	row, err := s.store.CreateAlert(ctx, db.CreateAlertParams{
		UserID:          db.UUID(userID),
		ProviderID:      providerID,
		Name:            in.Name,
		Type:            in.Type,
		ThresholdAmount: in.ThresholdAmount,
		Status:          status,
	})
	if err != nil {
		return Alert{}, fmt.Errorf("create alert: %w", err)
	}
	out := toAlert(row)
	out.ProviderName = providerName
	return out, nil
}

// UpdateStatus sets an alert's status. Moving back to active re-arms it.
func (s *Service) UpdateStatus(ctx context.Context, userID, id uuid.UUID, status string) (Alert, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !validStatus(status) {
		return Alert{}, ErrInvalidStatus
	}
	row, err := s.store.UpdateAlertStatus(ctx, db.UpdateAlertStatusParams{
		ID:     db.UUID(id),
		UserID: db.UUID(userID),
		Status: status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Alert{}, ErrNotFound
		}
		return Alert{}, fmt.Errorf("update alert: %w", err)
	}
	return toAlert(row), nil
}

// Delete removes an alert owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	n, err := s.store.DeleteAlertForUser(ctx, db.DeleteAlertForUserParams{
		ID:     db.UUID(id),
		UserID: db.UUID(userID),
	})
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func validType(t string) bool {
	switch t {
	case TypeBudgetLimit, TypePercentageChange, TypePriceThreshold:
		return true
	}
	return false
}

func validStatus(status string) bool {
	switch status {
	case StatusActive, StatusTriggered, StatusDisabled:
		return true
	}
	return false
}

func toAlert(row db.Alert) Alert {
	out := Alert{
		ID:              db.FromUUID(row.ID),
		Name:            row.Name,
		Type:            row.Type,
		ThresholdAmount: row.ThresholdAmount.InexactFloat64(),
		Status:          row.Status,
		CreatedAt:       row.CreatedAt.Time,
	}
	if row.ProviderID.Valid {
		id := db.FromUUID(row.ProviderID)
		out.ProviderID = &id
	}
	if row.LastTriggeredAt.Valid {
		ts := row.LastTriggeredAt.Time
		out.LastTriggeredAt = &ts
	}
	return out
}
