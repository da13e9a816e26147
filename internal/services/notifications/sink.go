package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event describes one alert crossing a notification threshold.
type Event struct {
	UserID       uuid.UUID
	Email        string
	EmailAllowed bool
	AlertID      uuid.UUID
	AlertName    string
	AlertType    string
	ProviderName string
	Severity     Severity
	Value        decimal.Decimal
	Threshold    decimal.Decimal
	Percent      decimal.Decimal
	Timestamp    time.Time
}

// Sink delivers alert events to one channel.
type Sink interface {
	Notify(ctx context.Context, event Event) error
}

type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, event Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.WarnContext(ctx, "spend alert",
		slog.String("user_id", event.UserID.String()),
		slog.String("alert_id", event.AlertID.String()),
		slog.String("alert", event.AlertName),
		slog.String("type", event.AlertType),
		slog.String("severity", string(event.Severity)),
		slog.String("provider", event.ProviderName),
		slog.String("value", event.Value.StringFixed(2)),
		slog.String("threshold", event.Threshold.StringFixed(2)),
		slog.String("percent", event.Percent.StringFixed(1)),
		slog.Time("timestamp", event.Timestamp.UTC()),
	)
	return nil
}
