package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ncecere/spendwatch/internal/config"
)

// WebhookSink posts alert events to the configured HTTP endpoints.
type WebhookSink struct {
	client     *http.Client
	urls       []string
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

func NewWebhookSink(cfg config.WebhookConfig, logger *slog.Logger) Sink {
	urls := make([]string, 0, len(cfg.URLs))
	for _, u := range cfg.URLs {
		if strings.TrimSpace(u) != "" {
			urls = append(urls, strings.TrimSpace(u))
		}
	}
	if len(urls) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &WebhookSink{
		client:     &http.Client{Timeout: cfg.Timeout},
		urls:       urls,
		maxRetries: cfg.MaxRetries,
		backoff:    250 * time.Millisecond,
		logger:     logger,
	}
}

func (s *WebhookSink) Notify(ctx context.Context, event Event) error {
	if s == nil {
		return nil
	}
	body, err := json.Marshal(webhookPayload{
		UserID:    event.UserID.String(),
		AlertID:   event.AlertID.String(),
		AlertName: event.AlertName,
		AlertType: event.AlertType,
		Provider:  event.ProviderName,
		Severity:  string(event.Severity),
		Value:     event.Value.StringFixed(2),
		Threshold: event.Threshold.StringFixed(2),
		Percent:   event.Percent.StringFixed(1),
		Timestamp: event.Timestamp.UTC(),
	})
	if err != nil {
		return err
	}

	var errs []error
	for _, target := range s.urls {
		if err := s.postWithRetries(ctx, target, body); err != nil {
			s.logger.WarnContext(ctx, "alert webhook failed", slog.String("url", target), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", target, err))
		}
	}
	return errors.Join(errs...)
}

func (s *WebhookSink) postWithRetries(ctx context.Context, url string, body []byte) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err := s.post(ctx, url, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == s.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
	return lastErr
}

func (s *WebhookSink) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

type webhookPayload struct {
	UserID    string    `json:"user_id"`
	AlertID   string    `json:"alert_id"`
	AlertName string    `json:"alert_name"`
	AlertType string    `json:"alert_type"`
	Provider  string    `json:"provider,omitempty"`
	Severity  string    `json:"severity"`
	Value     string    `json:"value"`
	Threshold string    `json:"threshold"`
	Percent   string    `json:"percent"`
	Timestamp time.Time `json:"timestamp"`
}
