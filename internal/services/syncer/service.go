package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ncecere/spendwatch/internal/cache"
	"github.com/ncecere/spendwatch/internal/config"
	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/limits"
	"github.com/ncecere/spendwatch/internal/observability"
	"github.com/ncecere/spendwatch/internal/providers"
	"github.com/ncecere/spendwatch/internal/services/alerts"
	"github.com/ncecere/spendwatch/internal/storage/blob"
	"github.com/ncecere/spendwatch/internal/timeutil"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	maxParallelSyncs = 4
)

var (
	ErrNotFound       = errors.New("provider not found")
	ErrSyncInProgress = errors.New("a sync is already running for this provider")
	ErrRateLimited    = errors.New("too many sync requests, try again shortly")
)

// Store is the subset of queries used while syncing.
type Store interface {
	GetProviderForUser(ctx context.Context, arg db.GetProviderForUserParams) (db.ApiProvider, error)
	ListActiveProviders(ctx context.Context) ([]db.ApiProvider, error)
	UpsertUsageLog(ctx context.Context, arg db.UpsertUsageLogParams) error
	TouchProviderSynced(ctx context.Context, id pgtype.UUID) error
	GetUserByID(ctx context.Context, id pgtype.UUID) (db.User, error)
}

// KeyOpener decrypts a stored provider credential.
type KeyOpener interface {
	Decrypt(provider db.ApiProvider) (string, error)
}

// AlertEvaluator re-checks a user's alerts after new usage lands.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, user db.User) ([]alerts.Evaluation, error)
}

// Result reports the outcome of syncing one provider.
type Result struct {
	ProviderID    uuid.UUID `json:"provider_id"`
	ProviderName  string    `json:"provider_name"`
	RecordsSynced int       `json:"records_synced"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
}

type Options struct {
	Config   config.SyncConfig
	Registry *providers.Registry
	Keys     KeyOpener
	Alerts   AlertEvaluator
	Archiver *blob.Archiver
	Cache    *cache.Store
	Limiter  *limits.RateLimiter
	Metrics  *observability.Provider
	Logger   *slog.Logger
}

// Service pulls provider usage and upserts one row per provider and day.
type Service struct {
	store  Store
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = providers.NewRegistry(&config.Config{})
	}
	if opts.Config.ManualWindowDays <= 0 {
		opts.Config.ManualWindowDays = 30
	}
	if opts.Config.ScheduledWindowDays <= 0 {
		opts.Config.ScheduledWindowDays = 7
	}
	if opts.Config.LockTTL <= 0 {
		opts.Config.LockTTL = 5 * time.Minute
	}
	return &Service{store: store, opts: opts, logger: opts.Logger, now: time.Now}
}

// SyncProvider runs an on-demand sync of one provider owned by userID and
// returns the number of daily records written.
func (s *Service) SyncProvider(ctx context.Context, userID, providerID uuid.UUID) (int, error) {
	if err := s.opts.Limiter.Allow(ctx, "sync:"+userID.String(), s.opts.Config.ManualSyncsPerMinute, time.Minute); err != nil {
		if errors.Is(err, limits.ErrLimitExceeded) {
			return 0, ErrRateLimited
		}
		s.logger.Warn("sync rate limiter unavailable", "error", err)
	}

	provider, err := s.store.GetProviderForUser(ctx, db.GetProviderForUserParams{
		ID:     db.UUID(providerID),
		UserID: db.UUID(userID),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("load provider: %w", err)
	}

	n, err := s.syncOne(ctx, provider, s.opts.Config.ManualWindowDays)
	if err != nil {
		return 0, err
	}
	s.evaluateAlerts(ctx, provider.UserID)
	return n, nil
}

// SyncAll syncs every active provider over the scheduled window. A failing
// provider is reported in its result and never stops the run.
func (s *Service) SyncAll(ctx context.Context) ([]Result, error) {
	active, err := s.store.ListActiveProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active providers: %w", err)
	}

	results := make([]Result, len(active))
	sem := make(chan struct{}, maxParallelSyncs)
	var wg sync.WaitGroup
	for i, provider := range active {
		wg.Add(1)
		go func(i int, provider db.ApiProvider) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := Result{
				ProviderID:   db.FromUUID(provider.ID),
				ProviderName: provider.ProviderName,
				Status:       StatusSuccess,
			}
			n, err := s.syncOne(ctx, provider, s.opts.Config.ScheduledWindowDays)
			if err != nil {
				res.Status = StatusError
				res.Error = err.Error()
			}
			res.RecordsSynced = n
			results[i] = res
		}(i, provider)
	}
	wg.Wait()

	owners := make(map[pgtype.UUID]struct{})
	for i, res := range results {
		if res.Status == StatusSuccess {
			owners[active[i].UserID] = struct{}{}
		}
	}
	for owner := range owners {
		s.evaluateAlerts(ctx, owner)
	}

	s.logger.Info("scheduled usage sync finished", "providers", len(results))
	return results, nil
}

func (s *Service) syncOne(ctx context.Context, provider db.ApiProvider, windowDays int) (int, error) {
	providerID := db.FromUUID(provider.ID)
	lock, err := s.opts.Cache.Lock(ctx, "sync:"+providerID.String(), s.opts.Config.LockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLocked) {
			return 0, ErrSyncInProgress
		}
		return 0, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release sync lock", "provider_id", providerID, "error", err)
		}
	}()

	started := time.Now()
	n, err := s.fetchAndStore(ctx, provider, windowDays)
	status := StatusSuccess
	if err != nil {
		status = StatusError
		s.logger.Error("usage sync failed", "provider_id", providerID, "provider", provider.ProviderName, "error", err)
	} else {
		s.logger.Info("usage sync", "provider_id", providerID, "provider", provider.ProviderName, "records", n)
	}
	s.opts.Metrics.RecordSync(provider.ProviderName, status, n, time.Since(started))
	return n, err
}

func (s *Service) fetchAndStore(ctx context.Context, provider db.ApiProvider, windowDays int) (int, error) {
	if s.opts.Config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Config.RequestTimeout)
		defer cancel()
	}

	apiKey, err := s.opts.Keys.Decrypt(provider)
	if err != nil {
		return 0, fmt.Errorf("decrypt key: %w", err)
	}

	end := s.now().UTC()
	start := end.AddDate(0, 0, -windowDays)
	records, err := s.opts.Registry.Fetcher(provider.ProviderName).FetchUsage(ctx, apiKey, start, end)
	if err != nil {
		return 0, fmt.Errorf("fetch usage: %w", err)
	}

	for _, rec := range records {
		if err := s.store.UpsertUsageLog(ctx, upsertParams(provider.ID, rec)); err != nil {
			return 0, fmt.Errorf("store usage for %s: %w", rec.Date.Format(time.DateOnly), err)
		}
	}
	if err := s.store.TouchProviderSynced(ctx, provider.ID); err != nil {
		return 0, fmt.Errorf("stamp last sync: %w", err)
	}

	if _, err := s.opts.Archiver.Write(ctx, blob.Snapshot{
		ProviderID:   db.FromUUID(provider.ID),
		ProviderName: provider.ProviderName,
		WindowStart:  start,
		WindowEnd:    end,
		FetchedAt:    end,
	}, records); err != nil {
		s.logger.Warn("archive usage snapshot", "provider_id", db.FromUUID(provider.ID), "error", err)
	}
	return len(records), nil
}

func (s *Service) evaluateAlerts(ctx context.Context, userID pgtype.UUID) {
	if s.opts.Alerts == nil {
		return
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Warn("load user for alerts", "user_id", db.FromUUID(userID), "error", err)
		return
	}
	if _, err := s.opts.Alerts.Evaluate(ctx, user); err != nil {
		s.logger.Warn("evaluate alerts", "user_id", db.FromUUID(userID), "error", err)
	}
}

func upsertParams(providerID pgtype.UUID, rec providers.DailyUsage) db.UpsertUsageLogParams {
	params := db.UpsertUsageLogParams{
		ProviderID:    providerID,
		Date:          pgtype.Date{Time: timeutil.TruncateToDay(rec.Date, time.UTC), Valid: true},
		RequestsCount: rec.Requests,
		CostUsd:       rec.CostUSD,
		Endpoint:      db.Text(rec.Endpoint),
		Model:         db.Text(rec.Model),
	}
	if rec.Tokens != nil {
		params.TokensUsed = pgtype.Int8{Int64: *rec.Tokens, Valid: true}
	}
	return params
}
