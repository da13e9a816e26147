package syncer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/spendwatch/internal/cache"
	"github.com/ncecere/spendwatch/internal/config"
	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/limits"
	"github.com/ncecere/spendwatch/internal/providers"
	"github.com/ncecere/spendwatch/internal/services/alerts"
	"github.com/ncecere/spendwatch/internal/storage/blob"
)

type fakeStore struct {
	mu        sync.Mutex
	providers []db.ApiProvider
	users     map[pgtype.UUID]db.User
	logs      map[string]db.UpsertUsageLogParams
	touched   map[pgtype.UUID]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[pgtype.UUID]db.User),
		logs:    make(map[string]db.UpsertUsageLogParams),
		touched: make(map[pgtype.UUID]int),
	}
}

func (f *fakeStore) addProvider(user db.User, name, key string) db.ApiProvider {
	f.users[user.ID] = user
	p := db.ApiProvider{ID: db.UUID(uuid.New()), UserID: user.ID, ProviderName: name, ApiKeyEncrypted: key, IsActive: true}
	f.providers = append(f.providers, p)
	return p
}

func (f *fakeStore) GetProviderForUser(_ context.Context, arg db.GetProviderForUserParams) (db.ApiProvider, error) {
	for _, p := range f.providers {
		if p.ID == arg.ID && p.UserID == arg.UserID {
			return p, nil
		}
	}
	return db.ApiProvider{}, pgx.ErrNoRows
}

func (f *fakeStore) ListActiveProviders(context.Context) ([]db.ApiProvider, error) {
	var out []db.ApiProvider
	for _, p := range f.providers {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertUsageLog(_ context.Context, arg db.UpsertUsageLogParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := db.FromUUID(arg.ProviderID).String() + "/" + arg.Date.Time.Format(time.DateOnly)
	f.logs[key] = arg
	return nil
}

func (f *fakeStore) TouchProviderSynced(_ context.Context, id pgtype.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id]++
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id pgtype.UUID) (db.User, error) {
	user, ok := f.users[id]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	return user, nil
}

// plainKeys treats the stored ciphertext as the key.
type plainKeys struct{}

func (plainKeys) Decrypt(p db.ApiProvider) (string, error) { return p.ApiKeyEncrypted, nil }

type stubFetcher struct {
	mu      sync.Mutex
	windows []time.Duration
	block   chan struct{}
}

func (s *stubFetcher) FetchUsage(_ context.Context, apiKey string, start, end time.Time) ([]providers.DailyUsage, error) {
	s.mu.Lock()
	s.windows = append(s.windows, end.Sub(start))
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	if apiKey == "bad" {
		return nil, providers.ErrUnauthorized
	}
	tokens := int64(1200)
	day := time.Date(2024, 3, 19, 0, 0, 0, 0, time.UTC)
	return []providers.DailyUsage{
		{Date: day, Requests: 10, Tokens: &tokens, CostUSD: decimal.RequireFromString("1.25"), Model: "gpt-4o", Endpoint: "completions"},
		{Date: day.AddDate(0, 0, 1), Requests: 4, CostUSD: decimal.RequireFromString("0.50")},
	}, nil
}

type countingAlerts struct {
	mu    sync.Mutex
	users []string
}

func (c *countingAlerts) Evaluate(_ context.Context, user db.User) ([]alerts.Evaluation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, user.Email)
	return nil, nil
}

type harness struct {
	svc     *Service
	store   *fakeStore
	fetcher *stubFetcher
	alerts  *countingAlerts
	archive string
}

func newHarness(t *testing.T, cfg config.SyncConfig) *harness {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	dir := t.TempDir()
	archiveStore, err := blob.New(context.Background(), config.ArchiveConfig{Local: config.ArchiveLocalConfig{Directory: dir}})
	require.NoError(t, err)

	fetcher := &stubFetcher{}
	registry := providers.NewRegistry(&config.Config{})
	registry.Register("openai", func(*config.Config) providers.UsageFetcher { return fetcher })

	h := &harness{store: newFakeStore(), fetcher: fetcher, alerts: &countingAlerts{}, archive: dir}
	h.svc = NewService(h.store, Options{
		Config:   cfg,
		Registry: registry,
		Keys:     plainKeys{},
		Alerts:   h.alerts,
		Archiver: blob.NewArchiver(archiveStore),
		Cache:    cache.New(client, "test"),
		Limiter:  limits.NewRateLimiter(client),
	})
	h.svc.now = func() time.Time { return time.Date(2024, 3, 20, 15, 0, 0, 0, time.UTC) }
	return h
}

func testUser(email string) db.User {
	return db.User{ID: db.UUID(uuid.New()), Email: email, SubscriptionTier: "free"}
}

func TestSyncProviderUpsertsDailyRows(t *testing.T) {
	h := newHarness(t, config.SyncConfig{})
	user := testUser("a@example.com")
	p := h.store.addProvider(user, "openai", "sk-good")

	n, err := h.svc.SyncProvider(context.Background(), db.FromUUID(user.ID), db.FromUUID(p.ID))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []time.Duration{30 * 24 * time.Hour}, h.fetcher.windows)

	first := h.store.logs[db.FromUUID(p.ID).String()+"/2024-03-19"]
	require.Equal(t, int64(10), first.RequestsCount)
	require.Equal(t, int64(1200), first.TokensUsed.Int64)
	require.Equal(t, "gpt-4o", first.Model.String)
	second := h.store.logs[db.FromUUID(p.ID).String()+"/2024-03-20"]
	require.False(t, second.TokensUsed.Valid)
	require.False(t, second.Model.Valid)

	require.Equal(t, 1, h.store.touched[p.ID])
	require.Equal(t, []string{"a@example.com"}, h.alerts.users)

	// Re-syncing overwrites the same (provider, date) rows.
	_, err = h.svc.SyncProvider(context.Background(), db.FromUUID(user.ID), db.FromUUID(p.ID))
	require.NoError(t, err)
	require.Len(t, h.store.logs, 2)

	snapshots, err := filepath.Glob(filepath.Join(h.archive, "usage", db.FromUUID(p.ID).String(), "2024-03-20", "*.json"))
	require.NoError(t, err)
	require.NotEmpty(t, snapshots)
	_, err = os.Stat(snapshots[0])
	require.NoError(t, err)
}

func TestSyncProviderScopedToOwner(t *testing.T) {
	h := newHarness(t, config.SyncConfig{})
	owner := testUser("a@example.com")
	p := h.store.addProvider(owner, "openai", "sk-good")

	_, err := h.svc.SyncProvider(context.Background(), uuid.New(), db.FromUUID(p.ID))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSyncProviderRateLimited(t *testing.T) {
	h := newHarness(t, config.SyncConfig{ManualSyncsPerMinute: 1})
	user := testUser("a@example.com")
	p := h.store.addProvider(user, "openai", "sk-good")

	_, err := h.svc.SyncProvider(context.Background(), db.FromUUID(user.ID), db.FromUUID(p.ID))
	require.NoError(t, err)
	_, err = h.svc.SyncProvider(context.Background(), db.FromUUID(user.ID), db.FromUUID(p.ID))
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestConcurrentSyncOfSameProviderIsRejected(t *testing.T) {
	h := newHarness(t, config.SyncConfig{})
	user := testUser("a@example.com")
	p := h.store.addProvider(user, "openai", "sk-good")
	h.fetcher.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.SyncProvider(context.Background(), db.FromUUID(user.ID), db.FromUUID(p.ID))
		done <- err
	}()

	require.Eventually(t, func() bool {
		h.fetcher.mu.Lock()
		defer h.fetcher.mu.Unlock()
		return len(h.fetcher.windows) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := h.svc.SyncProvider(context.Background(), db.FromUUID(user.ID), db.FromUUID(p.ID))
	require.ErrorIs(t, err, ErrSyncInProgress)

	close(h.fetcher.block)
	require.NoError(t, <-done)
}

func TestSyncAllReportsPerProvider(t *testing.T) {
	h := newHarness(t, config.SyncConfig{})
	alice := testUser("alice@example.com")
	bob := testUser("bob@example.com")
	good := h.store.addProvider(alice, "openai", "sk-good")
	bad := h.store.addProvider(bob, "openai", "bad")
	manual := h.store.addProvider(bob, "stripe", "rk-live")
	inactive := h.store.addProvider(alice, "openai", "sk-other")
	h.store.providers[3].IsActive = false

	results, err := h.svc.SyncAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	byID := make(map[uuid.UUID]Result)
	for _, r := range results {
		byID[r.ProviderID] = r
	}
	require.Equal(t, StatusSuccess, byID[db.FromUUID(good.ID)].Status)
	require.Equal(t, 2, byID[db.FromUUID(good.ID)].RecordsSynced)
	require.Equal(t, StatusError, byID[db.FromUUID(bad.ID)].Status)
	require.Contains(t, byID[db.FromUUID(bad.ID)].Error, "provider rejected credentials")
	require.Equal(t, StatusSuccess, byID[db.FromUUID(manual.ID)].Status)
	require.Zero(t, byID[db.FromUUID(manual.ID)].RecordsSynced)
	require.NotContains(t, byID, db.FromUUID(inactive.ID))

	for _, w := range h.fetcher.windows {
		require.Equal(t, 7*24*time.Hour, w)
	}
	require.ElementsMatch(t, []string{"alice@example.com", "bob@example.com"}, h.alerts.users)
}
