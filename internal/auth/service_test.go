package auth

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/spendwatch/internal/cache"
	"github.com/ncecere/spendwatch/internal/config"
	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/limits"
)

type memoryStore struct {
	users      map[uuid.UUID]db.User
	identities map[string]uuid.UUID
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[uuid.UUID]db.User{}, identities: map[string]uuid.UUID{}}
}

func (m *memoryStore) CreateUser(_ context.Context, arg db.CreateUserParams) (db.User, error) {
	for _, u := range m.users {
		if u.Email == arg.Email {
			return db.User{}, &pgconn.PgError{Code: "23505"}
		}
	}
	id := uuid.New()
	user := db.User{ID: db.UUID(id), Email: arg.Email, Name: arg.Name, PasswordHash: arg.PasswordHash, SubscriptionTier: "free"}
	m.users[id] = user
	return user, nil
}

func (m *memoryStore) GetUserByEmail(_ context.Context, email string) (db.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

func (m *memoryStore) GetUserByID(_ context.Context, id pgtype.UUID) (db.User, error) {
	u, ok := m.users[db.FromUUID(id)]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *memoryStore) GetUserByIdentity(_ context.Context, arg db.GetUserByIdentityParams) (db.User, error) {
	id, ok := m.identities[arg.Issuer+"|"+arg.Subject]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	return m.users[id], nil
}

func (m *memoryStore) UpsertUserIdentity(_ context.Context, arg db.UpsertUserIdentityParams) error {
	m.identities[arg.Issuer+"|"+arg.Subject] = db.FromUUID(arg.UserID)
	return nil
}

type stubExchanger struct {
	identity  *OIDCIdentity
	lastNonce string
}

func (s *stubExchanger) AuthCodeURL(state, nonce string) string {
	return "https://idp.example.com/auth?" + url.Values{"state": {state}, "nonce": {nonce}}.Encode()
}

func (s *stubExchanger) Exchange(_ context.Context, _ string, nonce string) (*OIDCIdentity, error) {
	s.lastNonce = nonce
	return s.identity, nil
}

func newTestService(t *testing.T, mutate func(*config.AuthConfig)) (*Service, *memoryStore) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := config.AuthConfig{
		Session: config.SessionConfig{
			JWTSecret:       "test-secret",
			Issuer:          "spendwatch",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
		},
		Local:                  config.LocalAuthConfig{Enabled: true, AllowSignup: true},
		LoginAttemptsPerMinute: 3,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	store := newMemoryStore()
	svc, err := NewService(context.Background(), cfg, store, cache.New(client, "test"), limits.NewRateLimiter(client), nil)
	require.NoError(t, err)
	return svc, store
}

func TestSignupAndLogin(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	pair, user, err := svc.Signup(ctx, "  Ada@Example.com ", "supersecret", "")
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", user.Email)
	require.NotEmpty(t, pair.AccessToken)

	_, _, err = svc.Signup(ctx, "ada@example.com", "supersecret", "Ada")
	require.ErrorIs(t, err, ErrEmailTaken)

	_, logged, err := svc.Login(ctx, "ADA@example.com", "supersecret")
	require.NoError(t, err)
	require.Equal(t, user.ID, logged.ID)

	_, _, err = svc.Login(ctx, "ada@example.com", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	authorized, err := svc.AuthorizeAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, authorized.ID)

	_, err = svc.AuthorizeAccessToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, "not-an-email", "supersecret", "")
	require.ErrorIs(t, err, ErrInvalidEmail)
	_, _, err = svc.Signup(ctx, "a@example.com", "short", "")
	require.ErrorIs(t, err, ErrWeakPassword)

	closed, _ := newTestService(t, func(c *config.AuthConfig) { c.Local.AllowSignup = false })
	_, _, err = closed.Signup(ctx, "a@example.com", "supersecret", "")
	require.ErrorIs(t, err, ErrSignupDisabled)
}

func TestLoginIsRateLimited(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := svc.Login(ctx, "nobody@example.com", "whatever1")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, _, err := svc.Login(ctx, "nobody@example.com", "whatever1")
	require.True(t, errors.Is(err, limits.ErrLimitExceeded))
}

func TestRefreshIssuesNewPair(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	pair, user, err := svc.Signup(ctx, "r@example.com", "supersecret", "")
	require.NoError(t, err)

	next, refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, refreshed.ID)
	require.NotEmpty(t, next.AccessToken)

	_, _, err = svc.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestOIDCFlowCreatesAndLinksUser(t *testing.T) {
	svc, store := newTestService(t, nil)
	exchanger := &stubExchanger{identity: &OIDCIdentity{Issuer: "https://idp.example.com", Subject: "sub-1", Email: "Sso@Example.com", Name: "Sso User"}}
	svc.oidc = exchanger
	ctx := context.Background()

	authURL, err := svc.OIDCStart(ctx)
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	nonce := parsed.Query().Get("nonce")
	require.NotEmpty(t, state)

	pair, user, err := svc.OIDCCallback(ctx, state, "code")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.Equal(t, "sso@example.com", user.Email)
	require.Equal(t, nonce, exchanger.lastNonce)
	require.Len(t, store.identities, 1)

	_, _, err = svc.OIDCCallback(ctx, state, "code")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestOIDCDisabled(t *testing.T) {
	svc, _ := newTestService(t, nil)
	_, err := svc.OIDCStart(context.Background())
	require.ErrorIs(t, err, ErrOIDCDisabled)
	require.Equal(t, []string{MethodLocal}, svc.AllowedAuthMethods())
}
