package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ncecere/spendwatch/internal/cache"
	"github.com/ncecere/spendwatch/internal/config"
	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/limits"
)

const (
	MethodLocal = "local"
	MethodOIDC  = "oidc"

	uniqueViolation = "23505"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("a valid email address is required")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrSignupDisabled     = errors.New("signup is disabled")
	ErrLocalDisabled      = errors.New("password authentication disabled")
	ErrOIDCDisabled       = errors.New("oidc authentication disabled")
	ErrInvalidState       = errors.New("oidc state is invalid or expired")
)

// Store is the subset of db.Queries the auth service uses.
type Store interface {
	CreateUser(ctx context.Context, arg db.CreateUserParams) (db.User, error)
	GetUserByEmail(ctx context.Context, email string) (db.User, error)
	GetUserByID(ctx context.Context, id pgtype.UUID) (db.User, error)
	GetUserByIdentity(ctx context.Context, arg db.GetUserByIdentityParams) (db.User, error)
	UpsertUserIdentity(ctx context.Context, arg db.UpsertUserIdentityParams) error
}

type Service struct {
	cfg     config.AuthConfig
	store   Store
	tokens  *TokenManager
	oidc    identityExchanger
	states  *cache.Store
	limiter *limits.RateLimiter
	logger  *slog.Logger
}

func NewService(ctx context.Context, cfg config.AuthConfig, store Store, states *cache.Store, limiter *limits.RateLimiter, logger *slog.Logger) (*Service, error) {
	tokens, err := NewTokenManager(cfg.Session.JWTSecret, cfg.Session.AccessTokenTTL, cfg.Session.RefreshTokenTTL, cfg.Session.Issuer)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		cfg:     cfg,
		store:   store,
		tokens:  tokens,
		states:  states,
		limiter: limiter,
		logger:  logger,
	}
	if cfg.OIDC.Enabled {
		provider, err := NewOIDCProvider(ctx, cfg.OIDC)
		if err != nil {
			return nil, err
		}
		svc.oidc = provider
	}
	return svc, nil
}

// Signup creates a free-tier account with a password and signs it in.
func (s *Service) Signup(ctx context.Context, email, password, name string) (*TokenPair, db.User, error) {
	if !s.cfg.Local.Enabled {
		return nil, db.User{}, ErrLocalDisabled
	}
	if !s.cfg.Local.AllowSignup {
		return nil, db.User{}, ErrSignupDisabled
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, db.User{}, err
	}
	if err := CheckPasswordStrength(password); err != nil {
		return nil, db.User{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, db.User{}, err
	}
	if strings.TrimSpace(name) == "" {
		name = email
	}

	user, err := s.store.CreateUser(ctx, db.CreateUserParams{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: db.Text(hash),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, db.User{}, ErrEmailTaken
		}
		return nil, db.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "user signed up", slog.String("user_id", db.FromUUID(user.ID).String()))

	pair, err := s.IssueTokenPair(user)
	if err != nil {
		return nil, db.User{}, err
	}
	return pair, user, nil
}

// Login verifies a password. Attempts are rate limited per email address.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, db.User, error) {
	if !s.cfg.Local.Enabled {
		return nil, db.User{}, ErrLocalDisabled
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, db.User{}, ErrInvalidCredentials
	}
	if err := s.limiter.Allow(ctx, "login:"+email, s.cfg.LoginAttemptsPerMinute, time.Minute); err != nil {
		return nil, db.User{}, err
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.User{}, ErrInvalidCredentials
		}
		return nil, db.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.PasswordHash.Valid {
		return nil, db.User{}, ErrInvalidCredentials
	}
	match, err := VerifyPassword(password, user.PasswordHash.String)
	if err != nil || !match {
		return nil, db.User{}, ErrInvalidCredentials
	}

	pair, err := s.IssueTokenPair(user)
	if err != nil {
		return nil, db.User{}, err
	}
	return pair, user, nil
}

// Refresh exchanges a refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, db.User, error) {
	userID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, db.User{}, err
	}
	user, err := s.store.GetUserByID(ctx, db.UUID(userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.User{}, ErrInvalidToken
		}
		return nil, db.User{}, fmt.Errorf("load user: %w", err)
	}
	pair, err := s.IssueTokenPair(user)
	if err != nil {
		return nil, db.User{}, err
	}
	return pair, user, nil
}

// AuthorizeAccessToken resolves the user behind an access token.
func (s *Service) AuthorizeAccessToken(ctx context.Context, token string) (db.User, error) {
	userID, err := s.tokens.ParseAccess(token)
	if err != nil {
		return db.User{}, err
	}
	user, err := s.store.GetUserByID(ctx, db.UUID(userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.User{}, ErrInvalidToken
		}
		return db.User{}, err
	}
	return user, nil
}

func (s *Service) IssueTokenPair(user db.User) (*TokenPair, error) {
	return s.tokens.Generate(db.FromUUID(user.ID), user.Email)
}

type oidcState struct {
	Nonce string `json:"nonce"`
}

// OIDCStart returns the provider authorization URL. State and nonce are held
// in Redis until the callback consumes them.
func (s *Service) OIDCStart(ctx context.Context) (string, error) {
	if s.oidc == nil {
		return "", ErrOIDCDisabled
	}
	state, err := GenerateState(32)
	if err != nil {
		return "", err
	}
	nonce, err := GenerateState(32)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(oidcState{Nonce: nonce})
	if err != nil {
		return "", err
	}
	ttl := s.cfg.OIDC.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if err := s.states.Put(ctx, "oidc:"+state, payload, ttl); err != nil {
		return "", fmt.Errorf("store oidc state: %w", err)
	}
	return s.oidc.AuthCodeURL(state, nonce), nil
}

// OIDCCallback completes the login, creating the user on first sight and
// linking the provider subject.
func (s *Service) OIDCCallback(ctx context.Context, state, code string) (*TokenPair, db.User, error) {
	if s.oidc == nil {
		return nil, db.User{}, ErrOIDCDisabled
	}
	raw, ok, err := s.states.Take(ctx, "oidc:"+state)
	if err != nil {
		return nil, db.User{}, fmt.Errorf("load oidc state: %w", err)
	}
	if !ok || state == "" {
		return nil, db.User{}, ErrInvalidState
	}
	var saved oidcState
	if err := json.Unmarshal(raw, &saved); err != nil {
		return nil, db.User{}, ErrInvalidState
	}

	identity, err := s.oidc.Exchange(ctx, code, saved.Nonce)
	if err != nil {
		return nil, db.User{}, err
	}

	user, err := s.userForIdentity(ctx, identity)
	if err != nil {
		return nil, db.User{}, err
	}
	if err := s.store.UpsertUserIdentity(ctx, db.UpsertUserIdentityParams{
		UserID:  user.ID,
		Issuer:  identity.Issuer,
		Subject: identity.Subject,
	}); err != nil {
		return nil, db.User{}, fmt.Errorf("link oidc identity: %w", err)
	}

	pair, err := s.IssueTokenPair(user)
	if err != nil {
		return nil, db.User{}, err
	}
	return pair, user, nil
}

func (s *Service) userForIdentity(ctx context.Context, identity *OIDCIdentity) (db.User, error) {
	user, err := s.store.GetUserByIdentity(ctx, db.GetUserByIdentityParams{Issuer: identity.Issuer, Subject: identity.Subject})
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return db.User{}, fmt.Errorf("lookup identity: %w", err)
	}

	email, err := normalizeEmail(identity.Email)
	if err != nil {
		return db.User{}, err
	}
	user, err = s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return db.User{}, fmt.Errorf("lookup user: %w", err)
	}

	name := identity.Name
	if name == "" {
		name = email
	}
	user, err = s.store.CreateUser(ctx, db.CreateUserParams{Email: email, Name: name})
	if err != nil {
		return db.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "user created from oidc", slog.String("user_id", db.FromUUID(user.ID).String()))
	return user, nil
}

func (s *Service) AllowedAuthMethods() []string {
	methods := []string{}
	if s.cfg.Local.Enabled {
		methods = append(methods, MethodLocal)
	}
	if s.oidc != nil {
		methods = append(methods, MethodOIDC)
	}
	return methods
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
