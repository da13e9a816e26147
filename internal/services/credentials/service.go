package credentials

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

	"github.com/ncecere/spendwatch/internal/accounts"
	"github.com/ncecere/spendwatch/internal/catalog"
	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/providers"
	"github.com/ncecere/spendwatch/internal/secrets"
)

var (
	ErrNotFound      = errors.New("provider not found")
	ErrInvalidInput  = errors.New("provider name and API key are required")
	ErrProviderLimit = errors.New("provider limit reached")
	ErrKeyRejected   = errors.New("API key was rejected by the provider")
)

// LimitError is returned when a plan's provider cap would be exceeded.
type LimitError struct {
	Max int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("Free tier limited to %d providers. Upgrade to Pro for unlimited.", e.Max)
}

func (e *LimitError) Is(target error) bool { return target == ErrProviderLimit }

// Store is the subset of queries used by the credentials service.
type Store interface {
	ListProvidersByUser(ctx context.Context, userID pgtype.UUID) ([]db.ApiProvider, error)
	GetProviderForUser(ctx context.Context, arg db.GetProviderForUserParams) (db.ApiProvider, error)
	CountActiveProvidersByUser(ctx context.Context, userID pgtype.UUID) (int64, error)
	CreateProvider(ctx context.Context, arg db.CreateProviderParams) (db.ApiProvider, error)
	SetProviderActive(ctx context.Context, arg db.SetProviderActiveParams) (db.ApiProvider, error)
	DeleteProviderForUser(ctx context.Context, arg db.DeleteProviderForUserParams) (int64, error)
	WithUserLock(ctx context.Context, userID pgtype.UUID, fn func(Store, db.User) error) error
}

// Provider is the client-facing view of a stored credential.
type Provider struct {
	ID           uuid.UUID  `json:"id"`
	ProviderName string     `json:"provider_name"`
	APIKeyMasked string     `json:"api_key_masked"`
	IsActive     bool       `json:"is_active"`
	SupportsSync bool       `json:"supports_sync"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Service manages provider credentials on behalf of their owners.
type Service struct {
	store        Store
	sealer       *secrets.Sealer
	plans        accounts.Catalog
	registry     *providers.Registry
	validateKeys bool
	logger       *slog.Logger
}

func NewService(store Store, sealer *secrets.Sealer, plans accounts.Catalog, registry *providers.Registry, validateKeys bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		sealer:       sealer,
		plans:        plans,
		registry:     registry,
		validateKeys: validateKeys,
		logger:       logger,
	}
}

// List returns the user's providers newest first with masked keys.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Provider, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("credentials service not initialized")
	}
	rows, err := s.store.ListProvidersByUser(ctx, db.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	out := make([]Provider, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.view(row))
	}
	return out, nil
}

// Create seals apiKey and stores a new active provider for user.
func (s *Service) Create(ctx context.Context, user db.User, name, apiKey string) (Provider, error) {
	if s == nil || s.store == nil {
		return Provider{}, errors.New("credentials service not initialized")
	}
	name = strings.TrimSpace(name)
	apiKey = strings.TrimSpace(apiKey)
	if name == "" || apiKey == "" {
		return Provider{}, ErrInvalidInput
	}
	if s.validateKeys && s.registry != nil {
		if validator, ok := s.registry.Fetcher(name).(providers.KeyValidator); ok {
			if err := validator.ValidateKey(ctx, apiKey); err != nil {
				if errors.Is(err, providers.ErrUnauthorized) {
					return Provider{}, ErrKeyRejected
				}
				return Provider{}, fmt.Errorf("validate key: %w", err)
			}
		}
	}
	sealed, err := s.sealer.Seal(apiKey)
	if err != nil {
		return Provider{}, fmt.Errorf("seal key: %w", err)
	}

	var row db.ApiProvider
	err = s.store.WithUserLock(ctx, user.ID, func(tx Store, owner db.User) error {
		if err := s.checkLimit(ctx, tx, owner); err != nil {
			return err
		}
		created, err := tx.CreateProvider(ctx, db.CreateProviderParams{
			UserID:          owner.ID,
			ProviderName:    catalog.NormalizeProviderSlug(name),
			ApiKeyEncrypted: sealed,
		})
		if err != nil {
			return fmt.Errorf("create provider: %w", err)
		}
		row = created
		return nil
	})
	if err != nil {
		return Provider{}, lockError(err)
	}
	s.logger.Info("provider added", "user_id", db.FromUUID(user.ID), "provider", row.ProviderName)
	return s.view(row), nil
}

// SetActive toggles a provider. Reactivation counts against the plan limit.
func (s *Service) SetActive(ctx context.Context, user db.User, id uuid.UUID, active bool) (Provider, error) {
	if s == nil || s.store == nil {
		return Provider{}, errors.New("credentials service not initialized")
	}
	var row db.ApiProvider
	err := s.store.WithUserLock(ctx, user.ID, func(tx Store, owner db.User) error {
		current, err := tx.GetProviderForUser(ctx, db.GetProviderForUserParams{ID: db.UUID(id), UserID: owner.ID})
		if err != nil {
			return err
		}
		if active && !current.IsActive {
			if err := s.checkLimit(ctx, tx, owner); err != nil {
				return err
			}
		}
		updated, err := tx.SetProviderActive(ctx, db.SetProviderActiveParams{
			ID:       db.UUID(id),
			UserID:   owner.ID,
			IsActive: active,
		})
		if err != nil {
			return fmt.Errorf("update provider: %w", err)
		}
		row = updated
		return nil
	})
	if err != nil {
		return Provider{}, lockError(err)
	}
	return s.view(row), nil
}

// Delete removes a provider owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if s == nil || s.store == nil {
		return errors.New("credentials service not initialized")
	}
	n, err := s.store.DeleteProviderForUser(ctx, db.DeleteProviderForUserParams{
		ID:     db.UUID(id),
		UserID: db.UUID(userID),
	})
	if err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads a raw provider row scoped to its owner.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (db.ApiProvider, error) {
	row, err := s.store.GetProviderForUser(ctx, db.GetProviderForUserParams{
		ID:     db.UUID(id),
		UserID: db.UUID(userID),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.ApiProvider{}, ErrNotFound
		}
		return db.ApiProvider{}, fmt.Errorf("get provider: %w", err)
	}
	return row, nil
}

// Decrypt returns the plaintext key. Only the syncer should call this.
func (s *Service) Decrypt(provider db.ApiProvider) (string, error) {
	return s.sealer.Open(provider.ApiKeyEncrypted)
}

func (s *Service) checkLimit(ctx context.Context, store Store, user db.User) error {
	plan := s.plans.For(user.SubscriptionTier)
	if plan.MaxProviders <= 0 {
		return nil
	}
	count, err := store.CountActiveProvidersByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("count providers: %w", err)
	}
	if !plan.AllowsAnotherProvider(count) {
		return &LimitError{Max: plan.MaxProviders}
	}
	return nil
}

func (s *Service) view(row db.ApiProvider) Provider {
	masked := "****"
	if plain, err := s.sealer.Open(row.ApiKeyEncrypted); err == nil {
		masked = secrets.Mask(plain)
	} else {
		s.logger.Warn("unable to open provider key", "provider_id", db.FromUUID(row.ID), "error", err)
	}
	out := Provider{
		ID:           db.FromUUID(row.ID),
		ProviderName: row.ProviderName,
		APIKeyMasked: masked,
		IsActive:     row.IsActive,
		CreatedAt:    row.CreatedAt.Time,
	}
	if s.registry != nil {
		out.SupportsSync = s.registry.SupportsSync(row.ProviderName)
	}
	if row.LastSyncedAt.Valid {
		ts := row.LastSyncedAt.Time
		out.LastSyncedAt = &ts
	}
	return out
}

// lockError maps failures from inside a user lock. A missing user or provider
// row both surface as ErrNotFound.
func lockError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
