package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/ncecere/spendwatch/internal/accounts"
	"github.com/ncecere/spendwatch/internal/cache"
	"github.com/ncecere/spendwatch/internal/config"
	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/observability"
)

var (
	ErrNotConfigured    = errors.New("billing is not configured")
	ErrMissingSignature = errors.New("missing Stripe-Signature header")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

const eventDedupeTTL = 72 * time.Hour

// Store is the subset of queries used for billing.
type Store interface {
	GetUserByID(ctx context.Context, id pgtype.UUID) (db.User, error)
	GetUserByStripeCustomerID(ctx context.Context, stripeCustomerID pgtype.Text) (db.User, error)
	SetUserStripeCustomer(ctx context.Context, arg db.SetUserStripeCustomerParams) error
	UpdateUserSubscription(ctx context.Context, arg db.UpdateUserSubscriptionParams) (db.User, error)
	DeactivateProvidersBeyond(ctx context.Context, arg db.DeactivateProvidersBeyondParams) (int64, error)
}

type Options struct {
	Config  config.BillingConfig
	AppURL  string
	Plans   accounts.Catalog
	Gateway Gateway
	Cache   *cache.Store
	Metrics *observability.Provider
	Logger  *slog.Logger
}

// Checkout is returned to the client to redirect into Stripe.
type Checkout struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// Status summarizes a user's subscription for the settings page.
type Status struct {
	Tier              accounts.Tier `json:"tier"`
	Plan              accounts.Plan `json:"plan"`
	HasSubscription   bool          `json:"has_subscription"`
	CheckoutAvailable bool          `json:"checkout_available"`
}

// Service runs Stripe checkout and applies subscription webhooks.
type Service struct {
	store  Store
	opts   Options
	logger *slog.Logger
}

func NewService(store Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gateway == nil && opts.Config.Enabled() {
		opts.Gateway = NewStripeGateway(opts.Config.StripeSecretKey)
	}
	opts.AppURL = strings.TrimRight(opts.AppURL, "/")
	return &Service{store: store, opts: opts, logger: opts.Logger}
}

// CheckoutAvailable reports whether a Stripe key and pro price are configured.
func (s *Service) CheckoutAvailable() bool {
	return s.opts.Gateway != nil && strings.TrimSpace(s.opts.Config.ProPriceID) != ""
}

// CreateCheckout opens a pro subscription checkout for user, creating the
// Stripe customer on first use.
func (s *Service) CreateCheckout(ctx context.Context, user db.User) (Checkout, error) {
	if !s.CheckoutAvailable() {
		return Checkout{}, ErrNotConfigured
	}
	userID := db.FromUUID(user.ID).String()

	customerID := user.StripeCustomerID.String
	if !user.StripeCustomerID.Valid || customerID == "" {
		id, err := s.opts.Gateway.CreateCustomer(ctx, user.Email, user.Name, userID)
		if err != nil {
			return Checkout{}, fmt.Errorf("create stripe customer: %w", err)
		}
		if err := s.store.SetUserStripeCustomer(ctx, db.SetUserStripeCustomerParams{
			ID:               user.ID,
			StripeCustomerID: db.Text(id),
		}); err != nil {
			return Checkout{}, fmt.Errorf("save stripe customer: %w", err)
		}
		customerID = id
	}

	sess, err := s.opts.Gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		CustomerID: customerID,
		PriceID:    s.opts.Config.ProPriceID,
		SuccessURL: s.opts.AppURL + "/dashboard/settings?success=true",
		CancelURL:  s.opts.AppURL + "/dashboard/settings?canceled=true",
		UserID:     userID,
	})
	if err != nil {
		return Checkout{}, fmt.Errorf("create checkout session: %w", err)
	}
	return Checkout{URL: sess.URL, SessionID: sess.ID}, nil
}

// Status reports the user's tier and what it unlocks.
func (s *Service) Status(_ context.Context, user db.User) Status {
	tier := accounts.ParseTier(user.SubscriptionTier)
	return Status{
		Tier:              tier,
		Plan:              s.opts.Plans.For(string(tier)),
		HasSubscription:   user.StripeSubscriptionID.Valid && user.StripeSubscriptionID.String != "",
		CheckoutAvailable: s.CheckoutAvailable(),
	}
}

// HandleWebhook verifies and applies one Stripe event. Redelivered events
// are acknowledged without being applied twice.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	secret := strings.TrimSpace(s.opts.Config.StripeWebhookSecret)
	if secret == "" {
		return ErrNotConfigured
	}
	if strings.TrimSpace(signature) == "" {
		return ErrMissingSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.logger.Warn("stripe webhook rejected", "error", err)
		return ErrInvalidSignature
	}

	eventType := string(event.Type)
	dedupeKey := "stripe-event:" + event.ID
	seen, err := s.opts.Cache.SeenBefore(ctx, dedupeKey, eventDedupeTTL)
	if err != nil {
		s.logger.Warn("stripe event dedupe unavailable", "event_id", event.ID, "error", err)
	}
	if seen {
		s.opts.Metrics.RecordWebhookEvent(eventType, "duplicate")
		return nil
	}

	handled, err := s.apply(ctx, event)
	if err != nil {
		if ferr := s.opts.Cache.Forget(ctx, dedupeKey); ferr != nil {
			s.logger.Warn("stripe event dedupe reset", "event_id", event.ID, "error", ferr)
		}
		s.opts.Metrics.RecordWebhookEvent(eventType, "failed")
		return err
	}
	outcome := "ignored"
	if handled {
		outcome = "processed"
	}
	s.opts.Metrics.RecordWebhookEvent(eventType, outcome)
	s.logger.Info("stripe webhook", "event_id", event.ID, "type", eventType, "outcome", outcome)
	return nil
}

func (s *Service) apply(ctx context.Context, event stripe.Event) (bool, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return false, fmt.Errorf("decode checkout session: %w", err)
		}
		return true, s.checkoutCompleted(ctx, &sess)
	case stripe.EventTypeCustomerSubscriptionUpdated, stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return false, fmt.Errorf("decode subscription: %w", err)
		}
		return true, s.subscriptionChanged(ctx, &sub, event.Type == stripe.EventTypeCustomerSubscriptionDeleted)
	default:
		return false, nil
	}
}

func (s *Service) checkoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	var customerID string
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	user, err := s.userForEvent(ctx, sess.Metadata["user_id"], customerID)
	if err != nil {
		return err
	}
	if user == nil {
		s.logger.Warn("checkout completed for unknown user", "session_id", sess.ID)
		return nil
	}
	if customerID != "" && user.StripeCustomerID.String != customerID {
		if err := s.store.SetUserStripeCustomer(ctx, db.SetUserStripeCustomerParams{
			ID:               user.ID,
			StripeCustomerID: db.Text(customerID),
		}); err != nil {
			return fmt.Errorf("save stripe customer: %w", err)
		}
	}
	var subscriptionID string
	if sess.Subscription != nil {
		subscriptionID = sess.Subscription.ID
	}
	return s.setTier(ctx, *user, accounts.TierPro, subscriptionID)
}

func (s *Service) subscriptionChanged(ctx context.Context, sub *stripe.Subscription, deleted bool) error {
	var customerID string
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	user, err := s.userForEvent(ctx, sub.Metadata["user_id"], customerID)
	if err != nil {
		return err
	}
	if user == nil {
		s.logger.Warn("subscription event for unknown customer", "subscription_id", sub.ID)
		return nil
	}
	if deleted {
		return s.setTier(ctx, *user, accounts.TierFree, "")
	}
	tier := accounts.TierFree
	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		tier = accounts.TierPro
	}
	return s.setTier(ctx, *user, tier, sub.ID)
}

// userForEvent resolves the user id from metadata first and falls back to
// the Stripe customer. A nil user means nobody matched.
func (s *Service) userForEvent(ctx context.Context, userID, customerID string) (*db.User, error) {
	if id, err := uuid.Parse(strings.TrimSpace(userID)); err == nil {
		user, err := s.store.GetUserByID(ctx, db.UUID(id))
		if err == nil {
			return &user, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("load user: %w", err)
		}
	}
	if customerID == "" {
		return nil, nil
	}
	user, err := s.store.GetUserByStripeCustomerID(ctx, db.Text(customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load user by customer: %w", err)
	}
	return &user, nil
}

func (s *Service) setTier(ctx context.Context, user db.User, tier accounts.Tier, subscriptionID string) error {
	if _, err := s.store.UpdateUserSubscription(ctx, db.UpdateUserSubscriptionParams{
		ID:                   user.ID,
		SubscriptionTier:     string(tier),
		StripeSubscriptionID: db.Text(subscriptionID),
	}); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	s.logger.Info("subscription tier updated", "user_id", db.FromUUID(user.ID), "tier", tier)

	// A capped plan keeps only the oldest active providers.
	if plan := s.opts.Plans.For(string(tier)); plan.MaxProviders > 0 {
		deactivated, err := s.store.DeactivateProvidersBeyond(ctx, db.DeactivateProvidersBeyondParams{
			UserID: user.ID,
			Limit:  int32(plan.MaxProviders),
		})
		if err != nil {
			return fmt.Errorf("deactivate providers: %w", err)
		}
		if deactivated > 0 {
			s.logger.Info("providers deactivated for plan limit", "user_id", db.FromUUID(user.ID), "tier", tier, "count", deactivated)
		}
	}
	return nil
}
