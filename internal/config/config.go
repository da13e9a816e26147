package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config captures the runtime configuration for the spendwatch service.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Secrets       SecretsConfig       `mapstructure:"secrets"`
	Sync          SyncConfig          `mapstructure:"sync"`
	Providers     ProviderConfig      `mapstructure:"providers"`
	Plans         PlansConfig         `mapstructure:"plans"`
	Billing       BillingConfig       `mapstructure:"billing"`
	Alerts        AlertsConfig        `mapstructure:"alerts"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	AppURL                string        `mapstructure:"app_url"`
	BodyLimitMB           int           `mapstructure:"body_limit_mb"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	IdleTimeout           time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MinConns        int32         `mapstructure:"min_conns"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type AuthConfig struct {
	Session SessionConfig   `mapstructure:"session"`
	Local   LocalAuthConfig `mapstructure:"local"`
	OIDC    OIDCConfig      `mapstructure:"oidc"`
	// LoginAttemptsPerMinute caps password attempts per email address.
	LoginAttemptsPerMinute int `mapstructure:"login_attempts_per_minute"`
}

type SessionConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	CookieName      string        `mapstructure:"cookie_name"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
}

type LocalAuthConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	AllowSignup bool `mapstructure:"allow_signup"`
}

type OIDCConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Issuer         string        `mapstructure:"issuer"`
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	RedirectURL    string        `mapstructure:"redirect_url"`
	Scopes         []string      `mapstructure:"scopes"`
	AllowedDomains []string      `mapstructure:"allowed_domains"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	StateTTL       time.Duration `mapstructure:"state_ttl"`
}

// SecretsConfig holds the key used to seal provider credentials at rest.
type SecretsConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

type SyncConfig struct {
	Interval             time.Duration `mapstructure:"interval"`
	ManualWindowDays     int           `mapstructure:"manual_window_days"`
	ScheduledWindowDays  int           `mapstructure:"scheduled_window_days"`
	CronSecret           string        `mapstructure:"cron_secret"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	LockTTL              time.Duration `mapstructure:"lock_ttl"`
	ManualSyncsPerMinute int           `mapstructure:"manual_syncs_per_minute"`
}

type ProviderConfig struct {
	OpenAIBaseURL    string `mapstructure:"openai_base_url"`
	AnthropicBaseURL string `mapstructure:"anthropic_base_url"`
	AnthropicVersion string `mapstructure:"anthropic_version"`
	// ValidateKeys checks new OpenAI credentials against the API before storing them.
	ValidateKeys bool `mapstructure:"validate_keys"`
}

type PlansConfig struct {
	Free PlanConfig `mapstructure:"free"`
	Pro  PlanConfig `mapstructure:"pro"`
}

type PlanConfig struct {
	MaxProviders int  `mapstructure:"max_providers"`
	HistoryDays  int  `mapstructure:"history_days"`
	EmailAlerts  bool `mapstructure:"email_alerts"`
}

type BillingConfig struct {
	StripeSecretKey     string `mapstructure:"stripe_secret_key"`
	StripeWebhookSecret string `mapstructure:"stripe_webhook_secret"`
	ProPriceID          string `mapstructure:"pro_price_id"`
}

// Enabled reports whether checkout can be offered.
func (b BillingConfig) Enabled() bool {
	return strings.TrimSpace(b.StripeSecretKey) != "" && strings.TrimSpace(b.ProPriceID) != ""
}

type AlertsConfig struct {
	WarningPercent float64       `mapstructure:"warning_percent"`
	SMTP           SMTPConfig    `mapstructure:"smtp"`
	SES            SESConfig     `mapstructure:"ses"`
	Webhook        WebhookConfig `mapstructure:"webhook"`
}

type SMTPConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	From           string        `mapstructure:"from"`
	UseTLS         bool          `mapstructure:"use_tls"`
	SkipTLSVerify  bool          `mapstructure:"skip_tls_verify"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type SESConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Sender  string `mapstructure:"sender"`
}

type WebhookConfig struct {
	URLs       []string      `mapstructure:"urls"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type ArchiveConfig struct {
	Enabled       bool               `mapstructure:"enabled"`
	Storage       string             `mapstructure:"storage"`
	EncryptionKey string             `mapstructure:"encryption_key"`
	S3            ArchiveS3Config    `mapstructure:"s3"`
	Local         ArchiveLocalConfig `mapstructure:"local"`
}

type ArchiveS3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type ArchiveLocalConfig struct {
	Directory string `mapstructure:"directory"`
}

type ObservabilityConfig struct {
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	EnableOTLP    bool   `mapstructure:"enable_otlp"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	switch {
	case opts.ConfigFile != "":
		v.SetConfigFile(opts.ConfigFile)
	case os.Getenv("SPENDWATCH_CONFIG_FILE") != "":
		v.SetConfigFile(os.Getenv("SPENDWATCH_CONFIG_FILE"))
	default:
		v.SetConfigName("spendwatch")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("SPENDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindSecretEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		timeStringToDurationHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindSecretEnv lets AutomaticEnv see keys that have no default and no YAML value.
func bindSecretEnv(v *viper.Viper) {
	for _, key := range []string{
		"database.url",
		"redis.url",
		"auth.session.jwt_secret",
		"auth.oidc.client_id",
		"auth.oidc.client_secret",
		"secrets.encryption_key",
		"sync.cron_secret",
		"billing.stripe_secret_key",
		"billing.stripe_webhook_secret",
		"billing.pro_price_id",
		"alerts.smtp.host",
		"alerts.smtp.username",
		"alerts.smtp.password",
		"alerts.smtp.from",
		"alerts.ses.sender",
		"alerts.webhook.urls",
		"archive.encryption_key",
		"archive.s3.bucket",
		"archive.s3.access_key_id",
		"archive.s3.secret_access_key",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate ensures required values are set.
func (c *Config) Validate() error {
	var missing []string

	if c.Database.URL == "" {
		missing = append(missing, "SPENDWATCH_DATABASE_URL")
	}
	if c.Redis.URL == "" {
		missing = append(missing, "SPENDWATCH_REDIS_URL")
	}
	if c.Auth.Session.JWTSecret == "" {
		missing = append(missing, "SPENDWATCH_AUTH_SESSION_JWT_SECRET")
	}
	if c.Secrets.EncryptionKey == "" {
		missing = append(missing, "SPENDWATCH_SECRETS_ENCRYPTION_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if err := validateKey("secrets.encryption_key", c.Secrets.EncryptionKey); err != nil {
		return err
	}
	if c.Database.MaxConns < 0 {
		return fmt.Errorf("database.max_conns must be >= 0")
	}
	if c.Redis.PoolSize < 0 {
		return fmt.Errorf("redis.pool_size must be >= 0")
	}
	if c.Server.BodyLimitMB <= 0 {
		c.Server.BodyLimitMB = 4
	}
	c.Server.AppURL = strings.TrimRight(strings.TrimSpace(c.Server.AppURL), "/")

	if err := c.Auth.validate(); err != nil {
		return err
	}
	if err := c.Sync.validate(); err != nil {
		return err
	}
	if err := c.Plans.validate(); err != nil {
		return err
	}
	if err := c.Alerts.validate(); err != nil {
		return err
	}
	if err := c.Archive.validate(); err != nil {
		return err
	}
	if c.Billing.Enabled() && c.Server.AppURL == "" {
		return fmt.Errorf("server.app_url must be provided when billing is enabled")
	}
	return nil
}

func (a *AuthConfig) validate() error {
	if a.Session.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.session.access_token_ttl must be > 0")
	}
	if a.Session.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.session.refresh_token_ttl must be > 0")
	}
	if a.Session.CookieName == "" {
		return fmt.Errorf("auth.session.cookie_name must be provided")
	}
	if a.Session.Issuer == "" {
		a.Session.Issuer = "spendwatch"
	}
	if !a.Local.Enabled && !a.OIDC.Enabled {
		return fmt.Errorf("at least one authentication method must be enabled (local or oidc)")
	}
	if a.LoginAttemptsPerMinute <= 0 {
		a.LoginAttemptsPerMinute = 10
	}

	if a.OIDC.Enabled {
		if a.OIDC.Issuer == "" {
			return fmt.Errorf("auth.oidc.issuer must be provided when OIDC is enabled")
		}
		if a.OIDC.ClientID == "" {
			return fmt.Errorf("auth.oidc.client_id must be provided when OIDC is enabled")
		}
		if a.OIDC.ClientSecret == "" {
			return fmt.Errorf("auth.oidc.client_secret must be provided when OIDC is enabled")
		}
		if a.OIDC.RedirectURL == "" {
			return fmt.Errorf("auth.oidc.redirect_url must be provided when OIDC is enabled")
		}
		if a.OIDC.HTTPTimeout <= 0 {
			a.OIDC.HTTPTimeout = 5 * time.Second
		}
		if a.OIDC.StateTTL <= 0 {
			a.OIDC.StateTTL = 10 * time.Minute
		}
	}
	a.OIDC.AllowedDomains = normalizeStringSlice(a.OIDC.AllowedDomains)
	return nil
}

func (s *SyncConfig) validate() error {
	if s.Interval < 0 {
		return fmt.Errorf("sync.interval must be >= 0")
	}
	if s.ManualWindowDays <= 0 {
		s.ManualWindowDays = 30
	}
	if s.ScheduledWindowDays <= 0 {
		s.ScheduledWindowDays = 7
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = 30 * time.Second
	}
	if s.LockTTL <= 0 {
		s.LockTTL = 2 * time.Minute
	}
	if s.ManualSyncsPerMinute <= 0 {
		s.ManualSyncsPerMinute = 5
	}
	s.CronSecret = strings.TrimSpace(s.CronSecret)
	return nil
}

func (p *PlansConfig) validate() error {
	if p.Free.MaxProviders < 0 || p.Pro.MaxProviders < 0 {
		return fmt.Errorf("plans.*.max_providers must be >= 0")
	}
	if p.Free.HistoryDays <= 0 {
		return fmt.Errorf("plans.free.history_days must be > 0")
	}
	if p.Pro.HistoryDays <= 0 {
		return fmt.Errorf("plans.pro.history_days must be > 0")
	}
	return nil
}

func (a *AlertsConfig) validate() error {
	if a.WarningPercent <= 0 || a.WarningPercent >= 100 {
		return fmt.Errorf("alerts.warning_percent must be between 0 and 100 exclusive")
	}
	smtp := &a.SMTP
	if strings.TrimSpace(smtp.Host) != "" {
		if smtp.Port <= 0 {
			smtp.Port = 587
		}
		if strings.TrimSpace(smtp.From) == "" {
			return fmt.Errorf("alerts.smtp.from must be provided when smtp.host is set")
		}
		if smtp.ConnectTimeout <= 0 {
			smtp.ConnectTimeout = 5 * time.Second
		}
	}
	if a.SES.Enabled && strings.TrimSpace(a.SES.Sender) == "" {
		return fmt.Errorf("alerts.ses.sender must be provided when ses is enabled")
	}
	a.Webhook.URLs = normalizeStringSlice(a.Webhook.URLs)
	if a.Webhook.Timeout <= 0 {
		a.Webhook.Timeout = 5 * time.Second
	}
	if a.Webhook.MaxRetries <= 0 {
		a.Webhook.MaxRetries = 3
	}
	return nil
}

func (a *ArchiveConfig) validate() error {
	a.Storage = strings.ToLower(strings.TrimSpace(a.Storage))
	if a.Storage == "" {
		a.Storage = "local"
	}
	if !a.Enabled {
		return nil
	}
	switch a.Storage {
	case "local":
		if strings.TrimSpace(a.Local.Directory) == "" {
			a.Local.Directory = "./data/snapshots"
		}
	case "s3":
		if a.S3.Bucket == "" {
			return fmt.Errorf("archive.s3.bucket must be provided for s3 storage")
		}
	default:
		return fmt.Errorf("archive.storage must be local or s3")
	}
	if a.EncryptionKey != "" {
		if err := validateKey("archive.encryption_key", a.EncryptionKey); err != nil {
			return err
		}
	}
	return nil
}

// Redacted returns a copy with credentials replaced, safe to print.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "[redacted]"
	}
	out := c
	out.Database.URL = mask(c.Database.URL)
	out.Redis.URL = mask(c.Redis.URL)
	out.Auth.Session.JWTSecret = mask(c.Auth.Session.JWTSecret)
	out.Auth.OIDC.ClientSecret = mask(c.Auth.OIDC.ClientSecret)
	out.Secrets.EncryptionKey = mask(c.Secrets.EncryptionKey)
	out.Sync.CronSecret = mask(c.Sync.CronSecret)
	out.Billing.StripeSecretKey = mask(c.Billing.StripeSecretKey)
	out.Billing.StripeWebhookSecret = mask(c.Billing.StripeWebhookSecret)
	out.Alerts.SMTP.Password = mask(c.Alerts.SMTP.Password)
	out.Archive.EncryptionKey = mask(c.Archive.EncryptionKey)
	out.Archive.S3.SecretAccessKey = mask(c.Archive.S3.SecretAccessKey)
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.app_url", "http://localhost:3000")
	v.SetDefault("server.body_limit_mb", 4)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.graceful_shutdown_delay", "5s")

	v.SetDefault("database.run_migrations", true)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("auth.session.issuer", "spendwatch")
	v.SetDefault("auth.session.access_token_ttl", "15m")
	v.SetDefault("auth.session.refresh_token_ttl", "720h")
	v.SetDefault("auth.session.cookie_name", "spendwatch_session")
	v.SetDefault("auth.session.cookie_secure", true)
	v.SetDefault("auth.local.enabled", true)
	v.SetDefault("auth.local.allow_signup", true)
	v.SetDefault("auth.login_attempts_per_minute", 10)
	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.scopes", []string{"openid", "email", "profile"})
	v.SetDefault("auth.oidc.http_timeout", "5s")
	v.SetDefault("auth.oidc.state_ttl", "10m")

	v.SetDefault("sync.interval", "6h")
	v.SetDefault("sync.manual_window_days", 30)
	v.SetDefault("sync.scheduled_window_days", 7)
	v.SetDefault("sync.request_timeout", "30s")
	v.SetDefault("sync.lock_ttl", "2m")
	v.SetDefault("sync.manual_syncs_per_minute", 5)

	v.SetDefault("providers.openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.anthropic_base_url", "https://api.anthropic.com")
	v.SetDefault("providers.anthropic_version", "2023-06-01")
	v.SetDefault("providers.validate_keys", false)

	v.SetDefault("plans.free.max_providers", 2)
	v.SetDefault("plans.free.history_days", 30)
	v.SetDefault("plans.free.email_alerts", false)
	v.SetDefault("plans.pro.max_providers", 0)
	v.SetDefault("plans.pro.history_days", 365)
	v.SetDefault("plans.pro.email_alerts", true)

	v.SetDefault("alerts.warning_percent", 80.0)
	v.SetDefault("alerts.smtp.port", 587)
	v.SetDefault("alerts.smtp.use_tls", true)
	v.SetDefault("alerts.smtp.skip_tls_verify", false)
	v.SetDefault("alerts.smtp.connect_timeout", "5s")
	v.SetDefault("alerts.ses.enabled", false)
	v.SetDefault("alerts.webhook.timeout", "5s")
	v.SetDefault("alerts.webhook.max_retries", 3)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.storage", "local")
	v.SetDefault("archive.local.directory", "./data/snapshots")

	v.SetDefault("observability.enable_otlp", false)
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.otlp_endpoint", "http://localhost:4317")
}

func validateKey(name, encoded string) error {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return fmt.Errorf("%s must be base64 encoded: %w", name, err)
	}
	switch len(key) {
	case 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("%s must decode to 16, 24, or 32 bytes", name)
	}
}

func normalizeStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clean := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
