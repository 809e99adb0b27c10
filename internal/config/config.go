package config

import (
	"bytes"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// DevJWTSecret is used when no secret is configured outside production.
const DevJWTSecret = "dev-secret-change-in-production"

// ---- Root ----

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Database   DatabaseConfig   `mapstructure:"database"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Auth       AuthConfig       `mapstructure:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Email      EmailConfig      `mapstructure:"email"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	Replicate  ReplicateConfig  `mapstructure:"replicate"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
}

// ---- Leaf structs ----

type AppConfig struct {
	Env       string `mapstructure:"env"`
	ClientURL string `mapstructure:"client_url"`
	BaseURL   string `mapstructure:"base_url"`
}

func (a AppConfig) Production() bool { return strings.EqualFold(a.Env, "production") }

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	UploadsDir  string   `mapstructure:"uploads_dir"`
	ClientDist  string   `mapstructure:"client_dist"`
	DocsPath    string   `mapstructure:"docs_path"`
	MaxUploadMB int64    `mapstructure:"max_upload_mb"`
	MaxAvatarMB int64    `mapstructure:"max_avatar_mb"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type OutboxConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`
	VerificationTTL time.Duration `mapstructure:"verification_ttl"`
	ResendCooldown  time.Duration `mapstructure:"resend_cooldown"`
	LoginRPS        float64       `mapstructure:"login_rps"`
	LoginBurst      int           `mapstructure:"login_burst"`
}

type RateLimitConfig struct {
	RPS    int           `mapstructure:"rps"`
	Window time.Duration `mapstructure:"window"`
}

type EmailConfig struct {
	Transport        string `mapstructure:"transport"` // smtp|gmail|ses|log
	From             string `mapstructure:"from"`
	SMTPHost         string `mapstructure:"smtp_host"`
	SMTPPort         int    `mapstructure:"smtp_port"`
	SMTPUser         string `mapstructure:"smtp_user"`
	SMTPPass         string `mapstructure:"smtp_pass"`
	SMTPSecure       bool   `mapstructure:"smtp_secure"`
	GmailUser        string `mapstructure:"gmail_user"`
	GmailAppPassword string `mapstructure:"gmail_app_password"`
	SESRegion        string `mapstructure:"ses_region"`
}

type StripeConfig struct {
	SecretKey           string `mapstructure:"secret_key"`
	WebhookSecret       string `mapstructure:"webhook_secret"`
	SubscriptionPriceID string `mapstructure:"subscription_price_id"`
	PlatformFeePercent  int64  `mapstructure:"platform_fee_percent"`
	Currency            string `mapstructure:"currency"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type ReplicateConfig struct {
	APIToken    string        `mapstructure:"api_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	ImageModel  string        `mapstructure:"image_model"`
	VideoModel  string        `mapstructure:"video_model"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

type OpenAIConfig struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MonthlyCaptionLimit int    `mapstructure:"monthly_caption_limit"`
	RequireSubscription bool   `mapstructure:"require_subscription"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (ARTVERSE_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (ARTVERSE_STRIPE_SECRET_KEY -> stripe.secret_key)
	v.SetEnvPrefix("ARTVERSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Auth.JWTSecret == "" {
		if cfg.App.Production() {
			return Config{}, errors.New("auth.jwt_secret must be set in production")
		}
		cfg.Auth.JWTSecret = DevJWTSecret
	}
	return cfg, nil
}
