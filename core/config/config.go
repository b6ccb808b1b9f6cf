package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

var (
	// ErrTokenIsNotSpecified is returned when no bot token is configured.
	ErrTokenIsNotSpecified = errors.New("config: telegram token is not specified")
	// ErrImproperlyConfigured marks a missing or inconsistent setting.
	ErrImproperlyConfigured = errors.New("config: improperly configured")
)

// TelegramConfig holds Telegram bot related settings that are common for all bots.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// ScreensConfig selects the permission chain and visibility checker by their registered names.
type ScreensConfig struct {
	Permissions   []string `yaml:"permissions" envconfig:"SCREENS_PERMISSIONS"`
	HidersChecker string   `yaml:"hiders_checker" envconfig:"SCREENS_HIDERS_CHECKER"`
	ParseMode     string   `yaml:"parse_mode" envconfig:"SCREENS_PARSE_MODE"`
	AdminIDs      []int64  `yaml:"admin_ids" envconfig:"SCREENS_ADMIN_IDS"`
}

// RedisConfig holds connection parameters for the redis persistence backend.
// DB is mandatory: a nil value means the setting was omitted.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       *int   `yaml:"db" envconfig:"REDIS_DB"`
}

// PostgresConfig holds connection parameters for the postgres persistence backend.
type PostgresConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// PersistenceConfig selects the store behind bot, chat, user and conversation data.
type PersistenceConfig struct {
	Backend string `yaml:"backend" envconfig:"PERSISTENCE_BACKEND"`
	// OnFlush keeps mutations in memory until an explicit flush.
	OnFlush               bool           `yaml:"on_flush" envconfig:"PERSISTENCE_ON_FLUSH"`
	UpdateIntervalSeconds int            `yaml:"update_interval_seconds" envconfig:"PERSISTENCE_UPDATE_INTERVAL_SECONDS"`
	Namespace             string         `yaml:"namespace" envconfig:"PERSISTENCE_NAMESPACE"`
	Redis                 RedisConfig    `yaml:"redis"`
	Postgres              PostgresConfig `yaml:"postgres"`
}

// ErrorHandlerConfig tunes the default error handler.
type ErrorHandlerConfig struct {
	IgnoreTimedOut bool `yaml:"ignore_timed_out" envconfig:"ERROR_HANDLER_IGNORE_TIMED_OUT"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// BackendMemory keeps persistence data in process memory only.
	BackendMemory = "memory"
	// BackendRedis stores persistence data in redis hashes.
	BackendRedis = "redis"
	// BackendPostgres stores persistence data in postgres tables.
	BackendPostgres = "postgres"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

const defaultUpdateIntervalSeconds = 60

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram     TelegramConfig     `yaml:"telegram"`
	Webhook      WebhookConfig      `yaml:"webhook"`
	Logging      LoggingConfig      `yaml:"logging"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Screens      ScreensConfig      `yaml:"screens"`
	Persistence  PersistenceConfig  `yaml:"persistence"`
	ErrorHandler ErrorHandlerConfig `yaml:"error_handler"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// CoreConfig lets *Config satisfy cmd.ConfigCarrier directly.
func (c *Config) CoreConfig() *Config {
	return c
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return ErrTokenIsNotSpecified
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if strings.TrimSpace(cfg.Screens.ParseMode) == "" {
		cfg.Screens.ParseMode = "HTML"
	}
	if cfg.Telegram.AdminID != 0 && !containsID(cfg.Screens.AdminIDs, cfg.Telegram.AdminID) {
		cfg.Screens.AdminIDs = append(cfg.Screens.AdminIDs, cfg.Telegram.AdminID)
	}

	return normalizePersistence(&cfg.Persistence)
}

func normalizePersistence(p *PersistenceConfig) error {
	backend := strings.ToLower(strings.TrimSpace(p.Backend))
	if backend == "" {
		backend = BackendMemory
	}
	switch backend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(p.Redis.Addr) == "" {
			p.Redis.Addr = "localhost:6379"
		}
		if p.Redis.DB == nil {
			return fmt.Errorf("%w: persistence.redis.db is missing", ErrImproperlyConfigured)
		}
		if *p.Redis.DB < 0 {
			return fmt.Errorf("%w: persistence.redis.db must be >= 0", ErrImproperlyConfigured)
		}
	case BackendPostgres:
		if strings.TrimSpace(p.Postgres.Host) == "" || strings.TrimSpace(p.Postgres.Name) == "" {
			return fmt.Errorf("%w: persistence.postgres.host and persistence.postgres.name are required", ErrImproperlyConfigured)
		}
		if p.Postgres.SSLMode == "" {
			p.Postgres.SSLMode = "disable"
		}
		if p.Postgres.MaxConnections <= 0 {
			p.Postgres.MaxConnections = 5
		}
	default:
		return fmt.Errorf("invalid persistence.backend %q; allowed: memory, redis, postgres", p.Backend)
	}
	p.Backend = backend

	if p.UpdateIntervalSeconds < 0 {
		return fmt.Errorf("persistence.update_interval_seconds must be >= 0")
	}
	if p.UpdateIntervalSeconds == 0 {
		p.UpdateIntervalSeconds = defaultUpdateIntervalSeconds
	}
	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
