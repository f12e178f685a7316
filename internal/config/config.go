package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/clinovia/clinic-api/internal/scheduling"
	"github.com/clinovia/clinic-api/pkg/messaging/redis"
	"github.com/clinovia/clinic-api/pkg/worker"
)

// Config is the single process-wide configuration, loaded once in main and
// passed by reference. YAML supplies the baseline, environment variables win.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Security   SecurityConfig   `mapstructure:"security"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Audit      AuditConfig      `mapstructure:"audit"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port" envconfig:"SERVER_PORT"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host" envconfig:"DB_HOST"`
	Port            int           `mapstructure:"port" envconfig:"DB_PORT"`
	User            string        `mapstructure:"user" envconfig:"DB_USER"`
	Password        string        `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name            string        `mapstructure:"name" envconfig:"DB_NAME"`
	SSLMode         string        `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"REDIS_URL"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

func (c RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

type JWTConfig struct {
	Secret             string `mapstructure:"secret" envconfig:"JWT_SECRET"`
	RefreshSecret      string `mapstructure:"refresh_secret" envconfig:"JWT_REFRESH_SECRET"`
	ExpiryHours        int    `mapstructure:"expiry_hours"`
	RefreshExpiryHours int    `mapstructure:"refresh_expiry_hours"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" envconfig:"LOG_LEVEL"`
	Pretty bool   `mapstructure:"pretty"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" envconfig:"SMTP_HOST"`
	Port     int    `mapstructure:"port" envconfig:"SMTP_PORT"`
	Username string `mapstructure:"username" envconfig:"SMTP_USERNAME"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string `mapstructure:"from" envconfig:"SMTP_FROM"`
}

type SecurityConfig struct {
	// EncryptionKey protects medical record content at rest. Must decode to
	// 16, 24 or 32 bytes.
	EncryptionKey  string   `mapstructure:"encryption_key" envconfig:"ENCRYPTION_KEY"`
	BcryptCost     int      `mapstructure:"bcrypt_cost"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	RetentionDays int           `mapstructure:"retention_days"`
}

func (c OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
	}
}

type AuditConfig struct {
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// ToCleanupConfig bundles the retention settings for the cleanup worker.
func (c *Config) ToCleanupConfig() worker.CleanupConfig {
	return worker.CleanupConfig{
		Interval:            c.Audit.CleanupInterval,
		AuditRetentionDays:  c.Audit.RetentionDays,
		OutboxRetentionDays: c.Outbox.RetentionDays,
	}
}

// SchedulingConfig is the YAML shape of the clinic working window. Zero
// values fall back to the stock window when converted for the engine.
type SchedulingConfig struct {
	SlotMinutes     int      `mapstructure:"slot_minutes"`
	WorkStartHour   int      `mapstructure:"work_start_hour"`
	WorkEndHour     int      `mapstructure:"work_end_hour"`
	WorkDays        []string `mapstructure:"work_days"`
	SearchDaysAhead int      `mapstructure:"search_days_ahead"`
	Timezone        string   `mapstructure:"timezone"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ToEngineConfig resolves the YAML shape into the engine's Config. Unknown
// weekday or timezone names are errors, not silently skipped.
func (c SchedulingConfig) ToEngineConfig() (scheduling.Config, error) {
	loc := time.UTC
	if c.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(c.Timezone)
		if err != nil {
			return scheduling.Config{}, fmt.Errorf("invalid scheduling timezone %q: %w", c.Timezone, err)
		}
	}

	cfg := scheduling.DefaultConfig(loc)
	if c.SlotMinutes > 0 {
		cfg.SlotMinutes = c.SlotMinutes
	}
	if c.WorkStartHour > 0 {
		cfg.WorkStartHour = c.WorkStartHour
	}
	if c.WorkEndHour > 0 {
		cfg.WorkEndHour = c.WorkEndHour
	}
	if c.SearchDaysAhead > 0 {
		cfg.SearchDaysAhead = c.SearchDaysAhead
	}
	if len(c.WorkDays) > 0 {
		days := make(map[time.Weekday]bool, len(c.WorkDays))
		for _, name := range c.WorkDays {
			day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
			if !ok {
				return scheduling.Config{}, fmt.Errorf("invalid work day %q", name)
			}
			days[day] = true
		}
		cfg.WorkDays = days
	}

	if err := cfg.Validate(); err != nil {
		return scheduling.Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads config.yaml (current dir or ./config), then lets
// environment variables override the sensitive blocks. A .env file is picked
// up first when present so local runs need no exported shell state.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, block := range []interface{}{
		&config.Server,
		&config.Database,
		&config.Redis,
		&config.JWT,
		&config.Logging,
		&config.SMTP,
		&config.Security,
	} {
		if err := envconfig.Process("", block); err != nil {
			return nil, fmt.Errorf("failed to apply env overrides: %w", err)
		}
	}

	applyDefaults(&config)
	return &config, nil
}

func applyDefaults(c *Config) {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if c.JWT.ExpiryHours == 0 {
		c.JWT.ExpiryHours = 1
	}
	if c.JWT.RefreshExpiryHours == 0 {
		c.JWT.RefreshExpiryHours = 24 * 7
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Security.BcryptCost == 0 {
		c.Security.BcryptCost = 12
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 50
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 100
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 100
	}
	if c.Outbox.PollInterval == 0 {
		c.Outbox.PollInterval = 5 * time.Second
	}
	if c.Outbox.RetryAttempts == 0 {
		c.Outbox.RetryAttempts = 3
	}
	if c.Outbox.RetryDelay == 0 {
		c.Outbox.RetryDelay = 5 * time.Second
	}
	if c.Outbox.RetentionDays == 0 {
		c.Outbox.RetentionDays = 7
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 365
	}
	if c.Audit.CleanupInterval == 0 {
		c.Audit.CleanupInterval = 24 * time.Hour
	}
}
