package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Pricing   PricingConfig
	BankRail  BankRailConfig
	Payment   PaymentConfig
	Scheduler SchedulerConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// PricingConfig holds the pricing authority client settings
type PricingConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// BankRailConfig holds the disbursement rail settings
type BankRailConfig struct {
	// Mode selects the rail implementation: "simulated" or "live"
	Mode     string
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// PaymentConfig holds payment automation settings
type PaymentConfig struct {
	MinDaysFromApproval int
	MaxBatchSize        int
	Currency            string
}

// SchedulerConfig holds the background job schedule
type SchedulerConfig struct {
	Enabled            bool
	PenaltyHour        int // hour of day for the penalty accrual run
	SettlementHour     int // hour of day for the window settlement run
	SweepIntervalHours int // hours between automated payment sweeps
	JobTimeout         time.Duration
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with DFS_ prefix (e.g. DFS_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Missing config file is fine, defaults and env vars apply
	}

	v.SetEnvPrefix("DFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Pricing: PricingConfig{
			BaseURL:  v.GetString("pricing.base_url"),
			Timeout:  v.GetDuration("pricing.timeout"),
			CacheTTL: v.GetDuration("pricing.cache_ttl"),
		},
		BankRail: BankRailConfig{
			Mode:     v.GetString("bank_rail.mode"),
			Endpoint: v.GetString("bank_rail.endpoint"),
			APIKey:   v.GetString("bank_rail.api_key"),
			Timeout:  v.GetDuration("bank_rail.timeout"),
		},
		Payment: PaymentConfig{
			MinDaysFromApproval: v.GetInt("payment.min_days_from_approval"),
			MaxBatchSize:        v.GetInt("payment.max_batch_size"),
			Currency:            v.GetString("payment.currency"),
		},
		Scheduler: SchedulerConfig{
			Enabled:            v.GetBool("scheduler.enabled"),
			PenaltyHour:        v.GetInt("scheduler.penalty_hour"),
			SettlementHour:     v.GetInt("scheduler.settlement_hour"),
			SweepIntervalHours: v.GetInt("scheduler.sweep_interval_hours"),
			JobTimeout:         v.GetDuration("scheduler.job_timeout"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dfs-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "dfs"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID"}
	}
	if cfg.Pricing.BaseURL == "" {
		cfg.Pricing.BaseURL = "http://localhost:9090"
	}
	if cfg.Pricing.Timeout == 0 {
		cfg.Pricing.Timeout = 10 * time.Second
	}
	if cfg.Pricing.CacheTTL == 0 {
		cfg.Pricing.CacheTTL = 15 * time.Minute
	}
	if cfg.BankRail.Mode == "" {
		cfg.BankRail.Mode = "simulated"
	}
	if cfg.BankRail.Timeout == 0 {
		cfg.BankRail.Timeout = 30 * time.Second
	}
	if cfg.Payment.MinDaysFromApproval == 0 {
		cfg.Payment.MinDaysFromApproval = 3
	}
	if cfg.Payment.MaxBatchSize == 0 {
		cfg.Payment.MaxBatchSize = 50
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "GHS"
	}
	if cfg.Scheduler.PenaltyHour == 0 {
		cfg.Scheduler.PenaltyHour = 1
	}
	if cfg.Scheduler.SettlementHour == 0 {
		cfg.Scheduler.SettlementHour = 3
	}
	if cfg.Scheduler.SweepIntervalHours == 0 {
		cfg.Scheduler.SweepIntervalHours = 6
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Scheduler.PenaltyHour < 0 || c.Scheduler.PenaltyHour > 23 {
		return fmt.Errorf("scheduler.penalty_hour must be 0-23, got %d", c.Scheduler.PenaltyHour)
	}
	if c.Scheduler.SettlementHour < 0 || c.Scheduler.SettlementHour > 23 {
		return fmt.Errorf("scheduler.settlement_hour must be 0-23, got %d", c.Scheduler.SettlementHour)
	}
	if c.BankRail.Mode != "simulated" && c.BankRail.Mode != "live" {
		return fmt.Errorf("bank_rail.mode must be 'simulated' or 'live', got %q", c.BankRail.Mode)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.BankRail.Mode == "live" && c.BankRail.APIKey == "" {
			return fmt.Errorf("bank_rail.api_key is required for the live rail in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
