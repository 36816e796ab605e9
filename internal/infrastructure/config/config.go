package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	ETL       ETLConfig
	FxRate    FxRateConfig
	RuleStore RuleStoreConfig
	Sources   SourcesConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds warehouse connection settings
type DatabaseConfig struct {
	Host            string `validate:"required"`
	Port            int    `validate:"gt=0"`
	User            string
	Password        string
	DBName          string `validate:"required"`
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // minutes
}

// DSN returns the Postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL returns the database URL form used by golang-migrate
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// RedisConfig holds the optional equivalence cache connection settings
type RedisConfig struct {
	Enabled  bool
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

// ETLConfig holds the reconciliation engine settings
type ETLConfig struct {
	ReportingCurrency string  `validate:"required,len=3"`
	DefaultFxRate     float64 `validate:"gt=0"`
	BatchSize         int     `validate:"gt=0"`
	IncludeChannel    bool    // channel participates in the fact natural key
	ApplyDiscount     bool    // apply line discount before aggregation
	RunLogPath        string  `validate:"required"`
}

// FxRateConfig holds the exchange-rate feed settings
type FxRateConfig struct {
	Endpoint       string        `validate:"required,url"`
	Indicator      string        // provider-side series identifier
	User           string
	Token          string
	RequestTimeout time.Duration `validate:"gt=0"`
	BackfillYears  int
	ChunkDays      int
	ChunkDelay     time.Duration
}

// RuleStoreConfig holds the REST rule-store settings
type RuleStoreConfig struct {
	BaseURL        string `validate:"required,url"`
	APIKey         string
	RequestTimeout time.Duration `validate:"gt=0"`
	PageSize       int           `validate:"gt=0"`
	MaxRetries     int
}

// SourceConfig describes one configured source system
type SourceConfig struct {
	Name     string `validate:"required"`
	Kind     string `validate:"required,oneof=sql graph rest"`
	DSN      string
	Currency string
	Channel  string
}

// SourcesConfig lists the source systems an ETL invocation walks, in order
type SourcesConfig struct {
	Systems []SourceConfig
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with SALESDW_ prefix (e.g. SALESDW_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file is fine, defaults and env vars apply
	}

	v.SetEnvPrefix("SALESDW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),

			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
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
		ETL: ETLConfig{
			ReportingCurrency: v.GetString("etl.reporting_currency"),
			DefaultFxRate:     v.GetFloat64("etl.default_fx_rate"),
			BatchSize:         v.GetInt("etl.batch_size"),
			IncludeChannel:    v.GetBool("etl.include_channel"),
			ApplyDiscount:     v.GetBool("etl.apply_discount"),
			RunLogPath:        v.GetString("etl.run_log_path"),
		},
		FxRate: FxRateConfig{
			Endpoint:       v.GetString("fxrate.endpoint"),
			Indicator:      v.GetString("fxrate.indicator"),
			User:           v.GetString("fxrate.user"),
			Token:          v.GetString("fxrate.token"),
			RequestTimeout: v.GetDuration("fxrate.request_timeout"),
			BackfillYears:  v.GetInt("fxrate.backfill_years"),
			ChunkDays:      v.GetInt("fxrate.chunk_days"),
			ChunkDelay:     v.GetDuration("fxrate.chunk_delay"),
		},
		RuleStore: RuleStoreConfig{
			BaseURL:        v.GetString("rulestore.base_url"),
			APIKey:         v.GetString("rulestore.api_key"),
			RequestTimeout: v.GetDuration("rulestore.request_timeout"),
			PageSize:       v.GetInt("rulestore.page_size"),
			MaxRetries:     v.GetInt("rulestore.max_retries"),
		},
	}

	var sources []SourceConfig
	if err := v.UnmarshalKey("sources.systems", &sources); err != nil {
		return nil, fmt.Errorf("error parsing sources: %w", err)
	}
	cfg.Sources = SourcesConfig{Systems: sources}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for structural problems before any
// connection is opened
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "salesdw-etl")
	v.SetDefault("app.env", "development")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "salesdw")
	v.SetDefault("database.dbname", "salesdw")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("etl.reporting_currency", "USD")
	// local currency units per reporting unit (roughly 520 CRC per USD)
	v.SetDefault("etl.default_fx_rate", 520.0)
	v.SetDefault("etl.batch_size", 50)
	v.SetDefault("etl.include_channel", true)
	v.SetDefault("etl.apply_discount", true)
	v.SetDefault("etl.run_log_path", "etl_runs.log")

	v.SetDefault("fxrate.endpoint", "https://gee.bccr.fi.cr/Indicadores/Suscripciones/WS/wsindicadoreseconomicos.asmx")
	v.SetDefault("fxrate.indicator", "317")
	v.SetDefault("fxrate.request_timeout", 30*time.Second)
	v.SetDefault("fxrate.backfill_years", 3)
	v.SetDefault("fxrate.chunk_days", 180)
	v.SetDefault("fxrate.chunk_delay", 2*time.Second)

	v.SetDefault("rulestore.base_url", "http://localhost:8000")
	v.SetDefault("rulestore.request_timeout", 30*time.Second)
	v.SetDefault("rulestore.page_size", 1000)
	v.SetDefault("rulestore.max_retries", 3)
}
