package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned by Validate for out-of-range settings
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Neo4j      Neo4jConfig      `mapstructure:"neo4j"`
	NATS       NATSConfig       `mapstructure:"nats"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Session    SessionConfig    `mapstructure:"session"`
	Dialogue   DialogueConfig   `mapstructure:"dialogue"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Callback   CallbackConfig   `mapstructure:"callback"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
	Debug       bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// Addr returns the HTTP listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Schema          string        `mapstructure:"schema"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&search_path=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.Schema,
	)
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	TLS       bool   `mapstructure:"tls"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type Neo4jConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	URI                string `mapstructure:"uri"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	Database           string `mapstructure:"database"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MaxLifetimeMinutes int    `mapstructure:"max_lifetime_minutes"`
}

type NATSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	StreamName string `mapstructure:"stream_name"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// AuthConfig guards the message endpoints with a shared key header.
// An empty APIKey disables the check.
type AuthConfig struct {
	APIKey string `mapstructure:"api_key"`
	Header string `mapstructure:"header"`
}

// SessionConfig selects the session store backend and its retention policy
type SessionConfig struct {
	Backend       string        `mapstructure:"backend"` // "memory" or "redis"
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	LockWait      time.Duration `mapstructure:"lock_wait"`
}

// DialogueConfig controls the phase table, completion predicate and phrasing
type DialogueConfig struct {
	MaxStep          int     `mapstructure:"max_step"`
	VerifyFrom       int     `mapstructure:"verify_from"`
	CooperateFrom    int     `mapstructure:"cooperate_from"`
	ElicitFrom       int     `mapstructure:"elicit_from"`
	RequireEmail     bool    `mapstructure:"require_email"`
	RequireUPI       bool    `mapstructure:"require_upi"`
	Seed             int64   `mapstructure:"seed"` // 0 means time-seeded
	EmotionChance    float64 `mapstructure:"emotion_chance"`
	HesitationChance float64 `mapstructure:"hesitation_chance"`
	PhrasebookFile   string  `mapstructure:"phrasebook_file"`
}

// ExtractionConfig controls the lexical evidence rules
type ExtractionConfig struct {
	MinAccountDigits int      `mapstructure:"min_account_digits"`
	MaxAccountDigits int      `mapstructure:"max_account_digits"`
	LinkPolicy       string   `mapstructure:"link_policy"` // "strict" or "permissive"
	ExtraUPIHandles  []string `mapstructure:"extra_upi_handles"`
}

// CallbackConfig configures the one-time intelligence report delivery
type CallbackConfig struct {
	Enabled   bool              `mapstructure:"enabled"`
	URL       string            `mapstructure:"url"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	Workers   int               `mapstructure:"workers"`
	QueueSize int               `mapstructure:"queue_size"`
	Headers   map[string]string `mapstructure:"headers"`
}

// SetDefaults registers default values on a viper instance
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "honeypot-lab")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8000)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 64*1024)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "honeypot")
	v.SetDefault("database.dbname", "honeypot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.schema", "public")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.key_prefix", "honeypot:")

	v.SetDefault("neo4j.enabled", false)
	v.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("neo4j.max_connections", 20)
	v.SetDefault("neo4j.max_lifetime_minutes", 60)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream_name", "HONEYPOT_EVENTS")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"*"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests_per_minute", 120)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.time_format", time.RFC3339)

	v.SetDefault("auth.header", "x-api-key")

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.retention", time.Hour)
	v.SetDefault("session.sweep_interval", 5*time.Minute)
	v.SetDefault("session.lock_ttl", 5*time.Second)
	v.SetDefault("session.lock_wait", 3*time.Second)

	v.SetDefault("dialogue.max_step", 20)
	v.SetDefault("dialogue.verify_from", 4)
	v.SetDefault("dialogue.cooperate_from", 7)
	v.SetDefault("dialogue.elicit_from", 10)
	v.SetDefault("dialogue.emotion_chance", 0.7)
	v.SetDefault("dialogue.hesitation_chance", 0.4)

	v.SetDefault("extraction.min_account_digits", 11)
	v.SetDefault("extraction.max_account_digits", 18)
	v.SetDefault("extraction.link_policy", "strict")

	v.SetDefault("callback.enabled", false)
	v.SetDefault("callback.timeout", 5*time.Second)
	v.SetDefault("callback.workers", 2)
	v.SetDefault("callback.queue_size", 256)
}

// Default returns the configuration built from defaults only
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Unmarshalling plain defaults cannot fail
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads configuration from file and environment variables.
// A missing config file is not an error; defaults and environment apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/honeypot-lab")
	}

	v.SetEnvPrefix("HONEYPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested env vars explicitly (viper doesn't auto-bind nested struct fields)
	v.BindEnv("redis.enabled", "HONEYPOT_REDIS_ENABLED")
	v.BindEnv("redis.host", "HONEYPOT_REDIS_HOST")
	v.BindEnv("redis.port", "HONEYPOT_REDIS_PORT")
	v.BindEnv("redis.password", "HONEYPOT_REDIS_PASSWORD")
	v.BindEnv("database.enabled", "HONEYPOT_DATABASE_ENABLED")
	v.BindEnv("database.host", "HONEYPOT_DATABASE_HOST")
	v.BindEnv("database.password", "HONEYPOT_DATABASE_PASSWORD")
	v.BindEnv("nats.enabled", "HONEYPOT_NATS_ENABLED")
	v.BindEnv("neo4j.enabled", "HONEYPOT_NEO4J_ENABLED")
	v.BindEnv("auth.api_key", "HONEYPOT_AUTH_API_KEY")
	v.BindEnv("callback.url", "HONEYPOT_CALLBACK_URL")
	v.BindEnv("app.environment", "HONEYPOT_APP_ENVIRONMENT")
	v.BindEnv("server.http_port", "PORT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault loads configuration with default path
func LoadDefault() (*Config, error) {
	return Load("")
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	d := c.Dialogue
	if d.VerifyFrom <= 1 || d.CooperateFrom <= d.VerifyFrom || d.ElicitFrom <= d.CooperateFrom {
		return fmt.Errorf("%w: dialogue phase bands must start after step 1 and strictly increase (verify=%d cooperate=%d elicit=%d)",
			ErrInvalidConfig, d.VerifyFrom, d.CooperateFrom, d.ElicitFrom)
	}
	if d.MaxStep < d.ElicitFrom {
		return fmt.Errorf("%w: dialogue.max_step %d is below elicit_from %d", ErrInvalidConfig, d.MaxStep, d.ElicitFrom)
	}
	if d.EmotionChance < 0 || d.EmotionChance > 1 || d.HesitationChance < 0 || d.HesitationChance > 1 {
		return fmt.Errorf("%w: dialogue chances must lie in [0,1]", ErrInvalidConfig)
	}

	e := c.Extraction
	if e.MinAccountDigits < 9 || e.MaxAccountDigits > 18 || e.MinAccountDigits > e.MaxAccountDigits {
		return fmt.Errorf("%w: account digit window [%d,%d] must lie within [9,18]",
			ErrInvalidConfig, e.MinAccountDigits, e.MaxAccountDigits)
	}
	switch e.LinkPolicy {
	case "strict", "permissive":
	default:
		return fmt.Errorf("%w: unknown extraction.link_policy %q", ErrInvalidConfig, e.LinkPolicy)
	}

	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: unknown session.backend %q", ErrInvalidConfig, c.Session.Backend)
	}
	if c.Session.Retention <= 0 {
		return fmt.Errorf("%w: session.retention must be positive", ErrInvalidConfig)
	}

	if c.Callback.Enabled && c.Callback.URL == "" {
		return fmt.Errorf("%w: callback.enabled requires callback.url", ErrInvalidConfig)
	}

	return nil
}
