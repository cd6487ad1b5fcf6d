package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Session store and story source backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	SourceYAML    = "yaml"
)

// Config is the story engine configuration, read from the environment.
// Secrets (DB password, JWT secret) come from files under SecretsDir.
type Config struct {
	Port        string `envconfig:"GAMEPLAY_SERVER_PORT" default:"8082"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	LogSampling bool   `envconfig:"LOG_SAMPLING" default:"false"`
	SecretsDir  string `envconfig:"SECRETS_DIR" default:"/run/secrets"`

	SessionStore string `envconfig:"SESSION_STORE" default:"postgres"`
	StorySource  string `envconfig:"STORY_SOURCE" default:"postgres"`
	StoryDir     string `envconfig:"STORY_DIR" default:"./stories"`
	SQLitePath   string `envconfig:"SQLITE_PATH" default:"story-engine.db"`

	DBHost         string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort         string        `envconfig:"DB_PORT" default:"5432"`
	DBUser         string        `envconfig:"DB_USER" default:"postgres"`
	DBName         string        `envconfig:"DB_NAME" default:"story_engine"`
	DBSSLMode      string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns     int32         `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout  time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	MigrateOnStart bool          `envconfig:"MIGRATE_ON_START" default:"true"`
	DBPassword     string        `ignored:"true"`

	// Empty RedisURL selects the in-process locker and disables the story cache.
	RedisURL       string        `envconfig:"REDIS_URL"`
	StoryCacheTTL  time.Duration `envconfig:"STORY_CACHE_TTL" default:"5m"`
	SessionLockTTL time.Duration `envconfig:"SESSION_LOCK_TTL" default:"10s"`

	// Empty RabbitMQURL disables session events.
	RabbitMQURL        string `envconfig:"RABBITMQ_URL"`
	SessionEventsQueue string `envconfig:"SESSION_EVENTS_QUEUE" default:"session_events"`

	AcceptClientState bool `envconfig:"GAMEPLAY_ACCEPT_CLIENT_STATE" default:"true"`

	JWTSecret string `ignored:"true"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// UsesPostgres reports whether any component needs the Postgres pool.
func (c *Config) UsesPostgres() bool {
	return c.SessionStore == StorePostgres || c.StorySource == StorePostgres
}

// LoadConfig reads .env (if present), the environment and the secret files.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load story engine config: %w", err)
	}
	cfg.SessionStore = strings.ToLower(cfg.SessionStore)
	cfg.StorySource = strings.ToLower(cfg.StorySource)

	switch cfg.SessionStore {
	case StorePostgres, StoreSQLite:
	default:
		return nil, fmt.Errorf("SESSION_STORE must be %q or %q, got %q", StorePostgres, StoreSQLite, cfg.SessionStore)
	}
	switch cfg.StorySource {
	case StorePostgres, SourceYAML:
	default:
		return nil, fmt.Errorf("STORY_SOURCE must be %q or %q, got %q", StorePostgres, SourceYAML, cfg.StorySource)
	}

	var err error
	if cfg.JWTSecret, err = ReadSecret(cfg.SecretsDir, "jwt_secret"); err != nil {
		return nil, err
	}
	if cfg.UsesPostgres() {
		if cfg.DBPassword, err = ReadSecret(cfg.SecretsDir, "db_password"); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// LogSummary logs the effective configuration without secrets.
func (c *Config) LogSummary(log *zap.Logger) {
	fields := []zap.Field{
		zap.String("port", c.Port),
		zap.String("logLevel", c.LogLevel),
		zap.Bool("logSampling", c.LogSampling),
		zap.String("sessionStore", c.SessionStore),
		zap.String("storySource", c.StorySource),
		zap.Bool("redis", c.RedisURL != ""),
		zap.Bool("rabbitmq", c.RabbitMQURL != ""),
		zap.Bool("acceptClientState", c.AcceptClientState),
	}
	if c.UsesPostgres() {
		fields = append(fields, zap.String("db", fmt.Sprintf("postgres://%s:***@%s:%s/%s?sslmode=%s",
			c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)))
	}
	if c.SessionStore == StoreSQLite {
		fields = append(fields, zap.String("sqlitePath", c.SQLitePath))
	}
	if c.StorySource == SourceYAML {
		fields = append(fields, zap.String("storyDir", c.StoryDir))
	}
	log.Info("Configuration loaded", fields...)
}

// ReadSecret reads a Docker-style secret file dir/name.
func ReadSecret(dir, name string) (string, error) {
	filePath := filepath.Join(dir, name)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}
