package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Firestore   FirestoreConfig `mapstructure:"firestore"`
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Storage     StorageConfig
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Reconcile   ReconcileConfig   `mapstructure:"reconcile"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Log         LogConfig         `mapstructure:"log"`

	// Path of the config file actually read, empty when running on defaults.
	File string `mapstructure:"-"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type FirestoreConfig struct {
	// Driver is "firestore" or "memory". The memory driver is seeded from
	// SeedDir, a directory of collection backups.
	Driver          string `mapstructure:"driver"`
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	SeedDir         string `mapstructure:"seed_dir"`
}

type DatabaseConfig struct {
	Enabled   bool
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioSecure   bool   `mapstructure:"minio_secure"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type MonitoringConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ReconcileConfig struct {
	BatchSize          int                 `mapstructure:"batch_size"`
	ValidationProfile  string              `mapstructure:"validation_profile"`
	Profiles           map[string][]string `mapstructure:"profiles"`
	DefaultQuestionIDs []string            `mapstructure:"default_question_ids"`
	WritesPerSecond    float64             `mapstructure:"writes_per_second"`
	Retry              RetryConfig         `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxTries        uint          `mapstructure:"max_tries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsed      time.Duration `mapstructure:"max_elapsed"`
}

type LeaderboardConfig struct {
	DefaultUsername string `mapstructure:"default_username"`
	CacheKey        string `mapstructure:"cache_key"`
}

type LogConfig struct {
	File    string `mapstructure:"file"`
	Verbose bool   `mapstructure:"verbose"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("firestore.driver", "firestore")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("jwt.expire_hours", 24)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "backups")

	v.SetDefault("monitoring.job", "codequest_reconcile")

	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)

	v.SetDefault("reconcile.batch_size", 500)
	v.SetDefault("reconcile.validation_profile", "client")
	v.SetDefault("reconcile.profiles", map[string]interface{}{
		"client":  []string{"name", "description", "type", "order"},
		"catalog": []string{"zone", "levelRequired", "objectives", "rewards"},
	})
	v.SetDefault("reconcile.default_question_ids", []string{"q_basic_1", "q_basic_2", "q_basic_3"})
	v.SetDefault("reconcile.writes_per_second", 0)
	v.SetDefault("reconcile.retry.max_tries", 5)
	v.SetDefault("reconcile.retry.initial_interval", "200ms")
	v.SetDefault("reconcile.retry.max_interval", "5s")
	v.SetDefault("reconcile.retry.max_elapsed", "1m")

	v.SetDefault("leaderboard.default_username", "Usuario")
	v.SetDefault("leaderboard.cache_key", "codequest:leaderboard")

	v.SetDefault("log.file", "logs/app.log")
}

// LoadConfig reads config.yaml from path when it exists and layers
// environment overrides on top. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CODEQUEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Firestore
	v.BindEnv("firestore.project_id", "FIREBASE_PROJECT_ID")
	v.BindEnv("firestore.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")
	v.BindEnv("firestore.driver", "FIRESTORE_DRIVER")

	// Database
	v.BindEnv("database.enabled", "DATABASE_ENABLED")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.port", "SERVER_PORT")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing and metrics
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")
	v.BindEnv("monitoring.pushgateway_url", "PUSHGATEWAY_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if _, ok := c.Reconcile.Profiles[c.Reconcile.ValidationProfile]; !ok {
		return fmt.Errorf("unknown validation profile %q", c.Reconcile.ValidationProfile)
	}
	if c.Reconcile.BatchSize <= 0 || c.Reconcile.BatchSize > 500 {
		return fmt.Errorf("reconcile.batch_size must be between 1 and 500, got %d", c.Reconcile.BatchSize)
	}
	switch c.Firestore.Driver {
	case "firestore", "memory":
	default:
		return fmt.Errorf("unknown firestore driver %q", c.Firestore.Driver)
	}
	return nil
}
