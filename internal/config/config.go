package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Bulk     BulkConfig     `mapstructure:"bulk"`
	Query    QueryConfig    `mapstructure:"query"`
	Export   ExportConfig   `mapstructure:"export"`
	Media    MediaConfig    `mapstructure:"media"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         string   `mapstructure:"port"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// BackendConfig points at the distribution backend REST API.
type BackendConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ReadRetries uint64        `mapstructure:"read_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

type BulkConfig struct {
	ProgressTTL time.Duration `mapstructure:"progress_ttl"`
	MaxItems    int           `mapstructure:"max_items"`
}

type QueryConfig struct {
	Debounce     time.Duration `mapstructure:"debounce"`
	DefaultLimit int           `mapstructure:"default_limit"`
	MaxLimit     int           `mapstructure:"max_limit"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

type ExportConfig struct {
	ChunkSize int           `mapstructure:"chunk_size"`
	URLExpiry time.Duration `mapstructure:"url_expiry"`
}

type MediaConfig struct {
	MaxSize    int64    `mapstructure:"max_size"`
	Extensions []string `mapstructure:"extensions"`
}

// AuditConfig controls pruning of the action log. RetentionDays 0 keeps
// everything.
type AuditConfig struct {
	RetentionDays int           `mapstructure:"retention_days"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads .env (if present), then config.yaml (if present), then the
// environment. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Export.ChunkSize <= 0 {
		return fmt.Errorf("export.chunk_size must be positive, got %d", c.Export.ChunkSize)
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative, got %d", c.Audit.RetentionDays)
	}
	if c.Query.DefaultLimit <= 0 || c.Query.DefaultLimit > c.Query.MaxLimit {
		return fmt.Errorf("query.default_limit must be in 1..%d, got %d", c.Query.MaxLimit, c.Query.DefaultLimit)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allow_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "console")
	v.SetDefault("database.dbname", "console")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")

	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.bucket_name", "console")

	v.SetDefault("jwt.issuer", "tunebridge")

	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("backend.read_retries", 2)
	v.SetDefault("backend.retry_delay", 300*time.Millisecond)

	v.SetDefault("bulk.progress_ttl", 24*time.Hour)
	v.SetDefault("bulk.max_items", 500)

	v.SetDefault("query.debounce", 500*time.Millisecond)
	v.SetDefault("query.default_limit", 10)
	v.SetDefault("query.max_limit", 100)
	v.SetDefault("query.cache_ttl", 15*time.Second)

	v.SetDefault("export.chunk_size", 50)
	v.SetDefault("export.url_expiry", 24*time.Hour)

	v.SetDefault("media.max_size", 50<<20)
	v.SetDefault("media.extensions", []string{".jpg", ".jpeg", ".png", ".webp", ".mp3", ".wav", ".flac"})

	v.SetDefault("audit.retention_days", 180)
	v.SetDefault("audit.prune_interval", 6*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("server.port", "SERVER_PORT")

	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")

	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	v.BindEnv("minio.endpoint", "MINIO_ENDPOINT")
	v.BindEnv("minio.access_key_id", "MINIO_ACCESS_KEY")
	v.BindEnv("minio.secret_access_key", "MINIO_SECRET_KEY")
	v.BindEnv("minio.bucket_name", "MINIO_BUCKET")

	v.BindEnv("jwt.secret", "JWT_SECRET")

	v.BindEnv("backend.base_url", "BACKEND_BASE_URL")

	v.BindEnv("audit.retention_days", "AUDIT_RETENTION_DAYS")

	v.BindEnv("log.level", "LOG_LEVEL")
}
