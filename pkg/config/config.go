package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Blob     BlobConfig
	Upload   UploadConfig
	Worker   WorkerConfig
	JWT      JWTConfig
	GigaChat GigaChatConfig
	Cache    CacheConfig
	Watch    WatchConfig
	Logger   LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// BodyLimit caps a whole multipart request, not a single file.
	BodyLimit int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// DSN returns the libpq-style connection string used by pgxpool.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MigrateURL returns the URL form expected by the golang-migrate pgx5 driver.
func (c DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// StorageConfig selects the metadata store: "postgres" or "memory".
type StorageConfig struct {
	Driver string
}

// BlobConfig selects where raw document bytes live: "local" or "gcs".
type BlobConfig struct {
	Driver string
	Dir    string
	Bucket string
	Prefix string
}

type UploadConfig struct {
	MaxFileBytes      int64
	AllowedExtensions []string
}

type WorkerConfig struct {
	Count          int
	QueueSize      int
	ProcessTimeout time.Duration
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
}

// Enabled reports whether API routes require a bearer token.
func (c JWTConfig) Enabled() bool {
	return c.SecretKey != ""
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	Model              string
	InsecureSkipVerify bool
}

type CacheConfig struct {
	ClientSize int
	ClientTTL  time.Duration
}

type WatchConfig struct {
	Dir         string
	AutoProcess bool
	Debounce    time.Duration
}

var DefaultAllowedExtensions = []string{"pdf", "tiff", "jpg", "jpeg", "png"}

func Load() (*Config, error) {
	// .env is optional; plain environment variables work for Docker/K8s
	for _, envFile := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	maxUploadMB := getEnvInt("MAX_UPLOAD_MB", 20)

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 30)) * time.Second,
			BodyLimit:    getEnvInt("SERVER_BODY_LIMIT_MB", 10*maxUploadMB) * 1024 * 1024,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "docflow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getEnv("STORAGE_DRIVER", "postgres")),
		},
		Blob: BlobConfig{
			Driver: strings.ToLower(getEnv("BLOB_DRIVER", "local")),
			Dir:    getEnv("BLOB_DIR", "uploads"),
			Bucket: getEnv("BLOB_BUCKET", ""),
			Prefix: getEnv("BLOB_PREFIX", ""),
		},
		Upload: UploadConfig{
			MaxFileBytes:      int64(maxUploadMB) * 1024 * 1024,
			AllowedExtensions: getEnvList("UPLOAD_ALLOWED_EXTENSIONS", DefaultAllowedExtensions),
		},
		Worker: WorkerConfig{
			Count:          getEnvInt("WORKER_COUNT", 4),
			QueueSize:      getEnvInt("WORKER_QUEUE_SIZE", 256),
			ProcessTimeout: getEnvDuration("WORKER_PROCESS_TIMEOUT", 3*time.Minute),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", ""),
			Expiration: time.Duration(getEnvInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
		},
		GigaChat: GigaChatConfig{
			APIKey:             getEnv("GIGACHAT_API_KEY", ""),
			Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			Model:              getEnv("GIGACHAT_MODEL", "GigaChat"),
			InsecureSkipVerify: getEnvBool("GIGACHAT_INSECURE_SKIP_VERIFY", false),
		},
		Cache: CacheConfig{
			ClientSize: getEnvInt("CLIENT_CACHE_SIZE", 512),
			ClientTTL:  getEnvDuration("CLIENT_CACHE_TTL", 5*time.Minute),
		},
		Watch: WatchConfig{
			Dir:         getEnv("WATCH_DIR", ""),
			AutoProcess: getEnvBool("WATCH_AUTO_PROCESS", false),
			Debounce:    getEnvDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER: unsupported value %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case "local":
		if c.Blob.Dir == "" {
			errs = append(errs, errors.New("BLOB_DIR is required for the local blob driver"))
		}
	case "gcs":
		if c.Blob.Bucket == "" {
			errs = append(errs, errors.New("BLOB_BUCKET is required for the gcs blob driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("BLOB_DRIVER: unsupported value %q", c.Blob.Driver))
	}
	if c.Upload.MaxFileBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	for _, required := range DefaultAllowedExtensions {
		if !contains(c.Upload.AllowedExtensions, required) {
			errs = append(errs, fmt.Errorf("UPLOAD_ALLOWED_EXTENSIONS must include %q", required))
		}
	}
	if c.Worker.Count < 1 {
		errs = append(errs, errors.New("WORKER_COUNT must be at least 1"))
	}
	if c.Worker.QueueSize < 1 {
		errs = append(errs, errors.New("WORKER_QUEUE_SIZE must be at least 1"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go durations ("90s") and bare seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(part)), ".")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
