package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// RecordStore holds appointments: "postgres" or "memory".
	RecordStore string `mapstructure:"RECORD_STORE"`
	// StatusStore holds series statuses: "postgres", "firestore" or "memory".
	StatusStore      string `mapstructure:"STATUS_STORE"`
	FirestoreProject string `mapstructure:"FIRESTORE_PROJECT"`

	// StorageBackend is "minio", "gcs" or "local".
	StorageBackend   string `mapstructure:"STORAGE_BACKEND"`
	StorageBucket    string `mapstructure:"STORAGE_BUCKET"`
	MinioEndpoint    string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey   string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey   string `mapstructure:"MINIO_SECRET_KEY"`
	MinioSecure      bool   `mapstructure:"MINIO_SECURE"`
	GCSEndpoint      string `mapstructure:"GCS_ENDPOINT"`
	LocalStorageRoot string `mapstructure:"LOCAL_STORAGE_ROOT"`

	SecretManagerProject string `mapstructure:"SECRET_MANAGER_PROJECT"`
	MinioSecretName      string `mapstructure:"MINIO_SECRET_NAME"`

	AnalysisURL     string        `mapstructure:"ANALYSIS_URL"`
	AnalysisTimeout time.Duration `mapstructure:"ANALYSIS_TIMEOUT"`
	// AnalysisParams are sent with every job, as "key=value,key=value".
	AnalysisParams string `mapstructure:"ANALYSIS_PARAMS"`
	DumpVolumes    bool   `mapstructure:"DUMP_VOLUMES"`

	BodyLimit      string   `mapstructure:"BODY_LIMIT"`
	UploadMaxSize  string   `mapstructure:"UPLOAD_MAX_SIZE"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"RECORD_STORE", "STATUS_STORE", "FIRESTORE_PROJECT",
	"STORAGE_BACKEND", "STORAGE_BUCKET",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_SECURE",
	"GCS_ENDPOINT", "LOCAL_STORAGE_ROOT",
	"SECRET_MANAGER_PROJECT", "MINIO_SECRET_NAME",
	"ANALYSIS_URL", "ANALYSIS_TIMEOUT", "ANALYSIS_PARAMS", "DUMP_VOLUMES",
	"BODY_LIMIT", "UPLOAD_MAX_SIZE", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("RECORD_STORE", "postgres")
	v.SetDefault("STATUS_STORE", "postgres")
	v.SetDefault("STORAGE_BACKEND", "minio")
	v.SetDefault("STORAGE_BUCKET", "processed")
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_SECRET_NAME", "minio-secret-key")
	v.SetDefault("LOCAL_STORAGE_ROOT", "./data")
	v.SetDefault("ANALYSIS_TIMEOUT", "10s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("UPLOAD_MAX_SIZE", "2G")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// NeedsDatabase reports whether any store is backed by Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.RecordStore == "postgres" || c.StatusStore == "postgres"
}

// Validate checks that the selected backends are known and have what they
// need to start.
func (c *Config) Validate() error {
	switch c.RecordStore {
	case "postgres", "memory":
	default:
		return fmt.Errorf("RECORD_STORE must be \"postgres\" or \"memory\", got %q", c.RecordStore)
	}

	switch c.StatusStore {
	case "postgres", "memory":
	case "firestore":
		if c.FirestoreProject == "" {
			return fmt.Errorf("FIRESTORE_PROJECT is required when STATUS_STORE is \"firestore\"")
		}
	default:
		return fmt.Errorf("STATUS_STORE must be \"postgres\", \"firestore\" or \"memory\", got %q", c.StatusStore)
	}

	if c.NeedsDatabase() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.StorageBackend {
	case "minio":
		if c.MinioEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required when STORAGE_BACKEND is \"minio\"")
		}
	case "gcs":
	case "local":
		if c.LocalStorageRoot == "" {
			return fmt.Errorf("LOCAL_STORAGE_ROOT is required when STORAGE_BACKEND is \"local\"")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be \"minio\", \"gcs\" or \"local\", got %q", c.StorageBackend)
	}

	if c.StorageBucket == "" || strings.Contains(c.StorageBucket, "/") {
		return fmt.Errorf("STORAGE_BUCKET must be a single bucket name, got %q", c.StorageBucket)
	}
	if c.AnalysisTimeout <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT must be positive")
	}
	if _, err := c.AnalysisParamMap(); err != nil {
		return err
	}
	return nil
}

// AnalysisParamMap parses AnalysisParams. Empty input gives a nil map.
func (c *Config) AnalysisParamMap() (map[string]string, error) {
	if strings.TrimSpace(c.AnalysisParams) == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(c.AnalysisParams, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("ANALYSIS_PARAMS: expected key=value, got %q", pair)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
