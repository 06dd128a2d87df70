package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultDownloadRoot  = "/root/data/"
	DefaultLogDir        = "/root/data/logs/"
	DefaultSitesFile     = "sites.yaml"
	DefaultWorkers       = 10
	DefaultRetryAttempts = 5
	DefaultRetryDelay    = 5 * time.Second
	DefaultAuthorityURL  = "https://accounts.accesscontrol.windows.net"
)

type Config struct {
	SitesFile     string
	DownloadRoot  string
	LogDir        string
	Workers       int
	RetryAttempts int
	RetryDelay    time.Duration
	AuthorityURL  string
	CatalogPath   string

	// Offsite copy of finished archives. Upload is disabled when BucketName is empty.
	ApiURL     string
	AccessKey  string
	SecretKey  string
	BucketName string
	Region     string
	Prefix     string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found, using environment variables only")
	}

	workers, err := getEnvInt("WORKERS", DefaultWorkers)
	if err != nil {
		return nil, err
	}
	attempts, err := getEnvInt("RETRY_ATTEMPTS", DefaultRetryAttempts)
	if err != nil {
		return nil, err
	}
	delay, err := getEnvDuration("RETRY_DELAY", DefaultRetryDelay)
	if err != nil {
		return nil, err
	}

	config := &Config{
		SitesFile:     getEnv("SITES_FILE", DefaultSitesFile),
		DownloadRoot:  getEnv("DOWNLOAD_ROOT", DefaultDownloadRoot),
		LogDir:        getEnv("LOG_DIR", DefaultLogDir),
		Workers:       workers,
		RetryAttempts: attempts,
		RetryDelay:    delay,
		AuthorityURL:  getEnv("ACS_AUTHORITY_URL", DefaultAuthorityURL),
		CatalogPath:   getEnv("CATALOG_PATH", ""),
		ApiURL:        getEnv("S3_API_URL", ""),
		AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		SecretKey:     getEnv("S3_SECRET_KEY", ""),
		BucketName:    getEnv("S3_BUCKET", ""),
		Region:        getEnv("S3_REGION", ""),
		Prefix:        getEnv("S3_PREFIX", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the values that flags may also override.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.RetryAttempts)
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("retry delay must be positive, got %s", c.RetryDelay)
	}
	if c.DownloadRoot == "" {
		return fmt.Errorf("download root must not be empty")
	}
	if c.LogDir == "" {
		return fmt.Errorf("log directory must not be empty")
	}
	return nil
}

func (c *Config) UploadEnabled() bool {
	return c.BucketName != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

// getEnvDuration accepts Go durations ("750ms", "5s") and bare seconds ("5").
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
