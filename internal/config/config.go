// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Table log backends.
const (
	TableLogObject = "object"
	TableLogSQLite = "sqlite"
)

// MaxBatchSize is the most messages one SQS receive can return.
const MaxBatchSize = 10

// StorageConfig holds object-store credentials. Empty fields fall back to
// each SDK's default credential chain.
type StorageConfig struct {
	Region     string // AWS_REGION, or REGION
	KeyID      string // static S3 access key
	Secret     string // static S3 secret
	Endpoint   string // S3-compatible endpoint (MinIO, R2, ...)
	URLStyle   string // "path" or "vhost"; path is implied by a custom endpoint
	GCSKeyFile string // service account JSON for gs:// locations

	AzureAccountName string
	AzureAccountKey  string
}

// Config holds the loader configuration.
type Config struct {
	LogLevel string // log level: debug, info, warn, error (default "info")
	Env      string // environment: "development" (default) or "production"

	// Sources come from a YAML file, or from a single table described by
	// TablePath and its companions.
	SourcesConfig string
	TablePath     string
	Partitions    []string
	SourceBucket  string
	SourcePrefix  string
	// SourceRoot reads source objects from root/bucket/key on the local
	// filesystem instead of S3. Used for backfills and local runs.
	SourceRoot string

	QueueURL    string
	SQSEndpoint string // for LocalStack and similar
	Storage     StorageConfig

	TableLog   string // "object" (default) or "sqlite"
	MetaDBPath string // SQLite commit log path when TableLog is "sqlite"

	// Processing
	Concurrency       int           // notifications in flight (default 4)
	BatchSize         int           // messages per receive, at most 10 (default 10)
	WaitSeconds       int           // long-poll wait (default 20)
	VisibilityTimeout int           // seconds; 0 keeps the queue's setting
	CommitMaxAttempts int           // optimistic commit attempts (default 8)
	CommitTimeout     time.Duration // bound on one started commit (default 30s)
	AckTimeout        time.Duration // bound on one acknowledgement (default 30s)

	// ReloadSchedule is a cron expression for re-reading SourcesConfig.
	ReloadSchedule string

	// Webhook
	ListenAddr     string  // HTTP listen address (default ":8080")
	WebhookToken   string  // bearer token required by POST /events
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)
	// WebhookAnonymous allows an empty WebhookToken in production.
	WebhookAnonymous bool

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the loader is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SingleSource returns true when sources are described by TablePath rather
// than a configuration file.
func (c *Config) SingleSource() bool {
	return c.SourcesConfig == "" && c.TablePath != ""
}

// ValidateSources checks that exactly one way of describing sources is used.
func (c *Config) ValidateSources() error {
	if c.SourcesConfig == "" && c.TablePath == "" {
		return fmt.Errorf("either SOURCES_CONFIG or TABLE_PATH must be set")
	}
	if c.SourcesConfig != "" && c.TablePath != "" {
		return fmt.Errorf("SOURCES_CONFIG and TABLE_PATH are mutually exclusive")
	}
	if c.SingleSource() && c.SourceBucket == "" {
		return fmt.Errorf("SOURCE_BUCKET is required with TABLE_PATH")
	}
	return nil
}

// ValidateWebhook checks the webhook settings. Production mode refuses an
// unauthenticated endpoint unless WEBHOOK_ALLOW_ANONYMOUS=true.
func (c *Config) ValidateWebhook() error {
	if c.IsProduction() && c.WebhookToken == "" && !c.WebhookAnonymous {
		return fmt.Errorf("WEBHOOK_TOKEN must be set in production unless WEBHOOK_ALLOW_ANONYMOUS=true")
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Malformed numbers and durations are reported in Warnings and replaced by
// their defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel:       os.Getenv("LOG_LEVEL"),
		Env:            os.Getenv("ENV"),
		SourcesConfig:  os.Getenv("SOURCES_CONFIG"),
		TablePath:      os.Getenv("TABLE_PATH"),
		Partitions:     SplitList(os.Getenv("PARTITIONS")),
		SourceBucket:   os.Getenv("SOURCE_BUCKET"),
		SourcePrefix:   os.Getenv("SOURCE_PREFIX"),
		SourceRoot:     os.Getenv("SOURCE_ROOT"),
		QueueURL:       os.Getenv("QUEUE_URL"),
		SQSEndpoint:    os.Getenv("SQS_ENDPOINT"),
		TableLog:       strings.ToLower(os.Getenv("TABLE_LOG")),
		MetaDBPath:     os.Getenv("META_DB_PATH"),
		ReloadSchedule: os.Getenv("CONFIG_RELOAD_SCHEDULE"),
		ListenAddr:     os.Getenv("LISTEN_ADDR"),
		WebhookToken:   os.Getenv("WEBHOOK_TOKEN"),
		Storage: StorageConfig{
			Region:           os.Getenv("AWS_REGION"),
			KeyID:            os.Getenv("KEY_ID"),
			Secret:           os.Getenv("SECRET"),
			Endpoint:         os.Getenv("ENDPOINT"),
			URLStyle:         strings.ToLower(os.Getenv("S3_URL_STYLE")),
			GCSKeyFile:       os.Getenv("GCS_KEY_FILE"),
			AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
			AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
		},
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = os.Getenv("REGION")
	}
	cfg.WebhookAnonymous = strings.EqualFold(os.Getenv("WEBHOOK_ALLOW_ANONYMOUS"), "true")

	cfg.Concurrency = cfg.intEnv("CONCURRENCY", 4)
	cfg.BatchSize = cfg.intEnv("BATCH_SIZE", MaxBatchSize)
	cfg.WaitSeconds = cfg.intEnv("WAIT_SECONDS", 20)
	cfg.VisibilityTimeout = cfg.intEnv("VISIBILITY_TIMEOUT", 0)
	cfg.CommitMaxAttempts = cfg.intEnv("COMMIT_MAX_ATTEMPTS", 8)
	cfg.CommitTimeout = cfg.durationEnv("COMMIT_TIMEOUT", 30*time.Second)
	cfg.AckTimeout = cfg.durationEnv("ACK_TIMEOUT", 30*time.Second)
	cfg.RateLimitRPS = cfg.floatEnv("RATE_LIMIT_RPS", 100)
	cfg.RateLimitBurst = cfg.intEnv("RATE_LIMIT_BURST", 200)

	// Defaults
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.TableLog == "" {
		cfg.TableLog = TableLogObject
	}
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "lake_loader_meta.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("BATCH_SIZE %d exceeds %d, using %d", cfg.BatchSize, MaxBatchSize, MaxBatchSize))
		cfg.BatchSize = MaxBatchSize
	}

	if cfg.TableLog != TableLogObject && cfg.TableLog != TableLogSQLite {
		return nil, fmt.Errorf("TABLE_LOG must be %q or %q, got %q", TableLogObject, TableLogSQLite, cfg.TableLog)
	}
	if cfg.Storage.URLStyle != "" && cfg.Storage.URLStyle != "path" && cfg.Storage.URLStyle != "vhost" {
		return nil, fmt.Errorf("S3_URL_STYLE must be \"path\" or \"vhost\", got %q", cfg.Storage.URLStyle)
	}
	if (cfg.Storage.KeyID == "") != (cfg.Storage.Secret == "") {
		return nil, fmt.Errorf("both KEY_ID and SECRET must be set together")
	}
	return cfg, nil
}

func (c *Config) intEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s=%q, using %d", key, v, def))
		return def
	}
	return n
}

func (c *Config) floatEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s=%q, using %g", key, v, def))
		return def
	}
	return f
}

func (c *Config) durationEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s=%q, using %s", key, v, def))
		return def
	}
	return d
}

// SplitList splits a comma-separated value, trimming blanks and dropping
// empty entries.
func SplitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
