package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"LOG_LEVEL", "ENV", "SOURCES_CONFIG", "TABLE_PATH", "PARTITIONS", "SOURCE_BUCKET",
	"SOURCE_PREFIX", "SOURCE_ROOT", "QUEUE_URL", "SQS_ENDPOINT", "AWS_REGION", "REGION", "KEY_ID", "SECRET", "ENDPOINT",
	"S3_URL_STYLE", "GCS_KEY_FILE", "AZURE_ACCOUNT_NAME", "AZURE_ACCOUNT_KEY", "TABLE_LOG",
	"META_DB_PATH", "CONCURRENCY", "BATCH_SIZE", "WAIT_SECONDS", "VISIBILITY_TIMEOUT",
	"COMMIT_MAX_ATTEMPTS", "COMMIT_TIMEOUT", "ACK_TIMEOUT", "CONFIG_RELOAD_SCHEDULE",
	"LISTEN_ADDR", "WEBHOOK_TOKEN", "WEBHOOK_ALLOW_ANONYMOUS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, TableLogObject, cfg.TableLog)
	assert.Equal(t, "lake_loader_meta.sqlite", cfg.MetaDBPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 20, cfg.WaitSeconds)
	assert.Equal(t, 0, cfg.VisibilityTimeout)
	assert.Equal(t, 8, cfg.CommitMaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.CommitTimeout)
	assert.Equal(t, 30*time.Second, cfg.AckTimeout)
	assert.InDelta(t, 100.0, cfg.RateLimitRPS, 0)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Nil(t, cfg.Partitions)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("TABLE_PATH", "s3://lake/events")
	t.Setenv("PARTITIONS", " date , ,region")
	t.Setenv("SOURCE_BUCKET", "raw")
	t.Setenv("SOURCE_PREFIX", "^events/")
	t.Setenv("QUEUE_URL", "https://sqs.eu-west-1.amazonaws.com/123/events")
	t.Setenv("REGION", "eu-west-1")
	t.Setenv("KEY_ID", "testkey")
	t.Setenv("SECRET", "testsecret")
	t.Setenv("ENDPOINT", "http://localhost:9000")
	t.Setenv("S3_URL_STYLE", "PATH")
	t.Setenv("TABLE_LOG", "sqlite")
	t.Setenv("META_DB_PATH", "/tmp/test.sqlite")
	t.Setenv("CONCURRENCY", "16")
	t.Setenv("BATCH_SIZE", "5")
	t.Setenv("COMMIT_TIMEOUT", "1m")
	t.Setenv("CONFIG_RELOAD_SCHEDULE", "@every 5m")
	t.Setenv("WEBHOOK_TOKEN", "s3cret")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "s3://lake/events", cfg.TablePath)
	assert.Equal(t, []string{"date", "region"}, cfg.Partitions)
	assert.Equal(t, "eu-west-1", cfg.Storage.Region)
	assert.Equal(t, "path", cfg.Storage.URLStyle)
	assert.Equal(t, TableLogSQLite, cfg.TableLog)
	assert.Equal(t, "/tmp/test.sqlite", cfg.MetaDBPath)
	assert.Equal(t, 16, cfg.Concurrency)
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, time.Minute, cfg.CommitTimeout)
	assert.Equal(t, "@every 5m", cfg.ReloadSchedule)
	assert.Empty(t, cfg.Warnings)
	assert.True(t, cfg.SingleSource())
	require.NoError(t, cfg.ValidateSources())
}

func TestLoadFromEnv_AWSRegionWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("REGION", "eu-west-1")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
}

func TestLoadFromEnv_InvalidNumbersWarn(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONCURRENCY", "many")
	t.Setenv("COMMIT_TIMEOUT", "-3s")
	t.Setenv("BATCH_SIZE", "50")
	t.Setenv("WEBHOOK_TOKEN", "x")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.CommitTimeout)
	assert.Equal(t, MaxBatchSize, cfg.BatchSize)
	assert.Len(t, cfg.Warnings, 3)
}

func TestLoadFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"table log", map[string]string{"TABLE_LOG": "postgres"}, "TABLE_LOG"},
		{"url style", map[string]string{"S3_URL_STYLE": "virtual"}, "S3_URL_STYLE"},
		{"partial credentials", map[string]string{"KEY_ID": "k"}, "KEY_ID and SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromEnv_ProductionWebhook(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	require.ErrorContains(t, cfg.ValidateWebhook(), "WEBHOOK_TOKEN")

	t.Setenv("WEBHOOK_ALLOW_ANONYMOUS", "TRUE")
	cfg, err = LoadFromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateWebhook())

	cfg = &Config{WebhookToken: "s3cret", Env: "production"}
	require.NoError(t, cfg.ValidateWebhook())
}

func TestValidateSources(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"config file", Config{SourcesConfig: "sources.yaml"}, ""},
		{"single source", Config{TablePath: "s3://lake/t", SourceBucket: "raw"}, ""},
		{"nothing", Config{}, "either SOURCES_CONFIG or TABLE_PATH"},
		{"both", Config{SourcesConfig: "s.yaml", TablePath: "s3://lake/t"}, "mutually exclusive"},
		{"single without bucket", Config{TablePath: "s3://lake/t"}, "SOURCE_BUCKET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.ValidateSources()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError, "info": slog.LevelInfo, "": slog.LevelInfo,
	} {
		cfg := Config{LogLevel: level}
		assert.Equal(t, want, cfg.SlogLevel(), level)
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()
	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList("  "))
	assert.Equal(t, []string{"a", "b"}, SplitList("a,,b ,"))
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	if err != nil {
		t.Errorf("expected no error for missing .env, got: %v", err)
	}
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_KEY=test_value\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_KEY"); val != "test_value" {
		t.Errorf("TEST_KEY = %q, want %q", val, "test_value")
	}
	_ = os.Unsetenv("TEST_KEY")
}

func TestLoadDotEnv_SkipsComments(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("# comment\nTEST_COMMENT_KEY=value\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_COMMENT_KEY"); val != "value" {
		t.Errorf("TEST_COMMENT_KEY = %q, want %q", val, "value")
	}
	_ = os.Unsetenv("TEST_COMMENT_KEY")
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("TEST_PRECEDENCE_KEY", "from_env")

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_PRECEDENCE_KEY=from_file\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_PRECEDENCE_KEY"); val != "from_env" {
		t.Errorf("TEST_PRECEDENCE_KEY = %q, want %q (env precedence)", val, "from_env")
	}
}
