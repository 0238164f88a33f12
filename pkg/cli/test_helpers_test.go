package cli

import (
	"bytes"
	"path/filepath"
	"testing"
)

var loaderEnv = []string{
	"LOG_LEVEL", "ENV", "SOURCES_CONFIG", "TABLE_PATH", "PARTITIONS", "SOURCE_BUCKET",
	"SOURCE_PREFIX", "SOURCE_ROOT", "QUEUE_URL", "TABLE_LOG", "META_DB_PATH",
	"CONFIG_RELOAD_SCHEDULE", "WEBHOOK_TOKEN", "KEY_ID", "SECRET",
}

// cleanEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range loaderEnv {
		t.Setenv(k, "")
	}
}

// executeCmd runs the root command with args and returns what it wrote to
// stdout. Logs go to a separate buffer.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}
