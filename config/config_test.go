package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CARDFORM_CONFIG", "OTEL_EXPORTER_OTLP_ENDPOINT", "PORT", "LOG_LEVEL", "EXPIRY_TZ",
		"SUBMIT_DELAY", "SUCCESS_DISMISS_DELAY", "SESSION_TTL", "EVICT_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "cardform.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
submit_delay: 500ms
success_dismiss_delay: 4s
expiry_timezone: Europe/Madrid
messages:
  button.idle: Pay now
`), 0o600))

	t.Setenv("CARDFORM_CONFIG", path)
	t.Setenv("SUBMIT_DELAY", "1s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, time.Second, cfg.SubmitDelay)
	require.Equal(t, 4*time.Second, cfg.DismissDelay)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.Equal(t, "Europe/Madrid", cfg.ExpiryTimezone)
	require.Equal(t, map[string]string{"button.idle": "Pay now"}, cfg.Messages)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Europe/Madrid", loc.String())
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	t.Setenv("SESSION_TTL", "soon")
	_, err := Load()
	require.ErrorContains(t, err, "invalid SESSION_TTL")

	t.Setenv("SESSION_TTL", "-1s")
	_, err = Load()
	require.ErrorContains(t, err, "invalid SESSION_TTL")

	t.Setenv("SESSION_TTL", "")
	t.Setenv("EVICT_INTERVAL", "0s")
	_, err = Load()
	require.ErrorContains(t, err, "invalid EVICT_INTERVAL")

	t.Setenv("EVICT_INTERVAL", "")
	t.Setenv("SUBMIT_DELAY", "-2s")
	_, err = Load()
	require.ErrorContains(t, err, "invalid SUBMIT_DELAY")

	t.Setenv("SUBMIT_DELAY", "")
	t.Setenv("SUCCESS_DISMISS_DELAY", "-1ms")
	_, err = Load()
	require.ErrorContains(t, err, "invalid SUCCESS_DISMISS_DELAY")

	t.Setenv("SUCCESS_DISMISS_DELAY", "")
	t.Setenv("EXPIRY_TZ", "Mars/Olympus")
	_, err = Load()
	require.ErrorContains(t, err, "invalid expiry timezone")

	t.Setenv("EXPIRY_TZ", "")
	t.Setenv("CARDFORM_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	require.ErrorContains(t, err, "failed to read config file")
}

func TestLoad_FileRangeErrors(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "cardform.yaml")
	require.NoError(t, os.WriteFile(path, []byte("evict_interval: -5s\n"), 0o600))
	t.Setenv("CARDFORM_CONFIG", path)

	_, err := Load()
	require.ErrorContains(t, err, "invalid EVICT_INTERVAL")

	// zero delays are allowed
	require.NoError(t, os.WriteFile(path, []byte("submit_delay: 0s\nsuccess_dismiss_delay: 0s\n"), 0o600))
	cfg, err := Load()
	require.NoError(t, err)
	require.Zero(t, cfg.SubmitDelay)
}
