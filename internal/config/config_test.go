package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	t.Run("string form", func(t *testing.T) {
		args := ParseArgs("recipient_email=ops@example.com, alerts_db = AlertHistory,broken")
		assert.Equal(t, "ops@example.com", args["recipient_email"])
		assert.Equal(t, "AlertHistory", args["alerts_db"])
		assert.Len(t, args, 2)
	})

	t.Run("value keeps later equals signs", func(t *testing.T) {
		args := ParseArgs("slack_webhook_url=https://hooks.example.com/x?a=b")
		assert.Equal(t, "https://hooks.example.com/x?a=b", args["slack_webhook_url"])
	})

	t.Run("map form", func(t *testing.T) {
		args := ParseArgs(map[string]any{"alerts_db": "db", "retries": 3, "skip": nil})
		assert.Equal(t, "db", args["alerts_db"])
		assert.Equal(t, "3", args["retries"])
		assert.NotContains(t, args, "skip")
	})

	t.Run("nil and unknown", func(t *testing.T) {
		assert.Empty(t, ParseArgs(nil))
		assert.Empty(t, ParseArgs(42))
	})
}

func TestArgsResolve(t *testing.T) {
	t.Setenv("TEST_BMS_RECIPIENT", "env@example.com")

	args := Args{"recipient_email": "arg@example.com", "empty": ""}
	assert.Equal(t, "arg@example.com", args.Resolve("recipient_email", "TEST_BMS_RECIPIENT", "x"))
	assert.Equal(t, "env@example.com", args.Resolve("empty", "TEST_BMS_RECIPIENT", "x"))
	assert.Equal(t, "fallback", args.Resolve("missing", "TEST_BMS_UNSET_VAR", "fallback"))
}

func TestArgsMerge(t *testing.T) {
	base := Args{"alerts_db": "base", "recipient_email": "a@example.com"}
	merged := Args{"alerts_db": "override"}.Merge(base)

	assert.Equal(t, "override", merged["alerts_db"])
	assert.Equal(t, "a@example.com", merged["recipient_email"])
	assert.Equal(t, "base", base["alerts_db"])
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":9090"
workers: 2
cooldown:
  window: 2m
kafka:
  brokers: ["k1:9092"]
args:
  alerts_db: AlertHistory
`), 0o600))

	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("COOLDOWN_WINDOW", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 2*time.Minute, cfg.Cooldown.Window)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "AlertHistory", cfg.Args["alerts_db"])
	assert.Equal(t, 3, cfg.Notify.RetryAttempts)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 0\n"), 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
}
