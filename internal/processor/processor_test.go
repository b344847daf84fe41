package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmsengine/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.Workers = 2
	cfg.BatchTimeout = 10 * time.Millisecond
	return cfg
}

func startProcessor(t *testing.T, cfg *config.Config) (*Processor, string, func() error) {
	t.Helper()
	p := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	select {
	case <-p.Ready():
	case err := <-errCh:
		cancel()
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("processor did not become ready")
	}

	stop := func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(20 * time.Second):
			t.Fatal("processor did not stop")
			return nil
		}
	}
	return p, "http://" + p.Addr(), stop
}

func TestProcessorRun(t *testing.T) {
	cfg := testConfig()
	p := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
}

func TestProcessorRejectsBadThresholdsFile(t *testing.T) {
	cfg := testConfig()
	cfg.ThresholdsFile = "/does/not/exist.yaml"

	err := New(cfg).Run(context.Background())
	assert.Error(t, err)
}

func TestProcessorEndToEnd(t *testing.T) {
	var slackCalls atomic.Int32
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slackCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer slack.Close()

	_, base, stop := startProcessor(t, testConfig())

	body, err := json.Marshal(map[string]any{
		"id":   "env-1",
		"args": map[string]string{"slack_webhook_url": slack.URL},
		"tables": []map[string]any{{
			"table_name": "metrics",
			"rows": []map[string]any{
				{"equipmentId": "boiler-1", "location_id": "4", "temperature": 210.0},
			},
		}},
	})
	require.NoError(t, err)

	resp, err := http.Post(base+"/writes", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	assert.Eventually(t, func() bool {
		r, err := http.Get(base + "/stats")
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var stats Stats
		if json.NewDecoder(r.Body).Decode(&stats) != nil {
			return false
		}
		return stats.Worker.Processed == 1
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, int32(1), slackCalls.Load(), "critical temperature notifies slack once")

	r, err := http.Get(base + "/equipment/boiler-1/health")
	require.NoError(t, err)
	var view map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&view))
	r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, "boiler-1", view["equipment_id"])

	r, err = http.Get(base + "/locations/4/energy")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)

	r, err = http.Get(base + "/alerts")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusNotFound, r.StatusCode, "no postgres configured")

	require.NoError(t, stop())
}

func TestProcessorHealthAndStats(t *testing.T) {
	p, base, stop := startProcessor(t, testConfig())

	r, err := http.Get(base + "/health")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	stats := p.Stats()
	assert.Equal(t, []string{"alert_engine", "predictive_maintenance", "energy_optimization"}, stats.Triggers)
	assert.Equal(t, 1000, stats.Worker.QueueCap)
	require.NotNil(t, stats.CooldownEntries)
	assert.Nil(t, stats.Producer)

	r, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)

	require.NoError(t, stop())
}

func TestProcessorMiddlewareCoversEveryRoute(t *testing.T) {
	_, base, stop := startProcessor(t, testConfig())

	for _, path := range []string{"/health", "/stats", "/metrics", "/alerts", "/equipment/pump-9/health", "/locations/7/energy"} {
		r, err := http.Get(base + path)
		require.NoError(t, err, path)
		r.Body.Close()
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"), path)
	}

	req, err := http.NewRequest(http.MethodGet, base+"/stats", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, "req-42", r.Header.Get("X-Request-ID"))

	require.NoError(t, stop())
}
