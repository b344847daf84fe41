package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmsengine/internal/config"
	"bmsengine/internal/models"
)

func TestInfluxWriteLines(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
		query  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/write" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		query = r.URL.RawQuery
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w, err := NewInflux(config.InfluxConfig{URL: srv.URL, Token: "t", Org: "automata", Bucket: "Alerts"})
	require.NoError(t, err)
	defer w.Close()

	lines := []string{
		`equipment_health,equipment_id=boiler-1 health_score=83.5 1749391200000000000`,
		`alert_history,alert_type=HIGH_TEMPERATURE message="hot",value=205,threshold=200 1749391200000000000`,
	}
	require.NoError(t, w.WriteLines(context.Background(), lines...))
	require.NoError(t, w.WriteLines(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	for _, l := range lines {
		assert.Contains(t, bodies[0], l)
	}
	assert.Contains(t, query, "bucket=Alerts")
	assert.Contains(t, query, "org=automata")
}

func TestInfluxWriteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"invalid","message":"unable to parse"}`))
	}))
	defer srv.Close()

	w, err := NewInflux(config.InfluxConfig{URL: srv.URL, Bucket: "Alerts"})
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.WriteLines(context.Background(), "bad line"))
}

func TestInfluxRequiresURL(t *testing.T) {
	_, err := NewInflux(config.InfluxConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPostgresAlertHistory(t *testing.T) {
	if os.Getenv("POSTGRES_TEST") != "1" {
		t.Skip("set POSTGRES_TEST=1 and POSTGRES_DSN to run against postgres")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := OpenPostgres(ctx, os.Getenv("POSTGRES_DSN"))
	require.NoError(t, err)
	defer p.Close()

	subject := "boiler-" + strings.ReplaceAll(time.Now().Format("150405.000000"), ".", "")
	c := models.NewCandidate(models.SeverityCritical, models.KindHighTemperature, "hot", 205, 200,
		models.EquipmentDetails{EquipmentID: subject, LocationID: "4", Category: models.CategoryBoiler}, time.Now().UTC())

	require.NoError(t, p.Persist(ctx, c))
	require.NoError(t, p.Persist(ctx, c))

	facts, err := p.Recent(ctx, subject, 10)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, c.ID, facts[0].ID)
	assert.Equal(t, models.CategoryBoiler, facts[0].EquipmentType)
	assert.Nil(t, facts[0].HourlyCost)
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
