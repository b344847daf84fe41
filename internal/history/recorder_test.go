package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmsengine/internal/models"
)

var fixedNow = time.Date(2025, 6, 8, 14, 0, 0, 0, time.UTC)

type lines struct {
	mu  sync.Mutex
	out []string
}

func (l *lines) Write(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = append(l.out, line)
}

type memorySink struct {
	mu    sync.Mutex
	facts []string
	err   error
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Persist(_ context.Context, c *models.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.facts = append(m.facts, c.ID)
	return nil
}

type panicSink struct{}

func (panicSink) Name() string { return "panic" }
func (panicSink) Persist(context.Context, *models.Candidate) error {
	panic("disk on fire")
}

func TestLineEquipment(t *testing.T) {
	c := models.NewCandidate(models.SeverityCritical, models.KindHighTemperature,
		"CRITICAL: boiler boiler-3 temperature 205°F exceeds critical threshold 200°F", 205, 200,
		models.EquipmentDetails{EquipmentID: "boiler-3", LocationID: "4", Category: models.CategoryBoiler}, fixedNow)

	line, err := Line(c)
	require.NoError(t, err)
	assert.Equal(t,
		`alert_history,alert_type=HIGH_TEMPERATURE,severity=CRITICAL,source=equipment_monitoring,equipment_id=boiler-3,location_id=4,equipment_type=boiler `+
			`message="CRITICAL: boiler boiler-3 temperature 205°F exceeds critical threshold 200°F",value=205,threshold=200 1749391200000000000`,
		line)
}

func TestLinePredictiveAndEnergy(t *testing.T) {
	c := models.NewCandidate(models.SeverityWarning, models.KindEquipmentHealthLow, "low", 35.5, 40,
		models.HealthDetails{EquipmentID: "chiller-2", LocationID: "4", Category: models.CategoryChiller}, fixedNow)
	line, err := Line(c)
	require.NoError(t, err)
	assert.Contains(t, line, `health_status="unknown"`)
	assert.Contains(t, line, "source=predictive_maintenance")

	c = models.NewCandidate(models.SeverityWarning, models.KindHighEnergyConsumption, "high", 612.5, 500,
		models.EnergyDetails{LocationID: "4", HourlyCost: models.Float(110.25)}, fixedNow)
	line, err = Line(c)
	require.NoError(t, err)
	assert.Contains(t, line, "hourly_cost=110.25,total_power_kw=0")
	assert.NotContains(t, line, "equipment_id=")
	assert.NotContains(t, line, "equipment_type=")
}

func TestRecorderDoesNotDeduplicate(t *testing.T) {
	host := &lines{}
	mem := &memorySink{}
	r := NewRecorder(mem)

	c := models.NewCandidate(models.SeverityCritical, models.KindHighTemperature, "hot", 205, 200,
		models.EquipmentDetails{EquipmentID: "boiler-3", LocationID: "4", Category: models.CategoryBoiler}, fixedNow)

	r.Record(context.Background(), c, NewLineSink(host))
	r.Record(context.Background(), c, NewLineSink(host))

	assert.Len(t, host.out, 2)
	assert.Equal(t, host.out[0], host.out[1])
	assert.Equal(t, []string{c.ID, c.ID}, mem.facts)
}

func TestRecorderContainsSinkFailures(t *testing.T) {
	host := &lines{}
	r := NewRecorder(&memorySink{err: errors.New("connection refused")}, panicSink{})

	c := models.NewCandidate(models.SeverityWarning, models.KindHighTemperature, "warm", 185, 180,
		models.EquipmentDetails{EquipmentID: "boiler-1", LocationID: "1", Category: models.CategoryBoiler}, fixedNow)

	assert.NotPanics(t, func() {
		r.Record(context.Background(), c, NewLineSink(host))
	})
	assert.Len(t, host.out, 1)
}
