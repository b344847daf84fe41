package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmsengine/internal/models"
)

var fixedNow = time.Date(2025, 6, 8, 14, 0, 0, 0, time.UTC)

func newAnalyzer() *Analyzer {
	return NewAnalyzer(WithClock(func() time.Time { return fixedNow }))
}

func reading(id string, metrics models.Row) models.Reading {
	return models.Reading{EquipmentID: id, LocationID: "4", Metrics: metrics, ReceivedAt: fixedNow}
}

func TestTemperatureScoreBands(t *testing.T) {
	keys := []string{"temperature"}
	cases := []struct {
		temp float64
		want float64
	}{
		{150, 100},
		{160, 100},
		{170, 85},
		{190, 70},
		{200, 70},
		{210, 30},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TemperatureScore(models.Row{"temperature": tc.temp}, keys, 200), "temp %v", tc.temp)
	}

	assert.Equal(t, 75.0, TemperatureScore(models.Row{"pressure": 12.0}, keys, 200))
	assert.Equal(t, 85.0, TemperatureScore(models.Row{"temperature": "170"}, keys, 200), "numeric strings count")
}

func TestTemperatureScoreIsMonotonic(t *testing.T) {
	keys := []string{"temperature"}
	prev := 101.0
	for temp := 0.0; temp < 300; temp += 1 {
		s := TemperatureScore(models.Row{"temperature": temp}, keys, 200)
		assert.LessOrEqual(t, s, prev, "temp %v", temp)
		prev = s
	}
}

func TestScoreCombinesSubScores(t *testing.T) {
	a := newAnalyzer()

	rec := a.Score(reading("boiler-1", models.Row{"temperature": 150.0}))
	assert.Equal(t, 100.0, rec.Temperature)
	assert.Equal(t, 80.0, rec.Efficiency)
	assert.Equal(t, 75.0, rec.Trend)
	assert.Equal(t, 80.0, rec.Operational)
	assert.Equal(t, 83.5, rec.Score)
	assert.Equal(t, StatusGood, rec.Status)
	assert.Equal(t, models.CategoryBoiler, rec.Category)
	assert.Equal(t, fixedNow, rec.ComputedAt)
	assert.Equal(t, 1, a.History().Len("boiler-1"))

	rec = a.Score(reading("boiler-2", models.Row{"temperature": 210.0, "efficiency": 0.0, "fault": true}))
	assert.Equal(t, 40.0, rec.Operational)
	assert.Equal(t, 38.0, rec.Score)
	assert.Equal(t, StatusCritical, rec.Status)
}

func TestScoreEfficiencyAgainstBaseline(t *testing.T) {
	a := newAnalyzer()

	rec := a.Score(reading("pump-1", models.Row{"efficiency": 35.0}))
	assert.Equal(t, 50.0, rec.Efficiency)

	rec = a.Score(reading("pump-2", models.Row{"efficiency": 95.0}))
	assert.Equal(t, 100.0, rec.Efficiency)
}

func TestScoreUnknownCategory(t *testing.T) {
	a := newAnalyzer()

	rec := a.Score(reading("vav-7", models.Row{"temperature": 70.0}))
	assert.Equal(t, 50.0, rec.Score)
	assert.Equal(t, StatusUnknown, rec.Status)
	assert.Zero(t, a.History().Len("vav-7"))

	_, ok := AlertFor(rec)
	assert.False(t, ok)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusExcellent, StatusFor(90))
	assert.Equal(t, StatusGood, StatusFor(89.99))
	assert.Equal(t, StatusGood, StatusFor(75))
	assert.Equal(t, StatusFair, StatusFor(60))
	assert.Equal(t, StatusPoor, StatusFor(40))
	assert.Equal(t, StatusCritical, StatusFor(39.99))
}

func TestTrendScore(t *testing.T) {
	entries := func(scores ...float64) []Entry {
		out := make([]Entry, len(scores))
		for i, s := range scores {
			out[i] = Entry{At: fixedNow.Add(time.Duration(i) * time.Minute), Score: s}
		}
		return out
	}

	assert.Equal(t, 75.0, TrendScore(nil))
	assert.Equal(t, 75.0, TrendScore(entries(10, 90)), "too short")
	assert.Equal(t, 75.0, TrendScore(entries(60, 60, 60)))
	assert.Equal(t, 85.0, TrendScore(entries(60, 61, 62)))
	assert.Equal(t, 65.0, TrendScore(entries(62, 61, 60)))
	assert.Equal(t, 0.0, TrendScore(entries(80, 70, 60)))
	assert.Equal(t, 100.0, TrendScore(entries(60, 70, 80)))
}

func TestScoreUsesHistoryTrend(t *testing.T) {
	a := newAnalyzer()
	for _, s := range []float64{90, 80, 70} {
		a.History().Append("chiller-1", Entry{At: fixedNow, Score: s})
	}

	rec := a.Score(reading("chiller-1", models.Row{"temperature": 30.0}))
	assert.Equal(t, 0.0, rec.Trend)
	assert.Equal(t, 4, a.History().Len("chiller-1"))
}

func TestHistoryIsBounded(t *testing.T) {
	h := NewHistory(5)
	for i := 0; i < 12; i++ {
		h.Append("pump-1", Entry{Score: float64(i)})
	}

	assert.Equal(t, 5, h.Len("pump-1"))
	recent := h.Recent("pump-1", 0)
	require.Len(t, recent, 5)
	assert.Equal(t, 7.0, recent[0].Score)
	assert.Equal(t, 11.0, recent[4].Score)

	last := h.Recent("pump-1", 2)
	require.Len(t, last, 2)
	assert.Equal(t, 10.0, last[0].Score)

	last[0].Score = -1
	assert.Equal(t, 10.0, h.Recent("pump-1", 2)[0].Score, "Recent returns a copy")
	assert.Empty(t, h.Recent("pump-2", 3))
}

func TestAlertFor(t *testing.T) {
	c, ok := AlertFor(Record{EquipmentID: "chiller-2", LocationID: "4", Category: models.CategoryChiller, Score: 15, Status: StatusCritical, ComputedAt: fixedNow})
	require.True(t, ok)
	assert.Equal(t, models.KindEquipmentHealthCritical, c.Kind)
	assert.Equal(t, models.SeverityCritical, c.Severity)
	assert.Equal(t, models.SourcePredictive, c.Source())
	assert.Equal(t, "critical", c.Details.(models.HealthDetails).HealthStatus)

	c, ok = AlertFor(Record{EquipmentID: "chiller-2", Category: models.CategoryChiller, Score: 38, Status: StatusCritical})
	require.True(t, ok)
	assert.Equal(t, models.KindEquipmentHealthLow, c.Kind)

	_, ok = AlertFor(Record{EquipmentID: "chiller-2", Category: models.CategoryChiller, Score: 40, Status: StatusPoor})
	assert.False(t, ok)
}

func TestPredict(t *testing.T) {
	p := Predict(Record{EquipmentID: "boiler-1", Category: models.CategoryBoiler, Score: 38})
	assert.Equal(t, 60, p.FailureProbability)
	assert.Equal(t, 14, p.DaysToFailure)
	assert.Equal(t, PriorityCritical, p.Priority)
	assert.Equal(t, []string{"rapid_temp_change", "pressure_spike", "efficiency_drop"}, p.FailureModes)
	assert.Contains(t, p.Recommendation, "URGENT")

	p = Predict(Record{EquipmentID: "pump-1", Category: models.CategoryPump, Score: 55})
	assert.Equal(t, 35, p.FailureProbability)
	assert.Equal(t, PriorityHigh, p.Priority)
	assert.Equal(t, []string{"cavitation"}, p.FailureModes)

	p = Predict(Record{EquipmentID: "pump-1", Category: models.CategoryPump, Score: 92})
	assert.Equal(t, 5, p.FailureProbability)
	assert.Equal(t, PriorityLow, p.Priority)
	assert.Empty(t, p.FailureModes)
}

func TestSchedule(t *testing.T) {
	rec := Record{EquipmentID: "boiler-1", Category: models.CategoryBoiler, Score: 38}
	plan := Schedule(rec, Predict(rec), fixedNow)

	assert.Equal(t, EmergencyInspection, plan.Type)
	assert.Equal(t, fixedNow.AddDate(0, 0, 3), plan.NextDate)
	assert.Equal(t, 2.0, plan.DurationHours)
	assert.Len(t, plan.Tasks, 5)
	assert.Equal(t, "Performance optimization", plan.Tasks[4])
	assert.Equal(t, "1850", plan.EstimatedCost.String())

	rec = Record{EquipmentID: "pump-1", Category: models.CategoryPump, Score: 55}
	plan = Schedule(rec, Predict(rec), fixedNow)
	assert.Equal(t, PriorityMaintenance, plan.Type)
	assert.Equal(t, 3.0, plan.DurationHours)
	assert.Equal(t, "800", plan.EstimatedCost.String())

	rec = Record{EquipmentID: "ahu-1", Category: models.CategoryAirHandler, Score: 45}
	plan = Schedule(rec, Predict(rec), fixedNow)
	assert.Contains(t, plan.Tasks, "Replace bearings")
}

func TestAssessCachesLatest(t *testing.T) {
	a := newAnalyzer()

	_, ok := a.Latest("boiler-1")
	assert.False(t, ok)

	out := a.Assess(reading("boiler-1", models.Row{"temperature": 150.0}))
	got, ok := a.Latest("boiler-1")
	require.True(t, ok)
	assert.Equal(t, out.Record.Score, got.Record.Score)
	assert.Equal(t, out.Plan.Type, got.Plan.Type)
}
