package thresholds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmsengine/internal/models"
)

var fixedNow = time.Date(2025, 6, 8, 14, 0, 0, 0, time.UTC)

func reading(id, loc string, metrics models.Row) models.Reading {
	row := models.Row{models.KeyEquipmentID: id, models.KeyLocationID: loc}
	for k, v := range metrics {
		row[k] = v
	}
	r, err := models.ReadingFromRow(row, fixedNow)
	if err != nil {
		return models.Reading{EquipmentID: id, LocationID: loc, Metrics: row}
	}
	return r
}

func TestEvaluateBoilerCritical(t *testing.T) {
	c, ok := Evaluate(reading("boiler-3", "4", models.Row{"temperature": 205.0}), DefaultTable(), fixedNow)
	require.True(t, ok)

	assert.Equal(t, models.SeverityCritical, c.Severity)
	assert.Equal(t, models.KindHighTemperature, c.Kind)
	assert.Equal(t, 205.0, c.Value)
	assert.Equal(t, 200.0, c.Threshold)
	assert.Equal(t, "boiler-3", c.Subject)
	assert.Equal(t, models.SourceEquipment, c.Source())
	assert.Equal(t, fixedNow, c.Timestamp)
	assert.Equal(t, "CRITICAL: boiler boiler-3 temperature 205°F exceeds critical threshold 200°F", c.Message)
}

func TestEvaluateBands(t *testing.T) {
	table := DefaultTable()
	for cat, limits := range table {
		crit, high := limits[CriticalTemp], limits[HighTemp]
		id := string(cat) + "-1"
		if cat == models.CategoryAirHandler {
			id = "ahu-1"
		}

		for v := high - 20; v <= crit+20; v += 0.5 {
			c, ok := Evaluate(reading(id, "1", models.Row{"temperature": v}), table, fixedNow)
			switch {
			case v > crit:
				require.True(t, ok, "%s %v", cat, v)
				assert.Equal(t, models.SeverityCritical, c.Severity)
				assert.Equal(t, crit, c.Threshold)
			case v > high:
				require.True(t, ok, "%s %v", cat, v)
				assert.Equal(t, models.SeverityWarning, c.Severity)
				assert.Equal(t, high, c.Threshold)
			default:
				assert.False(t, ok, "%s %v", cat, v)
			}
		}
	}
}

func TestEvaluateBoundaryIsStrict(t *testing.T) {
	_, ok := Evaluate(reading("boiler-1", "1", models.Row{"temperature": 180.0}), DefaultTable(), fixedNow)
	assert.False(t, ok)

	c, ok := Evaluate(reading("boiler-1", "1", models.Row{"temperature": 200.0}), DefaultTable(), fixedNow)
	require.True(t, ok)
	assert.Equal(t, models.SeverityWarning, c.Severity)
}

func TestEvaluateTemperatureKeyOrder(t *testing.T) {
	c, ok := Evaluate(reading("pump-1", "1", models.Row{"Supply_Temp": 140.0}), DefaultTable(), fixedNow)
	require.True(t, ok)
	assert.Equal(t, 140.0, c.Value)

	c, ok = Evaluate(reading("pump-1", "1", models.Row{"Water_Temp": 125.0, "Supply_Temp": 140.0}), DefaultTable(), fixedNow)
	require.True(t, ok)
	assert.Equal(t, models.SeverityWarning, c.Severity)

	_, ok = Evaluate(reading("pump-1", "1", models.Row{"temperature": "hot", "Supply_Temp": 140.0}), DefaultTable(), fixedNow)
	assert.False(t, ok, "first present key decides even when it is not numeric")
}

func TestEvaluateNoAlert(t *testing.T) {
	table := DefaultTable()

	cases := []models.Reading{
		reading("vav-7", "1", models.Row{"temperature": 500.0}),
		reading("geo-1", "1", models.Row{"temperature": 500.0}),
		reading("boiler-1", "1", models.Row{"pressure": 500.0}),
		reading("boiler-1", "1", models.Row{"temperature": 0.0}),
		{EquipmentID: "boiler-1", Metrics: models.Row{"temperature": 500.0}},
	}
	for _, r := range cases {
		_, ok := Evaluate(r, table, fixedNow)
		assert.False(t, ok, r.EquipmentID)
	}
}

func TestEvaluateMissingThresholdNeverFires(t *testing.T) {
	table := Table{models.CategoryBoiler: {HighTemp: 180}}

	c, ok := Evaluate(reading("boiler-1", "1", models.Row{"temperature": 10000.0}), table, fixedNow)
	require.True(t, ok)
	assert.Equal(t, models.SeverityWarning, c.Severity)
}

func TestEvaluateHealthRow(t *testing.T) {
	e := NewEvaluator(nil, WithClock(func() time.Time { return fixedNow }))

	c, ok := e.EvaluateHealthRow(models.Row{"equipment_id": "chiller-2", "location_id": "4", "health_score": 15.0, "health_status": "critical"})
	require.True(t, ok)
	assert.Equal(t, models.SeverityCritical, c.Severity)
	assert.Equal(t, models.KindEquipmentHealthCritical, c.Kind)
	assert.Equal(t, 20.0, c.Threshold)
	assert.Equal(t, models.SourcePredictive, c.Source())
	assert.Equal(t, "critical", c.Details.(models.HealthDetails).HealthStatus)
	assert.Equal(t, "CRITICAL: Equipment chiller-2 health score 15.0% - Immediate maintenance required", c.Message)

	c, ok = e.EvaluateHealthRow(models.Row{"equipment_id": "chiller-2", "health_score": 35.5})
	require.True(t, ok)
	assert.Equal(t, models.KindEquipmentHealthLow, c.Kind)
	assert.Equal(t, 40.0, c.Threshold)
	assert.Equal(t, "unknown", c.Details.(models.HealthDetails).HealthStatus)

	_, ok = e.EvaluateHealthRow(models.Row{"equipment_id": "chiller-2", "health_score": 40.0})
	assert.False(t, ok)

	_, ok = e.EvaluateHealthRow(models.Row{"equipment_id": "chiller-2"})
	assert.False(t, ok, "missing score defaults to healthy")

	_, ok = e.EvaluateHealthRow(models.Row{"health_score": 5.0})
	assert.False(t, ok)
}

func TestEvaluateEnergyRow(t *testing.T) {
	e := NewEvaluator(nil)

	c, ok := e.EvaluateEnergyRow(models.Row{"location_id": "4", "total_power_kw": 612.5, "hourly_cost": 110.25, "average_efficiency": 50.0})
	require.True(t, ok)
	assert.Equal(t, models.KindHighEnergyConsumption, c.Kind)
	assert.Equal(t, "4", c.Subject)
	d := c.Details.(models.EnergyDetails)
	require.NotNil(t, d.HourlyCost)
	assert.Equal(t, 110.25, *d.HourlyCost)
	assert.Nil(t, d.TotalPowerKW)
	assert.Equal(t, "WARNING: Location 4 high energy consumption 612.5 kW ($110.25/hour)", c.Message)

	c, ok = e.EvaluateEnergyRow(models.Row{"location_id": "4", "total_power_kw": 120.0, "average_efficiency": 62.0})
	require.True(t, ok)
	assert.Equal(t, models.KindLowEnergyEfficiency, c.Kind)
	assert.Equal(t, 70.0, c.Threshold)
	require.NotNil(t, c.Details.(models.EnergyDetails).TotalPowerKW)

	_, ok = e.EvaluateEnergyRow(models.Row{"location_id": "4", "total_power_kw": 120.0})
	assert.False(t, ok)

	_, ok = e.EvaluateEnergyRow(models.Row{"total_power_kw": 900.0})
	assert.False(t, ok)
}

func TestParseTable(t *testing.T) {
	table, err := Parse([]byte(`
categories:
  boiler:
    critical_temp: 210
  ahu:
    high_temp: 80
  geo:
    critical_temp: 65
    high_temp: 60
`))
	require.NoError(t, err)
	assert.Equal(t, 210.0, table[models.CategoryBoiler][CriticalTemp])
	assert.Equal(t, 180.0, table[models.CategoryBoiler][HighTemp])
	assert.Equal(t, 80.0, table[models.CategoryAirHandler][HighTemp])
	assert.Equal(t, 65.0, table[models.CategoryGeo][CriticalTemp])

	_, err = Parse([]byte("categories:\n  elevator:\n    high_temp: 1\n"))
	assert.ErrorIs(t, err, ErrInvalidTable)

	_, err = Parse([]byte("categories:\n  boiler:\n    critical_temp: 100\n"))
	assert.ErrorIs(t, err, ErrInvalidTable, "critical must stay above high")

	_, err = Parse([]byte("rules: []\n"))
	assert.ErrorIs(t, err, ErrInvalidTable)

	table, err = Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTable(), table)
}

func TestCheckTemperature(t *testing.T) {
	assert.NoError(t, CheckTemperature(models.Row{"temperature": 150.0}))
	assert.NoError(t, CheckTemperature(models.Row{"pressure": "high"}))
	assert.ErrorIs(t, CheckTemperature(models.Row{"Water_Temp": "hot"}), models.ErrNonNumeric)
	assert.NoError(t, CheckTemperature(models.Row{"temperature": 120.0, "Water_Temp": "hot"}), "first present key decides")
}
