package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCategory(t *testing.T) {
	cases := map[string]Category{
		"Boiler-3":        CategoryBoiler,
		"chiller_2":       CategoryChiller,
		"HWPump-1":        CategoryPump,
		"AHU-2":           CategoryAirHandler,
		"AirHandler1":     CategoryAirHandler,
		"FanCoil-12":      CategoryFancoil,
		"exhaust-fan-1":   CategoryFancoil,
		"Geo-Loop-1":      CategoryGeo,
		"boiler-pump-1":   CategoryBoiler,
		"pump-air-sep":    CategoryPump,
		"vav-101":         CategoryUnknown,
		"":                CategoryUnknown,
	}
	for id, want := range cases {
		assert.Equal(t, want, ResolveCategory(id), id)
	}
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryAirHandler, ParseCategory("ahu"))
	assert.Equal(t, CategoryLighting, ParseCategory(" Lighting "))
	assert.Equal(t, CategoryUnknown, ParseCategory("elevator"))
}

func TestRowAccessors(t *testing.T) {
	var row Row
	require.NoError(t, json.Unmarshal([]byte(`{
		"equipmentId": " boiler-3 ",
		"location_id": 4,
		"temperature": 205,
		"pressure": "31.5",
		"mode": "auto",
		"fault": "true"
	}`), &row))

	assert.Equal(t, "boiler-3", row.String(KeyEquipmentID))
	assert.Equal(t, "4", row.String(KeyLocationID))

	v, ok := row.Number("temperature")
	assert.True(t, ok)
	assert.Equal(t, 205.0, v)

	_, ok = row.Number("pressure")
	assert.False(t, ok, "numeric strings are not numbers")

	v, ok = row.Float("pressure")
	assert.True(t, ok)
	assert.Equal(t, 31.5, v)

	_, ok = row.Float("mode")
	assert.False(t, ok)

	assert.True(t, row.Truthy("fault"))
	assert.False(t, row.Truthy("missing"))
}

func TestReadingFromRow(t *testing.T) {
	now := time.Now()

	r, err := ReadingFromRow(Row{"equipmentId": "boiler-3", "location_id": "4"}, now)
	require.NoError(t, err)
	assert.Equal(t, CategoryBoiler, r.Category())

	_, err = ReadingFromRow(Row{"location_id": "4"}, now)
	assert.ErrorIs(t, err, ErrMissingEquipmentID)

	_, err = ReadingFromRow(Row{"equipmentId": "boiler-3"}, now)
	assert.ErrorIs(t, err, ErrMissingLocationID)
}

func TestCandidateSubjectAndKey(t *testing.T) {
	now := time.Now()

	eq := NewCandidate(SeverityCritical, KindHighTemperature, "msg", 205, 200,
		EquipmentDetails{EquipmentID: "boiler-3", LocationID: "4", Category: CategoryBoiler}, now)
	assert.Equal(t, "boiler-3", eq.Subject)
	assert.Equal(t, "boiler-3_HIGH_TEMPERATURE", eq.CooldownKey())
	assert.Equal(t, SourceEquipment, eq.Source())
	assert.Equal(t, CategoryBoiler, eq.EquipmentType())
	assert.NotEmpty(t, eq.ID)

	en := NewCandidate(SeverityWarning, KindHighEnergyConsumption, "msg", 600, 500,
		EnergyDetails{LocationID: "4", HourlyCost: Float(72)}, now)
	assert.Equal(t, "4", en.Subject)
	assert.Equal(t, SourceEnergy, en.Source())
	assert.Empty(t, en.EquipmentID())
	assert.Empty(t, en.EquipmentType())
}

func TestEnvelopeValidate(t *testing.T) {
	env := NewEnvelope([]TableBatch{{TableName: " metrics ", Rows: []Row{{"a": 1}, nil}}}, " Kafka ")
	env.Normalize()

	require.NoError(t, env.Validate())
	assert.Equal(t, "metrics", env.Tables[0].TableName)
	assert.Equal(t, "kafka", env.Source)
	assert.Equal(t, 1, env.RowCount())

	assert.ErrorIs(t, (&WriteEnvelope{}).Validate(), ErrNoTables)
	assert.ErrorIs(t, NewEnvelope([]TableBatch{{}}, "http").Validate(), ErrEmptyTable)
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("2025-06-08T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, ts.Hour())

	_, err = ParseTimestamp("yesterday")
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}
