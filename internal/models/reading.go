package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Table names the triggers subscribe to.
const (
	TableMetrics           = "metrics"
	TableEquipmentHealth   = "equipment_health"
	TableEnergyConsumption = "energy_consumption"
)

// Row keys used by the sensor tables.
const (
	KeyEquipmentID       = "equipmentId"
	KeyHealthEquipmentID = "equipment_id"
	KeyLocationID        = "location_id"
)

// Validation errors
var (
	ErrMissingEquipmentID = errors.New("equipment id is missing")
	ErrMissingLocationID  = errors.New("location id is missing")
	ErrNonNumeric         = errors.New("value is not numeric")
)

// Row is one written row: column name to string or number.
type Row map[string]any

// Has reports whether the key is present, whatever its value.
func (r Row) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// String returns the value as a trimmed string. Numbers are formatted.
func (r Row) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}

// Number returns the value only when it was written as a number.
func (r Row) Number(key string) (float64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	return numeric(v)
}

// Float is Number plus parsing of numeric strings.
func (r Row) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	if s, isStr := v.(string); isStr {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return numeric(v)
}

// Truthy reports whether a flag column is set: true, non-zero, or "true"/"1"/"on"/"yes".
func (r Row) Truthy(key string) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "on", "yes":
			return true
		}
		return false
	}
	f, isNum := numeric(v)
	return isNum && f != 0
}

func numeric(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Reading is a single metrics row bound to its equipment and location.
type Reading struct {
	EquipmentID string
	LocationID  string
	Metrics     Row
	ReceivedAt  time.Time
}

// ReadingFromRow extracts a Reading from a metrics table row.
func ReadingFromRow(row Row, receivedAt time.Time) (Reading, error) {
	r := Reading{
		EquipmentID: row.String(KeyEquipmentID),
		LocationID:  row.String(KeyLocationID),
		Metrics:     row,
		ReceivedAt:  receivedAt,
	}
	if err := r.Validate(); err != nil {
		return Reading{}, err
	}
	return r, nil
}

// Validate checks the identifiers every evaluator relies on.
func (r Reading) Validate() error {
	if r.EquipmentID == "" {
		return ErrMissingEquipmentID
	}
	if r.LocationID == "" {
		return ErrMissingLocationID
	}
	return nil
}

// Category resolves the equipment category from the reading's equipment id.
func (r Reading) Category() Category {
	return ResolveCategory(r.EquipmentID)
}

// TableBatch is the rows written to one table in a single host invocation.
type TableBatch struct {
	TableName string `json:"table_name"`
	Rows      []Row  `json:"rows"`
}
