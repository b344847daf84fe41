package thresholds

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"bmsengine/internal/models"
)

// Threshold names
const (
	CriticalTemp       = "critical_temp"
	HighTemp           = "high_temp"
	LowEfficiency      = "low_efficiency"
	HighPressure       = "high_pressure"
	LowRefrigerant     = "low_refrigerant"
	LowAirflow         = "low_airflow"
	FilterPressureDiff = "filter_pressure_diff"
	LowPressure        = "low_pressure"
	HighVibration      = "high_vibration"
)

var ErrInvalidTable = errors.New("invalid threshold table")

// Limits are the named thresholds for one equipment category.
type Limits map[string]float64

// Lookup returns a threshold. A missing threshold never fires.
func (l Limits) Lookup(name string) (float64, bool) {
	v, ok := l[name]
	return v, ok
}

// Table maps equipment categories to their limits.
type Table map[models.Category]Limits

// For returns the limits for a category, or nil for categories without thresholds.
func (t Table) For(c models.Category) Limits {
	return t[c]
}

// DefaultTable is the built-in threshold set.
func DefaultTable() Table {
	return Table{
		models.CategoryBoiler: {
			CriticalTemp:  200,
			HighTemp:      180,
			LowEfficiency: 70,
			HighPressure:  150,
		},
		models.CategoryChiller: {
			CriticalTemp:   55,
			HighTemp:       50,
			LowEfficiency:  65,
			LowRefrigerant: 20,
		},
		models.CategoryAirHandler: {
			CriticalTemp:       90,
			HighTemp:           85,
			LowAirflow:         500,
			FilterPressureDiff: 2.0,
		},
		models.CategoryPump: {
			CriticalTemp:  130,
			HighTemp:      120,
			LowPressure:   10,
			HighVibration: 5.0,
		},
		models.CategoryFancoil: {
			CriticalTemp:  95,
			HighTemp:      90,
			LowEfficiency: 60,
		},
	}
}

type tableFile struct {
	Categories map[string]map[string]float64 `yaml:"categories"`
}

// LoadFile overlays thresholds from a YAML file onto the defaults.
//
//	categories:
//	  boiler:
//	    critical_temp: 210
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds %s: %w", path, err)
	}
	return Parse(data)
}

// Parse overlays thresholds from YAML onto the defaults.
func Parse(data []byte) (Table, error) {
	var f tableFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	table := DefaultTable()
	for name, limits := range f.Categories {
		cat := models.ParseCategory(name)
		if !cat.Known() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidTable, name)
		}
		if table[cat] == nil {
			table[cat] = Limits{}
		}
		for k, v := range limits {
			table[cat][k] = v
		}
		crit, hasCrit := table[cat][CriticalTemp]
		high, hasHigh := table[cat][HighTemp]
		if hasCrit && hasHigh && crit <= high {
			return nil, fmt.Errorf("%w: %s critical_temp %v must exceed high_temp %v", ErrInvalidTable, cat, crit, high)
		}
	}
	return table, nil
}
