package thresholds

import (
	"fmt"
	"strconv"
	"time"

	"bmsengine/internal/models"
)

// Health score bounds that raise predictive maintenance alerts.
const (
	HealthCriticalBelow = 20.0
	HealthLowBelow      = 40.0
)

// Energy alert bounds for location rollups.
const (
	HighEnergyKW        = 500.0
	LowEfficiencyPct    = 70.0
	defaultHealthScore  = 100.0
	defaultEfficiency   = 100.0
	defaultHealthStatus = "unknown"
)

// temperatureKeys are checked in order; the first present key supplies the temperature.
var temperatureKeys = []string{"temperature", "Water_Temp", "Supply_Temp"}

// Evaluator applies a threshold table to incoming rows.
type Evaluator struct {
	table Table
	now   func() time.Time
}

type Option func(*Evaluator)

// WithClock overrides the time stamped on candidates.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

func NewEvaluator(table Table, opts ...Option) *Evaluator {
	if table == nil {
		table = DefaultTable()
	}
	e := &Evaluator{table: table, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Table() Table { return e.table }

// Evaluate checks one reading against its category limits.
func (e *Evaluator) Evaluate(r models.Reading) (*models.Candidate, bool) {
	return Evaluate(r, e.table, e.now())
}

// Evaluate returns at most one candidate for the reading: CRITICAL when the temperature is
// strictly above critical_temp, WARNING when strictly above high_temp.
func Evaluate(r models.Reading, table Table, now time.Time) (*models.Candidate, bool) {
	if r.Validate() != nil {
		return nil, false
	}

	category := r.Category()
	limits := table.For(category)
	if limits == nil {
		return nil, false
	}

	temp, ok := readTemperature(r.Metrics)
	if !ok {
		return nil, false
	}

	details := models.EquipmentDetails{
		EquipmentID: r.EquipmentID,
		LocationID:  r.LocationID,
		Category:    category,
	}

	if crit, ok := limits.Lookup(CriticalTemp); ok && temp > crit {
		return models.NewCandidate(
			models.SeverityCritical,
			models.KindHighTemperature,
			fmt.Sprintf("CRITICAL: %s %s temperature %s°F exceeds critical threshold %s°F",
				category, r.EquipmentID, num(temp), num(crit)),
			temp, crit, details, now,
		), true
	}
	if high, ok := limits.Lookup(HighTemp); ok && temp > high {
		return models.NewCandidate(
			models.SeverityWarning,
			models.KindHighTemperature,
			fmt.Sprintf("WARNING: %s %s temperature %s°F exceeds high threshold %s°F",
				category, r.EquipmentID, num(temp), num(high)),
			temp, high, details, now,
		), true
	}

	return nil, false
}

// readTemperature takes the first present temperature key. Zero and non-numeric values yield nothing.
func readTemperature(row models.Row) (float64, bool) {
	for _, key := range temperatureKeys {
		if !row.Has(key) {
			continue
		}
		v, ok := row.Number(key)
		if !ok || v == 0 {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// EvaluateHealthRow raises an alert for an equipment_health row whose score is low.
func (e *Evaluator) EvaluateHealthRow(row models.Row) (*models.Candidate, bool) {
	equipmentID := row.String(models.KeyHealthEquipmentID)
	if equipmentID == "" {
		return nil, false
	}

	score := defaultHealthScore
	if row.Has("health_score") {
		v, ok := row.Number("health_score")
		if !ok {
			return nil, false
		}
		score = v
	}

	status := row.String("health_status")
	if status == "" {
		status = defaultHealthStatus
	}

	return HealthCandidate(models.HealthDetails{
		EquipmentID:  equipmentID,
		LocationID:   row.String(models.KeyLocationID),
		Category:     models.ResolveCategory(equipmentID),
		HealthStatus: status,
	}, score, e.now())
}

// HealthCandidate maps a health score to a predictive maintenance alert.
func HealthCandidate(details models.HealthDetails, score float64, now time.Time) (*models.Candidate, bool) {
	switch {
	case score < HealthCriticalBelow:
		return models.NewCandidate(
			models.SeverityCritical,
			models.KindEquipmentHealthCritical,
			fmt.Sprintf("CRITICAL: Equipment %s health score %.1f%% - Immediate maintenance required",
				details.EquipmentID, score),
			score, HealthCriticalBelow, details, now,
		), true
	case score < HealthLowBelow:
		return models.NewCandidate(
			models.SeverityWarning,
			models.KindEquipmentHealthLow,
			fmt.Sprintf("WARNING: Equipment %s health score %.1f%% - Schedule maintenance soon",
				details.EquipmentID, score),
			score, HealthLowBelow, details, now,
		), true
	}
	return nil, false
}

// EvaluateEnergyRow raises an alert for an energy_consumption rollup. High consumption wins
// over low efficiency.
func (e *Evaluator) EvaluateEnergyRow(row models.Row) (*models.Candidate, bool) {
	locationID := row.String(models.KeyLocationID)
	if locationID == "" {
		return nil, false
	}

	power, _ := row.Number("total_power_kw")
	cost, _ := row.Number("hourly_cost")

	if power > HighEnergyKW {
		return models.NewCandidate(
			models.SeverityWarning,
			models.KindHighEnergyConsumption,
			fmt.Sprintf("WARNING: Location %s high energy consumption %.1f kW ($%.2f/hour)",
				locationID, power, cost),
			power, HighEnergyKW,
			models.EnergyDetails{LocationID: locationID, HourlyCost: models.Float(cost)},
			e.now(),
		), true
	}

	efficiency := defaultEfficiency
	if v, ok := row.Number("average_efficiency"); ok {
		efficiency = v
	}
	if efficiency < LowEfficiencyPct {
		return models.NewCandidate(
			models.SeverityWarning,
			models.KindLowEnergyEfficiency,
			fmt.Sprintf("WARNING: Location %s low energy efficiency %.1f%% - Optimization opportunities available",
				locationID, efficiency),
			efficiency, LowEfficiencyPct,
			models.EnergyDetails{LocationID: locationID, TotalPowerKW: models.Float(power)},
			e.now(),
		), true
	}

	return nil, false
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CheckTemperature returns models.ErrNonNumeric when the first present temperature column
// holds something other than a number.
func CheckTemperature(row models.Row) error {
	for _, key := range temperatureKeys {
		if !row.Has(key) {
			continue
		}
		if _, ok := row.Number(key); !ok {
			return fmt.Errorf("%s: %w", key, models.ErrNonNumeric)
		}
		return nil
	}
	return nil
}
