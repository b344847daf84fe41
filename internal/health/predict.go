package health

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

type MaintenanceType string

const (
	EmergencyInspection  MaintenanceType = "emergency_inspection"
	PriorityMaintenance  MaintenanceType = "priority_maintenance"
	ScheduledMaintenance MaintenanceType = "scheduled_maintenance"
	RoutineMaintenance   MaintenanceType = "routine_maintenance"
)

const perTaskCost = 50

// Prediction estimates failure likelihood over the next month.
type Prediction struct {
	EquipmentID        string
	FailureProbability int
	DaysToFailure      int
	Priority           Priority
	FailureModes       []string
	Recommendation     string
}

// Plan is the next maintenance visit for a piece of equipment.
type Plan struct {
	EquipmentID   string
	NextDate      time.Time
	Type          MaintenanceType
	Priority      Priority
	DurationHours float64
	Tasks         []string
	EstimatedCost decimal.Decimal
}

// Predict maps a health record onto failure probability, urgency and likely failure modes.
func Predict(rec Record) Prediction {
	prob, days := failureOdds(rec.Score)
	params, _ := ParametersFor(rec.Category)
	modes := failureModes(rec.Score, params.FailureIndicators)

	return Prediction{
		EquipmentID:        rec.EquipmentID,
		FailureProbability: prob,
		DaysToFailure:      days,
		Priority:           PriorityFor(prob),
		FailureModes:       modes,
		Recommendation:     recommendation(string(rec.Category), prob, modes),
	}
}

func failureOdds(score float64) (probability, days int) {
	switch {
	case score >= 85:
		return 5, 180
	case score >= 70:
		return 15, 90
	case score >= 50:
		return 35, 30
	case score >= 30:
		return 60, 14
	default:
		return 85, 7
	}
}

// PriorityFor buckets a failure probability.
func PriorityFor(probability int) Priority {
	switch {
	case probability >= 60:
		return PriorityCritical
	case probability >= 35:
		return PriorityHigh
	case probability >= 15:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func failureModes(score float64, indicators []string) []string {
	switch {
	case score < 50:
		return append([]string(nil), indicators...)
	case score < 70:
		if len(indicators) == 0 {
			return []string{"general_wear"}
		}
		return []string{indicators[0]}
	}
	return nil
}

func recommendation(category string, probability int, modes []string) string {
	switch {
	case probability >= 60:
		return fmt.Sprintf("URGENT: Schedule immediate inspection for %s. Potential issues: %s",
			category, strings.Join(modes, ", "))
	case probability >= 35:
		return fmt.Sprintf("Schedule priority maintenance for %s within 1 week", category)
	case probability >= 15:
		return fmt.Sprintf("Schedule routine maintenance for %s within 1 month", category)
	default:
		return fmt.Sprintf("Continue normal maintenance schedule for %s", category)
	}
}

// Schedule plans the next maintenance visit from a prediction.
func Schedule(rec Record, pred Prediction, now time.Time) Plan {
	days, kind := intervalFor(pred.Priority)
	params, _ := ParametersFor(rec.Category)
	tasks := Tasks(params, pred.FailureModes)

	return Plan{
		EquipmentID:   rec.EquipmentID,
		NextDate:      now.AddDate(0, 0, days),
		Type:          kind,
		Priority:      pred.Priority,
		DurationHours: Duration(params, kind),
		Tasks:         tasks,
		EstimatedCost: Cost(params, kind, len(tasks)),
	}
}

func intervalFor(p Priority) (int, MaintenanceType) {
	switch p {
	case PriorityCritical:
		return 3, EmergencyInspection
	case PriorityHigh:
		return 7, PriorityMaintenance
	case PriorityMedium:
		return 30, ScheduledMaintenance
	default:
		return 90, RoutineMaintenance
	}
}

// Tasks returns the category's base tasks plus one task per failure mode that has a remedy.
func Tasks(params Parameters, modes []string) []string {
	tasks := append([]string(nil), params.BaseTasks...)
	for _, mode := range modes {
		switch {
		case strings.Contains(mode, "bearing"):
			tasks = append(tasks, "Replace bearings")
		case strings.Contains(mode, "leak"):
			tasks = append(tasks, "Repair leaks")
		case strings.Contains(mode, "efficiency"):
			tasks = append(tasks, "Performance optimization")
		}
	}
	return tasks
}

// Duration scales the category base hours by the kind of visit.
func Duration(params Parameters, kind MaintenanceType) float64 {
	base := params.BaseDurationHours
	switch kind {
	case EmergencyInspection:
		return base * 0.5
	case PriorityMaintenance:
		return base * 1.5
	case RoutineMaintenance:
		return base
	default:
		return base * 0.75
	}
}

// Cost applies the visit premium to the category base cost and adds a flat amount per task.
func Cost(params Parameters, kind MaintenanceType, taskCount int) decimal.Decimal {
	cost := decimal.NewFromFloat(params.BaseCost)
	switch kind {
	case EmergencyInspection:
		cost = cost.Mul(decimal.NewFromInt(2))
	case PriorityMaintenance:
		cost = cost.Mul(decimal.NewFromFloat(1.5))
	}
	cost = cost.Add(decimal.NewFromInt(int64(taskCount * perTaskCost)))
	return cost.Round(2)
}
