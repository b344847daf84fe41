package energy

import "bmsengine/internal/models"

type CommandType string

const (
	CommandLoadShift          CommandType = "load_shift"
	CommandPeakShave          CommandType = "peak_shave"
	CommandEfficiencyOptimize CommandType = "efficiency_optimize"
)

// Actions
const (
	ActionReducePower        = "reduce_power"
	ActionTemporaryReduction = "temporary_reduction"
	ActionOptimizeOperation  = "optimize_operation"
)

const loadShiftPercent = 30.0

// Command is a setpoint change proposed to the building controller.
type Command struct {
	EquipmentID string
	LocationID  string
	Category    models.Category
	Type        CommandType
	Action      string
	Priority    string

	// ReductionPercent is the share of the unit's draw being cut, zero for tuning commands.
	ReductionPercent float64
	// TargetValue is what the command line reports: percent for load shift, kW for peak
	// shave, efficiency for tuning.
	TargetValue       float64
	DurationMinutes   int
	ExpectedSavingsKW float64
	SheddingCategory  models.Category
}

// Safe reports whether a reduction stays inside the category's limit.
func Safe(c models.Category, action string, reductionPercent float64) bool {
	switch action {
	case ActionReducePower, ActionTemporaryReduction:
		return reductionPercent <= MaxReductionPercent(c)
	}
	return true
}

// Commands turns opportunities into the safe commands for a location. Staging
// opportunities are advisory and produce no command.
func Commands(locationID string, o Opportunities) []Command {
	var out []Command

	for _, ls := range o.LoadShifting {
		cmd := Command{
			EquipmentID:       ls.EquipmentID,
			LocationID:        locationID,
			Category:          ls.Category,
			Type:              CommandLoadShift,
			Action:            ActionReducePower,
			Priority:          "medium",
			ReductionPercent:  loadShiftPercent,
			TargetValue:       loadShiftPercent,
			DurationMinutes:   60,
			ExpectedSavingsKW: ls.SavingsKW,
		}
		if Safe(cmd.Category, cmd.Action, cmd.ReductionPercent) {
			out = append(out, cmd)
		}
	}

	for _, ps := range o.PeakShaving {
		percent := 0.0
		if ps.PowerKW > 0 {
			percent = round(ps.ReductionKW/ps.PowerKW*100, 2)
		}
		cmd := Command{
			EquipmentID:       ps.EquipmentID,
			LocationID:        locationID,
			Category:          ps.Category,
			Type:              CommandPeakShave,
			Action:            ActionTemporaryReduction,
			Priority:          "high",
			ReductionPercent:  percent,
			TargetValue:       ps.ReductionKW,
			DurationMinutes:   15,
			ExpectedSavingsKW: ps.ReductionKW,
			SheddingCategory:  ps.Category,
		}
		if Safe(cmd.Category, cmd.Action, cmd.ReductionPercent) {
			out = append(out, cmd)
		}
	}

	for _, eg := range o.Efficiency {
		out = append(out, Command{
			EquipmentID:       eg.EquipmentID,
			LocationID:        locationID,
			Category:          eg.Category,
			Type:              CommandEfficiencyOptimize,
			Action:            ActionOptimizeOperation,
			Priority:          "low",
			TargetValue:       eg.Target,
			ExpectedSavingsKW: eg.SavingsKW,
		})
	}
	return out
}
