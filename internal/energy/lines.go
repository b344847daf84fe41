package energy

import (
	"bmsengine/internal/lineprotocol"
)

// Measurements written by the optimizer.
const (
	MeasurementConsumption   = "energy_consumption"
	MeasurementOpportunities = "optimization_opportunities"
	MeasurementCommands      = "optimization_commands"
)

// Lines renders the analysis, the opportunity counts and one line per command.
func Lines(a Analysis, o Opportunities, cmds []Command) ([]string, error) {
	lines := make([]string, 0, 2+len(cmds))

	consumption, err := lineprotocol.New(MeasurementConsumption).
		Tag("location_id", a.LocationID).
		Tag("period_type", "hourly").
		Tag("rate_period", string(a.RatePeriod)).
		Field("total_power_kw", a.TotalPowerKW).
		Field("hourly_cost", a.HourlyCost.InexactFloat64()).
		Field("average_efficiency", a.AverageEfficiency).
		Field("equipment_count", a.EquipmentCount).
		Field("carbon_footprint_kg", a.CarbonKgPerHour.InexactFloat64()).
		Timestamp(a.AnalyzedAt).
		Build()
	if err != nil {
		return nil, err
	}
	lines = append(lines, consumption)

	opportunities, err := lineprotocol.New(MeasurementOpportunities).
		Tag("location_id", a.LocationID).
		Tag("analysis_type", "real_time").
		Field("load_shifting_opportunities", len(o.LoadShifting)).
		Field("efficiency_opportunities", len(o.Efficiency)).
		Field("peak_shaving_opportunities", len(o.PeakShaving)).
		Field("staging_opportunities", len(o.Staging)).
		Field("total_opportunities", o.Total()).
		Timestamp(a.AnalyzedAt).
		Build()
	if err != nil {
		return nil, err
	}
	lines = append(lines, opportunities)

	for _, c := range cmds {
		line, err := lineprotocol.New(MeasurementCommands).
			Tag("equipment_id", c.EquipmentID).
			Tag("location_id", c.LocationID).
			Tag("command_type", string(c.Type)).
			Tag("priority", c.Priority).
			Field("action", c.Action).
			Field("target_value", c.TargetValue).
			Field("duration_minutes", c.DurationMinutes).
			Field("expected_savings_kw", c.ExpectedSavingsKW).
			Timestamp(a.AnalyzedAt).
			Build()
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}
