package health

import "bmsengine/internal/models"

// Parameters drive the heuristic for one equipment category.
type Parameters struct {
	CriticalMetrics    []string
	EfficiencyBaseline float64
	MaxOperatingTemp   float64
	FailureIndicators  []string
	BaseTasks          []string
	BaseDurationHours  float64
	BaseCost           float64
}

var defaultParameters = Parameters{
	EfficiencyBaseline: 75,
	MaxOperatingTemp:   100,
	BaseTasks:          []string{"General inspection", "Check operation"},
	BaseDurationHours:  3,
	BaseCost:           500,
}

var parameters = map[models.Category]Parameters{
	models.CategoryBoiler: {
		CriticalMetrics:    []string{"Water_Temp", "waterTemp", "temperature", "pressure"},
		EfficiencyBaseline: 85,
		MaxOperatingTemp:   200,
		FailureIndicators:  []string{"rapid_temp_change", "pressure_spike", "efficiency_drop"},
		BaseTasks:          []string{"Inspect burner", "Check water levels", "Test safety systems", "Clean heat exchanger"},
		BaseDurationHours:  4,
		BaseCost:           800,
	},
	models.CategoryChiller: {
		CriticalMetrics:    []string{"Chilled_Water_Temp", "SupplyTemp", "temperature"},
		EfficiencyBaseline: 75,
		MaxOperatingTemp:   50,
		FailureIndicators:  []string{"refrigerant_leak", "compressor_issue", "low_efficiency"},
		BaseTasks:          []string{"Check refrigerant levels", "Inspect compressor", "Clean condenser coils", "Test controls"},
		BaseDurationHours:  6,
		BaseCost:           1200,
	},
	models.CategoryAirHandler: {
		CriticalMetrics:    []string{"Supply_Air_Temp", "Supply_Temp", "OutdoorTemp"},
		EfficiencyBaseline: 80,
		MaxOperatingTemp:   85,
		FailureIndicators:  []string{"fan_bearing_wear", "filter_clog", "motor_overload"},
		BaseTasks:          []string{"Replace filters", "Inspect fan bearings", "Check belt tension", "Clean coils"},
		BaseDurationHours:  3,
		BaseCost:           600,
	},
	models.CategoryPump: {
		CriticalMetrics:    []string{"water_temp", "Supply_Temp", "pressure"},
		EfficiencyBaseline: 70,
		MaxOperatingTemp:   120,
		FailureIndicators:  []string{"cavitation", "bearing_wear", "seal_failure"},
		BaseTasks:          []string{"Check seals", "Inspect bearings", "Test pressure", "Lubricate if required"},
		BaseDurationHours:  2,
		BaseCost:           400,
	},
	models.CategoryFancoil: {
		CriticalMetrics:    []string{"temperature", "Supply_Temp"},
		EfficiencyBaseline: 75,
		MaxOperatingTemp:   90,
		FailureIndicators:  []string{"motor_wear", "valve_sticking", "coil_fouling"},
		BaseTasks:          []string{"Clean coils", "Check motor", "Inspect valves", "Test controls"},
		BaseDurationHours:  1.5,
		BaseCost:           300,
	},
	models.CategoryGeo: {
		CriticalMetrics:    []string{"LoopTemp", "Loop_Temp"},
		EfficiencyBaseline: 85,
		MaxOperatingTemp:   60,
		FailureIndicators:  []string{"loop_leak", "compressor_issue", "ground_loop_problem"},
		BaseTasks:          []string{"Check loop pressure", "Inspect compressor", "Test controls", "Monitor refrigerant"},
		BaseDurationHours:  5,
		BaseCost:           1000,
	},
}

// ParametersFor returns the category parameters and whether the category is modelled.
func ParametersFor(c models.Category) (Parameters, bool) {
	p, ok := parameters[c]
	if !ok {
		return defaultParameters, false
	}
	return p, true
}
