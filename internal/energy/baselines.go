package energy

import "bmsengine/internal/models"

// Baseline is the expected power draw range of a category in kW.
type Baseline struct {
	Min     float64
	Max     float64
	Optimal float64
}

var defaultBaseline = Baseline{Min: 1, Max: 10, Optimal: 5}

var baselines = map[models.Category]Baseline{
	models.CategoryBoiler:     {Min: 5, Max: 50, Optimal: 35},
	models.CategoryChiller:    {Min: 10, Max: 150, Optimal: 100},
	models.CategoryAirHandler: {Min: 2, Max: 25, Optimal: 18},
	models.CategoryPump:       {Min: 0.5, Max: 15, Optimal: 8},
	models.CategoryFancoil:    {Min: 0.2, Max: 3, Optimal: 2},
	models.CategoryGeo:        {Min: 3, Max: 30, Optimal: 20},
}

func BaselineFor(c models.Category) Baseline {
	if b, ok := baselines[c]; ok {
		return b
	}
	return defaultBaseline
}

const defaultMaxReductionPercent = 30.0

// maxReductionPercent is how far a command may cut a unit's load.
var maxReductionPercent = map[models.Category]float64{
	models.CategoryBoiler:     20,
	models.CategoryChiller:    30,
	models.CategoryAirHandler: 40,
	models.CategoryPump:       50,
	models.CategoryFancoil:    60,
	models.CategoryGeo:        25,
}

// MaxReductionPercent returns the safety limit for a category.
func MaxReductionPercent(c models.Category) float64 {
	if p, ok := maxReductionPercent[c]; ok {
		return p
	}
	return defaultMaxReductionPercent
}

// DefaultSheddingOrder lists the categories shed first during peak shaving.
var DefaultSheddingOrder = []models.Category{
	models.CategoryLighting,
	models.CategoryFancoil,
	models.CategoryPump,
	models.CategoryAirHandler,
	models.CategoryChiller,
	models.CategoryBoiler,
}
