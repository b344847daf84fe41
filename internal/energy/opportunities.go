package energy

import (
	"sort"

	"bmsengine/internal/models"
)

const (
	loadShiftFraction    = 0.7
	loadShiftMinKW       = 2.0
	loadShiftSavings     = 0.3
	lowEfficiencyPercent = 70.0
	targetEfficiency     = 85.0
	efficiencySavings    = 0.15
	peakShaveFraction    = 0.5
)

type LoadShift struct {
	EquipmentID string
	Category    models.Category
	SavingsKW   float64
}

type EfficiencyGain struct {
	EquipmentID string
	Category    models.Category
	Current     float64
	Target      float64
	SavingsKW   float64
}

type PeakShave struct {
	EquipmentID string
	Category    models.Category
	PowerKW     float64
	ReductionKW float64
}

type Staging struct {
	Category models.Category
	Order    []string
}

// Opportunities are the savings found for one location.
type Opportunities struct {
	LoadShifting []LoadShift
	Efficiency   []EfficiencyGain
	PeakShaving  []PeakShave
	Staging      []Staging
}

func (o Opportunities) Total() int {
	return len(o.LoadShifting) + len(o.Efficiency) + len(o.PeakShaving) + len(o.Staging)
}

// Identify looks for load shifting, efficiency, peak shaving and staging opportunities.
// peakKW is the demand threshold and order the shedding order for peak shaving.
func Identify(a Analysis, peakKW float64, order []models.Category) Opportunities {
	var o Opportunities

	if a.PeakPeriod && a.TotalPowerKW > peakKW*loadShiftFraction {
		for _, u := range a.Equipment {
			if (u.Category == models.CategoryFancoil || u.Category == models.CategoryPump) && u.PowerKW > loadShiftMinKW {
				o.LoadShifting = append(o.LoadShifting, LoadShift{
					EquipmentID: u.EquipmentID,
					Category:    u.Category,
					SavingsKW:   round(u.PowerKW*loadShiftSavings, 2),
				})
			}
		}
	}

	for _, u := range a.Equipment {
		if u.Efficiency < lowEfficiencyPercent {
			o.Efficiency = append(o.Efficiency, EfficiencyGain{
				EquipmentID: u.EquipmentID,
				Category:    u.Category,
				Current:     u.Efficiency,
				Target:      targetEfficiency,
				SavingsKW:   round(u.PowerKW*efficiencySavings, 2),
			})
		}
	}

	if a.TotalPowerKW > peakKW {
		o.PeakShaving = shave(a.Equipment, a.TotalPowerKW-peakKW, order)
	}

	o.Staging = stage(a.Equipment)
	return o
}

// shave walks the shedding order and takes up to half of each unit's draw, capped by its
// safety limit, until the excess is covered.
func shave(units []Usage, excess float64, order []models.Category) []PeakShave {
	var out []PeakShave
	remaining := excess
	for _, c := range order {
		for _, u := range units {
			if u.Category != c || remaining <= 0 {
				continue
			}
			safetyCap := u.PowerKW * MaxReductionPercent(c) / 100
			reduction := round(minOf(u.PowerKW*peakShaveFraction, remaining, safetyCap), 2)
			if reduction <= 0 {
				continue
			}
			out = append(out, PeakShave{EquipmentID: u.EquipmentID, Category: c, PowerKW: u.PowerKW, ReductionKW: reduction})
			remaining -= reduction
		}
	}
	return out
}

var stagedCategories = []models.Category{models.CategoryChiller, models.CategoryBoiler, models.CategoryPump}

// stage orders multi-unit plants by efficiency, best first.
func stage(units []Usage) []Staging {
	var out []Staging
	for _, c := range stagedCategories {
		var group []Usage
		for _, u := range units {
			if u.Category == c {
				group = append(group, u)
			}
		}
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].Efficiency > group[j].Efficiency })

		order := make([]string, len(group))
		for i, u := range group {
			order[i] = u.EquipmentID
		}
		out = append(out, Staging{Category: c, Order: order})
	}
	return out
}

func minOf(first float64, rest ...float64) float64 {
	m := first
	for _, v := range rest {
		if v < m {
			m = v
		}
	}
	return m
}
