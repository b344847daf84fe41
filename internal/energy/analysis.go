package energy

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bmsengine/internal/models"
)

const (
	DefaultPeakDemandKW = 500.0
	peakRiskFraction    = 0.8
)

var carbonKgPerKWh = decimal.RequireFromString("0.4")

// Usage is the estimated draw of one unit.
type Usage struct {
	EquipmentID string
	Category    models.Category
	PowerKW     float64
	Efficiency  float64
}

// Analysis is the energy profile of one location for one batch.
type Analysis struct {
	LocationID        string
	TotalPowerKW      float64
	HourlyCost        decimal.Decimal
	AverageEfficiency float64
	EquipmentCount    int
	Equipment         []Usage
	Rate              decimal.Decimal
	RatePeriod        RatePeriod
	PeakPeriod        bool
	PeakDemandRisk    string
	CarbonKgPerHour   decimal.Decimal
	AnalyzedAt        time.Time
}

// Group is the readings of one location in arrival order.
type Group struct {
	LocationID string
	Readings   []models.Reading
}

// GroupByLocation keeps locations in the order they first appear.
func GroupByLocation(readings []models.Reading) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, r := range readings {
		i, ok := index[r.LocationID]
		if !ok {
			i = len(groups)
			index[r.LocationID] = i
			groups = append(groups, Group{LocationID: r.LocationID})
		}
		groups[i].Readings = append(groups[i].Readings, r)
	}
	return groups
}

// EstimatePower scales the category's optimal draw by the average of the numeric
// temperature columns in the row.
func EstimatePower(c models.Category, metrics models.Row) float64 {
	b := BaselineFor(c)

	sum, n := 0.0, 0
	for key := range metrics {
		if !strings.Contains(strings.ToLower(key), "temp") {
			continue
		}
		if v, ok := metrics.Number(key); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return b.Optimal
	}

	avg := sum / float64(n)
	var factor float64
	switch c {
	case models.CategoryChiller:
		factor = clamp((avg-60)/20, 0.5, 1.5)
	case models.CategoryBoiler:
		factor = clamp((80-avg)/30, 0.5, 1.5)
	default:
		factor = clamp(1+(avg-70)/100, 0.8, 1.2)
	}
	return round(clamp(b.Optimal*factor, b.Min, b.Max), 2)
}

// Efficiency penalises running below optimal less than running above it.
func Efficiency(c models.Category, powerKW float64) float64 {
	opt := BaselineFor(c).Optimal
	var eff float64
	if powerKW <= opt {
		eff = 100 - (opt-powerKW)/opt*20
	} else {
		eff = 100 - (powerKW-opt)/opt*30
	}
	return round(clamp(eff, 0, 100), 1)
}

// Analyze builds the location profile at the given time. peakKW is the demand limit the
// peak risk is measured against.
func Analyze(locationID string, readings []models.Reading, peakKW float64, now time.Time) Analysis {
	a := Analysis{
		LocationID:     locationID,
		EquipmentCount: len(readings),
		Equipment:      make([]Usage, 0, len(readings)),
		AnalyzedAt:     now,
	}

	total, effSum, effN := 0.0, 0.0, 0
	for _, r := range readings {
		c := r.Category()
		power := EstimatePower(c, r.Metrics)
		eff := Efficiency(c, power)
		a.Equipment = append(a.Equipment, Usage{EquipmentID: r.EquipmentID, Category: c, PowerKW: power, Efficiency: eff})

		total += power
		if eff > 0 {
			effSum += eff
			effN++
		}
	}
	if effN > 0 {
		a.AverageEfficiency = round(effSum/float64(effN), 1)
	}

	a.TotalPowerKW = round(total, 2)
	a.RatePeriod, a.Rate = RateFor(now.Hour())
	a.PeakPeriod = a.RatePeriod == RatePeak

	kw := decimal.NewFromFloat(total)
	a.HourlyCost = kw.Mul(a.Rate).Round(2)
	a.CarbonKgPerHour = kw.Mul(carbonKgPerKWh).Round(2)

	a.PeakDemandRisk = "low"
	if total > peakKW*peakRiskFraction {
		a.PeakDemandRisk = "high"
	}
	return a
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
