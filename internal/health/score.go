package health

import (
	"math"
	"sync"
	"time"

	"bmsengine/internal/models"
	"bmsengine/internal/thresholds"
)

// Status buckets a health score.
type Status string

const (
	StatusExcellent Status = "excellent"
	StatusGood      Status = "good"
	StatusFair      Status = "fair"
	StatusPoor      Status = "poor"
	StatusCritical  Status = "critical"
	StatusUnknown   Status = "unknown"
)

// Bucket lower bounds. Anything below Poor is critical.
const (
	ExcellentAt = 90.0
	GoodAt      = 75.0
	FairAt      = 60.0
	PoorAt      = 40.0
	CriticalAt  = 20.0
)

// Sub-score weights.
const (
	WeightTemperature = 0.25
	WeightEfficiency  = 0.25
	WeightTrend       = 0.30
	WeightOperational = 0.20
)

const (
	noTemperatureScore  = 75.0
	noEfficiencyScore   = 80.0
	baseTrendScore      = 75.0
	operationalScore    = 80.0
	faultedOperational  = 40.0
	unknownScore        = 50.0
	trendWindow         = 10
	trendMinSamples     = 3
	trendPointsPerSlope = 10.0
)

// Record is the outcome of scoring one reading.
type Record struct {
	EquipmentID string
	LocationID  string
	Category    models.Category
	Score       float64
	Status      Status
	Temperature float64
	Efficiency  float64
	Trend       float64
	Operational float64
	ComputedAt  time.Time
}

// StatusFor maps a score to its bucket.
func StatusFor(score float64) Status {
	switch {
	case score >= ExcellentAt:
		return StatusExcellent
	case score >= GoodAt:
		return StatusGood
	case score >= FairAt:
		return StatusFair
	case score >= PoorAt:
		return StatusPoor
	default:
		return StatusCritical
	}
}

// Analyzer owns the rolling history and the latest prediction per equipment.
type Analyzer struct {
	history *History
	now     func() time.Time

	mu     sync.RWMutex
	latest map[string]Assessment
}

// Assessment bundles everything derived from one reading.
type Assessment struct {
	Record     Record
	Prediction Prediction
	Plan       Plan
}

type Option func(*Analyzer)

func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

func WithHistorySize(n int) Option {
	return func(a *Analyzer) { a.history = NewHistory(n) }
}

func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		history: NewHistory(DefaultHistorySize),
		now:     time.Now,
		latest:  make(map[string]Assessment),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analyzer) History() *History { return a.history }

// Score computes the health record for a reading and appends it to the equipment history.
func (a *Analyzer) Score(r models.Reading) Record {
	now := a.now()
	category := r.Category()
	rec := Record{
		EquipmentID: r.EquipmentID,
		LocationID:  r.LocationID,
		Category:    category,
		ComputedAt:  now,
	}

	params, known := ParametersFor(category)
	if !known {
		rec.Score = unknownScore
		rec.Status = StatusUnknown
		return rec
	}

	rec.Temperature = TemperatureScore(r.Metrics, params.CriticalMetrics, params.MaxOperatingTemp)
	rec.Efficiency = efficiencyScore(r.Metrics, params.EfficiencyBaseline)
	rec.Trend = TrendScore(a.history.Recent(r.EquipmentID, trendWindow))
	rec.Operational = operationalScore
	if r.Metrics.Truthy("fault") || r.Metrics.Truthy("alarm") {
		rec.Operational = faultedOperational
	}

	rec.Score = round2(Combine(rec.Temperature, rec.Efficiency, rec.Trend, rec.Operational))
	rec.Status = StatusFor(rec.Score)

	a.history.Append(r.EquipmentID, Entry{At: now, Score: rec.Score})
	return rec
}

// Assess scores a reading, predicts failure and plans maintenance, caching the result.
func (a *Analyzer) Assess(r models.Reading) Assessment {
	rec := a.Score(r)
	pred := Predict(rec)
	plan := Schedule(rec, pred, rec.ComputedAt)

	out := Assessment{Record: rec, Prediction: pred, Plan: plan}
	a.mu.Lock()
	a.latest[r.EquipmentID] = out
	a.mu.Unlock()
	return out
}

// Latest returns the most recent assessment for an equipment id.
func (a *Analyzer) Latest(equipmentID string) (Assessment, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out, ok := a.latest[equipmentID]
	return out, ok
}

// AlertFor turns a poor score into a predictive maintenance candidate.
func AlertFor(rec Record) (*models.Candidate, bool) {
	if rec.Status == StatusUnknown {
		return nil, false
	}
	return thresholds.HealthCandidate(models.HealthDetails{
		EquipmentID:  rec.EquipmentID,
		LocationID:   rec.LocationID,
		Category:     rec.Category,
		HealthStatus: string(rec.Status),
	}, rec.Score, rec.ComputedAt)
}

// Combine weights the four sub-scores after clamping each to [0,100].
func Combine(temperature, efficiency, trend, operational float64) float64 {
	return WeightTemperature*clamp(temperature, 0, 100) +
		WeightEfficiency*clamp(efficiency, 0, 100) +
		WeightTrend*clamp(trend, 0, 100) +
		WeightOperational*clamp(operational, 0, 100)
}

// TemperatureScore is a step function of the average critical metric against the maximum
// operating temperature.
func TemperatureScore(metrics models.Row, keys []string, maxTemp float64) float64 {
	sum, n := 0.0, 0
	for _, key := range keys {
		if v, ok := metrics.Float(key); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return noTemperatureScore
	}

	avg := sum / float64(n)
	switch {
	case avg <= maxTemp*0.8:
		return 100
	case avg <= maxTemp*0.9:
		return 85
	case avg <= maxTemp:
		return 70
	default:
		return 30
	}
}

func efficiencyScore(metrics models.Row, baseline float64) float64 {
	v, ok := metrics.Float("efficiency")
	if !ok || baseline <= 0 {
		return noEfficiencyScore
	}
	return round2(clamp(v/baseline*100, 0, 100))
}

// TrendScore rewards improving and penalises declining scores using the least-squares slope
// over the given entries. Short histories are neutral.
func TrendScore(entries []Entry) float64 {
	n := len(entries)
	if n < trendMinSamples {
		return baseTrendScore
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, e := range entries {
		x := float64(i)
		sumX += x
		sumY += e.Score
		sumXY += x * e.Score
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return baseTrendScore
	}
	slope := (fn*sumXY - sumX*sumY) / denom

	return round2(clamp(baseTrendScore+trendPointsPerSlope*slope, 0, 100))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
