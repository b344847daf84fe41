package energy

import (
	"sync"
	"time"

	"bmsengine/internal/models"
)

// Result is everything the optimizer derived for one location.
type Result struct {
	Analysis      Analysis
	Opportunities Opportunities
	Commands      []Command
	Lines         []string
}

// Optimizer runs the per-location energy analysis and keeps the latest result.
type Optimizer struct {
	peakKW float64
	order  []models.Category
	now    func() time.Time

	mu     sync.RWMutex
	latest map[string]Result
}

type Option func(*Optimizer)

func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) { o.now = now }
}

func WithPeakDemand(kw float64) Option {
	return func(o *Optimizer) {
		if kw > 0 {
			o.peakKW = kw
		}
	}
}

// WithSheddingOrder accepts category names and aliases such as "ahu".
func WithSheddingOrder(names []string) Option {
	return func(o *Optimizer) {
		var order []models.Category
		for _, n := range names {
			if c := models.ParseCategory(n); c != models.CategoryUnknown {
				order = append(order, c)
			}
		}
		if len(order) > 0 {
			o.order = order
		}
	}
}

func NewOptimizer(opts ...Option) *Optimizer {
	o := &Optimizer{
		peakKW: DefaultPeakDemandKW,
		order:  DefaultSheddingOrder,
		now:    time.Now,
		latest: make(map[string]Result),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize analyzes one location and renders its lines.
func (o *Optimizer) Optimize(locationID string, readings []models.Reading) (Result, error) {
	a := Analyze(locationID, readings, o.peakKW, o.now())
	opp := Identify(a, o.peakKW, o.order)
	cmds := Commands(locationID, opp)

	lines, err := Lines(a, opp, cmds)
	if err != nil {
		return Result{}, err
	}

	res := Result{Analysis: a, Opportunities: opp, Commands: cmds, Lines: lines}
	o.mu.Lock()
	o.latest[locationID] = res
	o.mu.Unlock()
	return res, nil
}

// Latest returns the last result for a location.
func (o *Optimizer) Latest(locationID string) (Result, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	res, ok := o.latest[locationID]
	return res, ok
}
