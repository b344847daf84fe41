package triggers

import (
	"context"
	"fmt"
	"time"

	"bmsengine/internal/alerts"
	"bmsengine/internal/config"
	"bmsengine/internal/energy"
	"bmsengine/internal/host"
	"bmsengine/internal/models"
	"bmsengine/internal/notify"
	"bmsengine/internal/thresholds"
)

// EnergyOptimization analyzes each location in a metrics batch and writes its consumption,
// opportunities and commands.
type EnergyOptimization struct {
	optimizer *energy.Optimizer
	now       func() time.Time

	// Rollup alerts are off unless WithRollupAlerts is used.
	evaluator *thresholds.Evaluator
	pipeline  *alerts.Pipeline
}

type EnergyOption func(*EnergyOptimization)

// WithRollupAlerts evaluates each location rollup the way the alert engine evaluates
// energy_consumption rows and submits any candidate.
func WithRollupAlerts(evaluator *thresholds.Evaluator, pipeline *alerts.Pipeline) EnergyOption {
	return func(e *EnergyOptimization) {
		e.evaluator = evaluator
		e.pipeline = pipeline
	}
}

func NewEnergyOptimization(optimizer *energy.Optimizer, opts ...EnergyOption) *EnergyOptimization {
	if optimizer == nil {
		optimizer = energy.NewOptimizer()
	}
	e := &EnergyOptimization{optimizer: optimizer, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *EnergyOptimization) Name() string { return "energy_optimization" }

func (e *EnergyOptimization) Optimizer() *energy.Optimizer { return e.optimizer }

func (e *EnergyOptimization) ProcessWrites(ctx context.Context, h host.Host, tables []models.TableBatch, args config.Args) {
	h.Info("Processing Engine triggered")

	settings := notify.ResolveSettings(args)
	locations, commands := 0, 0
	totalKW := 0.0

	for _, t := range tables {
		if t.TableName != models.TableMetrics {
			continue
		}
		h.Info(fmt.Sprintf("Analyzing %d equipment energy readings", len(t.Rows)))

		readings := make([]models.Reading, 0, len(t.Rows))
		for i, row := range t.Rows {
			r, err := models.ReadingFromRow(row, e.now())
			if err != nil {
				countRow(e.Name(), t.TableName, "skipped")
				h.Warn(fmt.Sprintf("%s row %d skipped: %v", t.TableName, i, err))
				continue
			}
			readings = append(readings, r)
		}

		for _, g := range energy.GroupByLocation(readings) {
			if ctx.Err() != nil {
				return
			}

			res, err := e.optimizer.Optimize(g.LocationID, g.Readings)
			if err != nil {
				for range g.Readings {
					countRow(e.Name(), t.TableName, "failed")
				}
				h.Error(fmt.Sprintf("Location %s: %v", g.LocationID, err))
				continue
			}
			for _, l := range res.Lines {
				h.Write(l)
			}
			for range g.Readings {
				countRow(e.Name(), t.TableName, "processed")
			}

			locations++
			commands += len(res.Commands)
			totalKW += res.Analysis.TotalPowerKW

			e.rollupAlert(ctx, h, res.Analysis, settings)
		}
	}

	h.Info(fmt.Sprintf("Processed %d locations, %.1f kW total, generated %d optimization commands",
		locations, totalKW, commands))
}

func (e *EnergyOptimization) rollupAlert(ctx context.Context, h host.Host, a energy.Analysis, s notify.Settings) {
	if e.evaluator == nil || e.pipeline == nil {
		return
	}
	c, ok := e.evaluator.EvaluateEnergyRow(RollupRow(a))
	if !ok {
		return
	}
	e.pipeline.Submit(ctx, h, c, s)
}

// RollupRow shapes an analysis like an energy_consumption row.
func RollupRow(a energy.Analysis) models.Row {
	return models.Row{
		models.KeyLocationID: a.LocationID,
		"total_power_kw":     a.TotalPowerKW,
		"hourly_cost":        a.HourlyCost.InexactFloat64(),
		"average_efficiency": a.AverageEfficiency,
	}
}
