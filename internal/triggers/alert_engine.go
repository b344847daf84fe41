package triggers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"bmsengine/internal/alerts"
	"bmsengine/internal/config"
	"bmsengine/internal/host"
	"bmsengine/internal/models"
	"bmsengine/internal/notify"
	"bmsengine/internal/thresholds"
)

// AlertEngine raises threshold, health and energy alerts from the sensor tables.
type AlertEngine struct {
	evaluator *thresholds.Evaluator
	pipeline  *alerts.Pipeline
	limit     int
	now       func() time.Time
}

func NewAlertEngine(evaluator *thresholds.Evaluator, pipeline *alerts.Pipeline, rowConcurrency int) *AlertEngine {
	if evaluator == nil {
		evaluator = thresholds.NewEvaluator(nil)
	}
	if pipeline == nil {
		pipeline = alerts.NewPipeline(nil, nil, nil, nil)
	}
	return &AlertEngine{evaluator: evaluator, pipeline: pipeline, limit: rowConcurrency, now: time.Now}
}

func (e *AlertEngine) Name() string { return "alert_engine" }

type rowEvaluator func(row models.Row) (*models.Candidate, bool, error)

func (e *AlertEngine) ProcessWrites(ctx context.Context, h host.Host, tables []models.TableBatch, args config.Args) {
	h.Info("Processing Engine triggered")

	settings := notify.ResolveSettings(args)
	var generated, sent atomic.Int64

	for _, t := range tables {
		eval, key := e.evaluatorFor(t.TableName)
		if eval == nil {
			continue
		}

		eachRowKeyed(ctx, h, e.Name(), t.TableName, t.Rows, e.limit, key, func(ctx context.Context, row models.Row) error {
			c, ok, err := eval(row)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			generated.Add(1)
			if d := e.pipeline.Submit(ctx, h, c, settings); d.Outcome.Delivered {
				sent.Add(1)
			}
			return nil
		})
	}

	h.Info(fmt.Sprintf("Generated %d alerts, sent %d notifications", generated.Load(), sent.Load()))
}

// evaluatorFor returns the row evaluator of a table and the column its subject comes from.
// Rows about the same subject are evaluated in order so the first of them claims the cooldown.
func (e *AlertEngine) evaluatorFor(table string) (rowEvaluator, func(models.Row) string) {
	switch table {
	case models.TableMetrics:
		return e.metricsRow, column(models.KeyEquipmentID)
	case models.TableEquipmentHealth:
		return func(row models.Row) (*models.Candidate, bool, error) {
			c, ok := e.evaluator.EvaluateHealthRow(row)
			return c, ok, nil
		}, column(models.KeyHealthEquipmentID)
	case models.TableEnergyConsumption:
		return func(row models.Row) (*models.Candidate, bool, error) {
			c, ok := e.evaluator.EvaluateEnergyRow(row)
			return c, ok, nil
		}, column(models.KeyLocationID)
	}
	return nil, nil
}

func column(key string) func(models.Row) string {
	return func(row models.Row) string { return row.String(key) }
}

func (e *AlertEngine) metricsRow(row models.Row) (*models.Candidate, bool, error) {
	r, err := models.ReadingFromRow(row, e.now())
	if err != nil {
		return nil, false, skip(err)
	}
	if err := thresholds.CheckTemperature(row); err != nil {
		return nil, false, skip(fmt.Errorf("%s: %w", r.EquipmentID, err))
	}
	c, ok := e.evaluator.Evaluate(r)
	return c, ok, nil
}
