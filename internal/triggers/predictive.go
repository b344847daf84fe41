package triggers

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"bmsengine/internal/alerts"
	"bmsengine/internal/config"
	"bmsengine/internal/health"
	"bmsengine/internal/host"
	"bmsengine/internal/lineprotocol"
	"bmsengine/internal/models"
	"bmsengine/internal/notify"
)

// Measurements written by the predictive maintenance trigger.
const (
	MeasurementHealth      = "equipment_health"
	MeasurementPredictions = "failure_predictions"
	MeasurementSchedule    = "maintenance_schedule"
	MeasurementMaintenance = "maintenance_alerts"
)

const (
	highFailureProbability = 60
	alertLevelCritical     = "critical"
	alertLevelHigh         = "high"
	alertLevelWarning      = "warning"
)

// PredictiveMaintenance scores every metrics row, writes the analytics lines and raises a
// maintenance alert for equipment in poor health.
type PredictiveMaintenance struct {
	analyzer *health.Analyzer
	pipeline *alerts.Pipeline
	limit    int
	now      func() time.Time
}

func NewPredictiveMaintenance(analyzer *health.Analyzer, pipeline *alerts.Pipeline, rowConcurrency int) *PredictiveMaintenance {
	if analyzer == nil {
		analyzer = health.NewAnalyzer()
	}
	return &PredictiveMaintenance{analyzer: analyzer, pipeline: pipeline, limit: rowConcurrency, now: time.Now}
}

func (p *PredictiveMaintenance) Name() string { return "predictive_maintenance" }

func (p *PredictiveMaintenance) Analyzer() *health.Analyzer { return p.analyzer }

func (p *PredictiveMaintenance) ProcessWrites(ctx context.Context, h host.Host, tables []models.TableBatch, args config.Args) {
	h.Info("Processing Engine triggered")

	settings := notify.ResolveSettings(args)
	var processed, raised atomic.Int64

	for _, t := range tables {
		if t.TableName != models.TableMetrics {
			continue
		}
		h.Info(fmt.Sprintf("Analyzing %d equipment readings", len(t.Rows)))

		n := eachRowKeyed(ctx, h, p.Name(), t.TableName, t.Rows, p.limit, column(models.KeyEquipmentID),
			func(ctx context.Context, row models.Row) error {
				r, err := models.ReadingFromRow(row, p.now())
				if err != nil {
					return skip(err)
				}

				a := p.analyzer.Assess(r)
				lines, err := AnalyticsLines(r.LocationID, a)
				if err != nil {
					return fmt.Errorf("analytics lines for %s: %w", r.EquipmentID, err)
				}
				for _, l := range lines {
					h.Write(l)
				}

				if a.Record.Score >= health.PoorAt {
					return nil
				}
				raised.Add(1)
				return p.raise(ctx, h, r, a, settings)
			})
		processed.Add(int64(n))
	}

	h.Info(fmt.Sprintf("Processed %d equipment, generated %d alerts", processed.Load(), raised.Load()))
}

func (p *PredictiveMaintenance) raise(ctx context.Context, h host.Host, r models.Reading, a health.Assessment, s notify.Settings) error {
	level := AlertLevel(a)
	line, err := MaintenanceAlertLine(r.LocationID, a)
	if err != nil {
		return fmt.Errorf("maintenance alert for %s: %w", r.EquipmentID, err)
	}
	h.Write(line)
	h.Info(fmt.Sprintf("%s alert generated for %s", strings.ToUpper(level), r.EquipmentID))

	if c, ok := health.AlertFor(a.Record); ok && p.pipeline != nil {
		p.pipeline.Submit(ctx, h, c, s)
	}
	return nil
}

// AlertLevel grades a poor assessment for the maintenance_alerts measurement.
func AlertLevel(a health.Assessment) string {
	switch {
	case a.Record.Score < health.CriticalAt:
		return alertLevelCritical
	case a.Prediction.FailureProbability > highFailureProbability:
		return alertLevelHigh
	default:
		return alertLevelWarning
	}
}

// AnalyticsLines renders the health, prediction and schedule records of one assessment.
func AnalyticsLines(locationID string, a health.Assessment) ([]string, error) {
	rec, pred, plan := a.Record, a.Prediction, a.Plan
	at := rec.ComputedAt

	healthLine, err := lineprotocol.New(MeasurementHealth).
		Tag("equipment_id", rec.EquipmentID).
		Tag("location_id", locationID).
		Tag("equipment_type", string(rec.Category)).
		Tag("health_status", string(rec.Status)).
		Field("health_score", rec.Score).
		Field("temperature_health", rec.Temperature).
		Field("efficiency_health", rec.Efficiency).
		Field("trend_health", rec.Trend).
		Field("operational_health", rec.Operational).
		Timestamp(at).
		Build()
	if err != nil {
		return nil, err
	}

	predictionLine, err := lineprotocol.New(MeasurementPredictions).
		Tag("equipment_id", rec.EquipmentID).
		Tag("location_id", locationID).
		Tag("priority", string(pred.Priority)).
		Field("failure_probability", pred.FailureProbability).
		Field("time_to_failure_days", pred.DaysToFailure).
		Field("recommendation", pred.Recommendation).
		Timestamp(at).
		Build()
	if err != nil {
		return nil, err
	}

	scheduleLine, err := lineprotocol.New(MeasurementSchedule).
		Tag("equipment_id", rec.EquipmentID).
		Tag("location_id", locationID).
		Tag("maintenance_type", string(plan.Type)).
		Tag("priority", string(plan.Priority)).
		Field("duration_hours", plan.DurationHours).
		Field("estimated_cost", plan.EstimatedCost.InexactFloat64()).
		Field("task_count", len(plan.Tasks)).
		Field("next_maintenance", plan.NextDate.UTC().Format(time.RFC3339)).
		Timestamp(at).
		Build()
	if err != nil {
		return nil, err
	}

	return []string{healthLine, predictionLine, scheduleLine}, nil
}

// MaintenanceAlertLine renders the maintenance_alerts record for a poor assessment.
func MaintenanceAlertLine(locationID string, a health.Assessment) (string, error) {
	rec, pred := a.Record, a.Prediction
	return lineprotocol.New(MeasurementMaintenance).
		Tag("equipment_id", rec.EquipmentID).
		Tag("location_id", locationID).
		Tag("alert_level", AlertLevel(a)).
		Tag("equipment_type", string(rec.Category)).
		Field("message", fmt.Sprintf(
			"Equipment %s requires immediate attention. Health score: %.1f%%, Failure probability: %d%%",
			rec.EquipmentID, rec.Score, pred.FailureProbability)).
		Field("health_score", rec.Score).
		Field("failure_probability", pred.FailureProbability).
		Field("recommendation", pred.Recommendation).
		Timestamp(rec.ComputedAt).
		Build()
}
