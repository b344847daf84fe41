package history

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"bmsengine/internal/lineprotocol"
	"bmsengine/internal/logger"
	"bmsengine/internal/metrics"
	"bmsengine/internal/models"
)

// Measurement is the line-protocol measurement for alert facts.
const Measurement = "alert_history"

// Sink appends alert facts to one store.
type Sink interface {
	Name() string
	Persist(ctx context.Context, c *models.Candidate) error
}

// Recorder appends every candidate it is given to all its sinks. It never deduplicates.
type Recorder struct {
	sinks []Sink
}

func NewRecorder(sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks}
}

// Record writes c to the static sinks plus extra. Failures are logged and counted only.
func (r *Recorder) Record(ctx context.Context, c *models.Candidate, extra ...Sink) {
	sinks := make([]Sink, 0, len(r.sinks)+len(extra))
	sinks = append(sinks, r.sinks...)
	sinks = append(sinks, extra...)

	var g errgroup.Group
	for _, s := range sinks {
		s := s
		g.Go(func() error {
			persist(ctx, s, c)
			return nil
		})
	}
	_ = g.Wait()
}

func persist(ctx context.Context, s Sink, c *models.Candidate) {
	log := logger.WithComponent("history")
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("sink", s.Name()).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("History sink panicked")
			metrics.PanicsRecovered.WithLabelValues("history").Inc()
			metrics.HistoryWritesTotal.WithLabelValues(s.Name(), "failed").Inc()
		}
	}()

	if err := s.Persist(ctx, c); err != nil {
		f := c.Fact()
		log := logger.WithEquipment(log, f.EquipmentID, f.LocationID)
		log.Error().
			Err(err).
			Str("sink", s.Name()).
			Str("alert_id", c.ID).
			Str("alert_type", c.Kind).
			Msg("Alert history write failed")
		metrics.HistoryWritesTotal.WithLabelValues(s.Name(), "failed").Inc()
		return
	}
	metrics.HistoryWritesTotal.WithLabelValues(s.Name(), "success").Inc()
}

// LineWriter is the host write handle.
type LineWriter interface {
	Write(line string)
}

// LineSink writes alert_history lines through the host.
type LineSink struct {
	w LineWriter
}

func NewLineSink(w LineWriter) *LineSink {
	return &LineSink{w: w}
}

func (s *LineSink) Name() string { return "line" }

func (s *LineSink) Persist(_ context.Context, c *models.Candidate) error {
	line, err := Line(c)
	if err != nil {
		return fmt.Errorf("build %s line: %w", Measurement, err)
	}
	s.w.Write(line)
	return nil
}

// Line renders a candidate as an alert_history record.
func Line(c *models.Candidate) (string, error) {
	b := lineprotocol.New(Measurement).
		Tag("alert_type", c.Kind).
		Tag("severity", string(c.Severity)).
		Tag("source", string(c.Source())).
		Tag("equipment_id", c.EquipmentID()).
		Tag("location_id", c.LocationID()).
		Tag("equipment_type", string(c.EquipmentType())).
		Field("message", c.Message).
		Field("value", c.Value).
		Field("threshold", c.Threshold)

	switch d := c.Details.(type) {
	case models.HealthDetails:
		status := d.HealthStatus
		if status == "" {
			status = "unknown"
		}
		b.Field("health_status", status)
	case models.EnergyDetails:
		b.Field("hourly_cost", valueOrZero(d.HourlyCost))
		b.Field("total_power_kw", valueOrZero(d.TotalPowerKW))
	}

	return b.Timestamp(c.Timestamp).Build()
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
