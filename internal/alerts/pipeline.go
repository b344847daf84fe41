// Package alerts runs a candidate through cooldown, notification and history.
package alerts

import (
	"context"
	"fmt"
	"strings"

	"bmsengine/internal/history"
	"bmsengine/internal/host"
	"bmsengine/internal/metrics"
	"bmsengine/internal/models"
	"bmsengine/internal/notify"
	"bmsengine/internal/state"
)

// Delivery reports what happened to one candidate.
type Delivery struct {
	Suppressed bool
	Outcome    notify.Outcome
}

// Pipeline is shared by every trigger. Channels and sinks that depend on the invocation
// arguments are added per call.
type Pipeline struct {
	gate       *state.Gate
	dispatcher *notify.Dispatcher
	builder    *notify.Builder
	recorder   *history.Recorder
}

func NewPipeline(gate *state.Gate, dispatcher *notify.Dispatcher, builder *notify.Builder, recorder *history.Recorder) *Pipeline {
	if gate == nil {
		gate = state.NewGate(nil)
	}
	if dispatcher == nil {
		dispatcher = notify.NewDispatcher()
	}
	if recorder == nil {
		recorder = history.NewRecorder()
	}
	return &Pipeline{gate: gate, dispatcher: dispatcher, builder: builder, recorder: recorder}
}

// Submit gates c on its cooldown key, notifies every configured channel and records the fact.
// A suppressed candidate is neither notified nor recorded.
func (p *Pipeline) Submit(ctx context.Context, h host.Host, c *models.Candidate, s notify.Settings) Delivery {
	source := string(c.Source())
	metrics.AlertsGeneratedTotal.WithLabelValues(source, c.Kind, string(c.Severity)).Inc()

	if !p.gate.Allow(ctx, c) {
		metrics.AlertsSuppressedTotal.WithLabelValues(source, c.Kind).Inc()
		h.Info(fmt.Sprintf("Alert %s in cooldown period, skipping notification", c.CooldownKey()))
		return Delivery{Suppressed: true}
	}

	var channels []notify.Channel
	if p.builder != nil {
		channels = p.builder.Channels(s)
	}
	outcome := p.dispatcher.Dispatch(ctx, c, channels...)
	report(h, c, outcome)

	var sinks []history.Sink
	if s.AlertsDB != "" {
		sinks = append(sinks, history.NewLineSink(h))
	}
	p.recorder.Record(ctx, c, sinks...)

	return Delivery{Outcome: outcome}
}

// Close releases the cooldown store.
func (p *Pipeline) Close() error {
	return p.gate.Close()
}

func report(h host.Host, c *models.Candidate, o notify.Outcome) {
	if len(o.Results) == 0 {
		h.Warn(fmt.Sprintf("No notification channels configured for %s", c.CooldownKey()))
		return
	}

	failed := o.Failed()
	if len(failed) == 0 {
		h.Info(fmt.Sprintf("Alert %s sent via %d channel(s)", c.ID, len(o.Results)))
		return
	}

	names := make([]string, 0, len(failed))
	for _, r := range failed {
		names = append(names, fmt.Sprintf("%s (%v)", r.Channel, r.Err))
	}
	msg := fmt.Sprintf("Alert %s failed on %s", c.ID, strings.Join(names, ", "))
	if o.Delivered {
		h.Warn(msg)
		return
	}
	h.Error(msg)
}
