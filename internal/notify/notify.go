package notify

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"bmsengine/internal/logger"
	"bmsengine/internal/metrics"
	"bmsengine/internal/models"
)

// Dispatch errors
var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrChannelPanic     = errors.New("channel panicked")
)

const footer = "Automata Controls Nexus BMS"

// Channel delivers a candidate to one destination. Send never panics across the
// dispatcher and reports failure in the Result.
type Channel interface {
	Name() string
	Send(ctx context.Context, c *models.Candidate) Result
}

// Result is the per-channel delivery report.
type Result struct {
	Channel  string
	Success  bool
	Attempts int
	Err      error
}

// Outcome collects every channel result. Delivered is true when any channel succeeded.
type Outcome struct {
	Results   []Result
	Delivered bool
}

// Failed returns the results that did not succeed.
func (o Outcome) Failed() []Result {
	var out []Result
	for _, r := range o.Results {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}

// Dispatcher fans a candidate out to its channels concurrently.
type Dispatcher struct {
	static []Channel
}

// NewDispatcher builds a dispatcher whose static channels receive every candidate.
func NewDispatcher(static ...Channel) *Dispatcher {
	return &Dispatcher{static: static}
}

// Dispatch sends c to the static channels plus extra. It waits for all of them.
func (d *Dispatcher) Dispatch(ctx context.Context, c *models.Candidate, extra ...Channel) Outcome {
	channels := make([]Channel, 0, len(d.static)+len(extra))
	channels = append(channels, d.static...)
	channels = append(channels, extra...)

	start := time.Now()
	results := make([]Result, len(channels))

	var g errgroup.Group
	for i, ch := range channels {
		i, ch := i, ch
		g.Go(func() error {
			results[i] = sendSafely(ctx, ch, c)
			return nil
		})
	}
	_ = g.Wait()

	metrics.DispatchDuration.Observe(time.Since(start).Seconds())

	out := Outcome{Results: results}
	for _, r := range results {
		status := "failed"
		if r.Success {
			status = "success"
			out.Delivered = true
		}
		metrics.NotificationsTotal.WithLabelValues(r.Channel, status).Inc()
	}
	return out
}

func sendSafely(ctx context.Context, ch Channel, c *models.Candidate) (res Result) {
	name := ch.Name()
	defer func() {
		if r := recover(); r != nil {
			log := logger.WithComponent("notify")
			log.Error().
				Str("channel", name).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Notification channel panicked")
			metrics.PanicsRecovered.WithLabelValues("notify").Inc()
			res = Result{Channel: name, Attempts: 1, Err: fmt.Errorf("%w: %v", ErrChannelPanic, r)}
		}
	}()

	res = ch.Send(ctx, c)
	res.Channel = name
	return res
}

// TitleCase turns identifiers like HIGH_TEMPERATURE into "High Temperature".
func TitleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
