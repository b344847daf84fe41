// Package triggers holds the write-batch handlers the worker pool invokes.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"bmsengine/internal/config"
	"bmsengine/internal/host"
	"bmsengine/internal/logger"
	"bmsengine/internal/metrics"
	"bmsengine/internal/models"
)

// DefaultRowConcurrency bounds per-row work inside one invocation.
const DefaultRowConcurrency = 8

// errSkipped marks rows that were not processed because they are malformed.
var errSkipped = errors.New("row skipped")

// Trigger handles one write batch. It never returns an error; failures are reported through
// the host.
type Trigger interface {
	Name() string
	ProcessWrites(ctx context.Context, h host.Host, tables []models.TableBatch, args config.Args)
}

// Registry holds triggers in registration order.
type Registry struct {
	triggers []Trigger
}

func NewRegistry(ts ...Trigger) *Registry {
	return &Registry{triggers: ts}
}

func (r *Registry) Register(t Trigger) {
	r.triggers = append(r.triggers, t)
}

func (r *Registry) Triggers() []Trigger {
	return append([]Trigger(nil), r.triggers...)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.triggers))
	for i, t := range r.triggers {
		names[i] = t.Name()
	}
	return names
}

// Invoke runs t against a batch, timing it and recovering any panic that escapes.
func Invoke(ctx context.Context, t Trigger, h host.Host, tables []models.TableBatch, args config.Args) {
	name := t.Name()
	start := time.Now()
	defer func() {
		metrics.TriggerDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if rec := recover(); rec != nil {
			log := logger.WithComponent("trigger")
			log.Error().
				Str("trigger", name).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("Trigger panicked")
			metrics.PanicsRecovered.WithLabelValues("trigger").Inc()
			h.Error(fmt.Sprintf("Plugin error: %v", rec))
		}
	}()

	t.ProcessWrites(ctx, h, tables, args)
}

type rowFunc func(ctx context.Context, row models.Row) error

// eachRow runs fn over rows with at most limit in flight. A row that fails or panics is
// logged and never affects its siblings. It returns the number of rows fn accepted.
func eachRow(ctx context.Context, h host.Host, trigger, table string, rows []models.Row, limit int, fn rowFunc) int {
	return eachRowKeyed(ctx, h, trigger, table, rows, limit, nil, fn)
}

// eachRowKeyed is eachRow where rows sharing a key run in arrival order on one goroutine.
// A nil key gives every row its own.
func eachRowKeyed(ctx context.Context, h host.Host, trigger, table string, rows []models.Row, limit int, key func(models.Row) string, fn rowFunc) int {
	if limit <= 0 {
		limit = DefaultRowConcurrency
	}

	var processed atomic.Int64
	var g errgroup.Group
	g.SetLimit(limit)

	for _, group := range partition(rows, key) {
		group := group
		g.Go(func() error {
			for _, i := range group {
				if handleRow(ctx, h, trigger, table, i, rows[i], fn) {
					processed.Add(1)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(processed.Load())
}

func partition(rows []models.Row, key func(models.Row) string) [][]int {
	if key == nil {
		out := make([][]int, len(rows))
		for i := range rows {
			out[i] = []int{i}
		}
		return out
	}

	index := make(map[string]int)
	var out [][]int
	for i, row := range rows {
		k := key(row)
		n, ok := index[k]
		if !ok {
			n = len(out)
			index[k] = n
			out = append(out, nil)
		}
		out[n] = append(out[n], i)
	}
	return out
}

func handleRow(ctx context.Context, h host.Host, trigger, table string, i int, row models.Row, fn rowFunc) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log := logger.WithComponent("trigger")
			log.Error().
				Str("trigger", trigger).
				Str("table", table).
				Int("row", i).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("Row handler panicked")
			metrics.PanicsRecovered.WithLabelValues("trigger").Inc()
			metrics.TriggerRowsTotal.WithLabelValues(trigger, table, "failed").Inc()
			h.Error(fmt.Sprintf("%s row %d: %v", table, i, rec))
			ok = false
		}
	}()

	if ctx.Err() != nil {
		metrics.TriggerRowsTotal.WithLabelValues(trigger, table, "skipped").Inc()
		return false
	}

	err := fn(ctx, row)
	switch {
	case err == nil:
		metrics.TriggerRowsTotal.WithLabelValues(trigger, table, "processed").Inc()
		return true
	case errors.Is(err, errSkipped):
		metrics.TriggerRowsTotal.WithLabelValues(trigger, table, "skipped").Inc()
		h.Warn(fmt.Sprintf("%s row %d skipped: %v", table, i, err))
	default:
		metrics.TriggerRowsTotal.WithLabelValues(trigger, table, "failed").Inc()
		h.Error(fmt.Sprintf("%s row %d: %v", table, i, err))
	}
	return false
}

func skip(err error) error {
	return fmt.Errorf("%w: %w", errSkipped, err)
}

func countRow(trigger, table, status string) {
	metrics.TriggerRowsTotal.WithLabelValues(trigger, table, status).Inc()
}
