package worker

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"bmsengine/internal/config"
	"bmsengine/internal/host"
	"bmsengine/internal/logger"
	"bmsengine/internal/metrics"
	"bmsengine/internal/models"
	"bmsengine/internal/triggers"
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
	ErrQueueFull  = errors.New("worker queue is full")
)

// Pool drains write envelopes, runs every registered trigger on each one and writes the
// lines the triggers produced in batches.
type Pool struct {
	registry     *triggers.Registry
	writer       host.LineWriter
	queue        chan *models.WriteEnvelope
	defaultArgs  config.Args
	workers      int
	batchSize    int
	batchTimeout time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	// Metrics
	processed    atomic.Uint64
	failed       atomic.Uint64
	linesWritten atomic.Uint64
	linesFailed  atomic.Uint64
}

// Config holds worker pool configuration
type Config struct {
	Registry     *triggers.Registry
	Writer       host.LineWriter
	QueueSize    int
	Workers      int
	BatchSize    int
	BatchTimeout time.Duration

	// DefaultArgs fill in arguments an envelope does not carry.
	DefaultArgs config.Args
}

// NewPool creates a new worker pool
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 100 * time.Millisecond
	}
	if cfg.Registry == nil {
		cfg.Registry = triggers.NewRegistry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	metrics.WorkerQueueCapacity.Set(float64(cfg.QueueSize))

	return &Pool{
		registry:     cfg.Registry,
		writer:       cfg.Writer,
		queue:        make(chan *models.WriteEnvelope, cfg.QueueSize),
		defaultArgs:  cfg.DefaultArgs,
		workers:      cfg.Workers,
		batchSize:    cfg.BatchSize,
		batchTimeout: cfg.BatchTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins processing envelopes
func (p *Pool) Start() {
	log := logger.WithComponent("worker_pool")
	log.Info().
		Int("workers", p.workers).
		Int("queue_size", cap(p.queue)).
		Int("batch_size", p.batchSize).
		Dur("batch_timeout", p.batchTimeout).
		Strs("triggers", p.registry.Names()).
		Msg("starting worker pool")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit queues an envelope, waiting for room until ctx is done.
func (p *Pool) Submit(ctx context.Context, env *models.WriteEnvelope) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- env:
		metrics.WorkerQueueSize.Set(float64(len(p.queue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// TrySubmit queues an envelope only if there is room right now.
func (p *Pool) TrySubmit(env *models.WriteEnvelope) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- env:
		metrics.WorkerQueueSize.Set(float64(len(p.queue)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops intake. Workers finish what is queued and exit.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.queue)
}

// Stop closes the queue and waits for the workers to drain it.
func (p *Pool) Stop() {
	log := logger.WithComponent("worker_pool")
	log.Info().Msg("stopping worker pool")
	p.Close()
	p.wg.Wait()
	p.cancel()
	log.Info().Msg("worker pool stopped")
}

// Abort cancels in-flight trigger work. Rows not yet started are skipped.
func (p *Pool) Abort() {
	p.cancel()
}

func (p *Pool) QueueLen() int { return len(p.queue) }
func (p *Pool) QueueCap() int { return cap(p.queue) }

// worker processes envelopes from the queue
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := logger.WithComponent("worker").With().Int("worker_id", id).Logger()

	log.Info().Msg("worker started")
	defer log.Info().Msg("worker stopped")

	batch := make([][]string, 0, p.batchSize)
	timer := time.NewTimer(p.batchTimeout)
	defer timer.Stop()

	for {
		select {
		case env, ok := <-p.queue:
			if !ok {
				// Queue closed, flush and exit
				p.writeBatch(batch)
				return
			}
			metrics.WorkerQueueSize.Set(float64(len(p.queue)))

			batch = append(batch, p.process(log, env))

			if len(batch) >= p.batchSize {
				p.writeBatch(batch)
				batch = batch[:0]
				timer.Reset(p.batchTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				p.writeBatch(batch)
				batch = batch[:0]
			}
			timer.Reset(p.batchTimeout)
		}
	}
}

// process runs every trigger on one envelope and returns the lines they wrote.
func (p *Pool) process(log zerolog.Logger, env *models.WriteEnvelope) (lines []string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("envelope_id", env.ID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("worker panic recovered")
			metrics.PanicsRecovered.WithLabelValues("worker").Inc()
			p.failed.Add(1)
		}
	}()

	args := config.ParseArgs(env.Args).Merge(p.defaultArgs)
	for _, t := range p.registry.Triggers() {
		h := host.NewBuffered(t.Name(), env.ID)
		triggers.Invoke(p.ctx, t, h, env.Tables, args)
		lines = append(lines, h.Drain()...)
	}

	p.processed.Add(1)
	metrics.WorkerProcessedTotal.Inc()
	log.Debug().
		Str("envelope_id", env.ID).
		Str("source", env.Source).
		Int("rows", env.RowCount()).
		Int("lines", len(lines)).
		Msg("envelope processed")
	return lines
}

// writeBatch writes the lines of several envelopes in one call
func (p *Pool) writeBatch(batch [][]string) {
	var lines []string
	for _, l := range batch {
		lines = append(lines, l...)
	}
	if len(lines) == 0 {
		return
	}

	log := logger.WithComponent("worker")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := host.WriteLines(ctx, p.writer, lines); err != nil {
		log.Error().
			Err(err).
			Int("envelopes", len(batch)).
			Int("lines", len(lines)).
			Msg("failed to write batch")

		// Fallback: write each envelope's lines on their own
		p.writeIndividually(batch)
		return
	}
	if p.writer != nil {
		p.linesWritten.Add(uint64(len(lines)))
	}
}

// writeIndividually retries a failed batch one envelope at a time
func (p *Pool) writeIndividually(batch [][]string) {
	log := logger.WithComponent("worker")
	log.Warn().Int("count", len(batch)).Msg("attempting individual writes for failed batch")

	for _, lines := range batch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := host.WriteLines(ctx, p.writer, lines)
		cancel()

		if err != nil {
			log.Error().Err(err).Int("lines", len(lines)).Msg("failed to write envelope lines")
			p.linesFailed.Add(uint64(len(lines)))
			continue
		}
		p.linesWritten.Add(uint64(len(lines)))
	}
}

// Stats returns worker pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Processed:    p.processed.Load(),
		Failed:       p.failed.Load(),
		LinesWritten: p.linesWritten.Load(),
		LinesFailed:  p.linesFailed.Load(),
		QueueLen:     len(p.queue),
		QueueCap:     cap(p.queue),
	}
}

// Stats holds worker pool metrics
type Stats struct {
	Processed    uint64 `json:"processed"`
	Failed       uint64 `json:"failed"`
	LinesWritten uint64 `json:"lines_written"`
	LinesFailed  uint64 `json:"lines_failed"`
	QueueLen     int    `json:"queue_len"`
	QueueCap     int    `json:"queue_cap"`
}
