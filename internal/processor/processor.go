package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bmsengine/internal/alerts"
	"bmsengine/internal/config"
	"bmsengine/internal/energy"
	"bmsengine/internal/handlers"
	"bmsengine/internal/health"
	"bmsengine/internal/history"
	"bmsengine/internal/host"
	"bmsengine/internal/kafka"
	"bmsengine/internal/logger"
	"bmsengine/internal/metrics"
	"bmsengine/internal/middleware"
	"bmsengine/internal/notify"
	"bmsengine/internal/state"
	"bmsengine/internal/storage"
	"bmsengine/internal/thresholds"
	"bmsengine/internal/triggers"
	"bmsengine/internal/worker"
)

const (
	maxIngestBody   = 10 * 1024 * 1024
	sweepInterval   = time.Minute
	statsInterval   = 30 * time.Second
	poolStopTimeout = 15 * time.Second
)

// Processor is the high-level coordinator: batch sources feed the worker pool, the pool
// runs the triggers, and the triggers share one alert pipeline.
type Processor struct {
	cfg *config.Config

	memory    *state.MemoryStore
	redis     *state.RedisStore
	pipeline  *alerts.Pipeline
	analyzer  *health.Analyzer
	optimizer *energy.Optimizer
	registry  *triggers.Registry

	influx   *storage.Influx
	postgres *storage.Postgres
	producer *kafka.Producer
	natsConn *nats.Conn

	pool       *worker.Pool
	consumer   *kafka.Consumer
	httpServer *http.Server
	listener   net.Listener

	ready chan struct{}
	wg    sync.WaitGroup
}

// New constructs a Processor with given config.
func New(cfg *config.Config) *Processor {
	return &Processor{
		cfg:   cfg,
		ready: make(chan struct{}),
	}
}

// Ready is closed once the HTTP listener is bound.
func (p *Processor) Ready() <-chan struct{} { return p.ready }

// Addr is the bound HTTP address. Only valid after Ready.
func (p *Processor) Addr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Run starts background goroutines and blocks until context cancelled.
func (p *Processor) Run(ctx context.Context) error {
	log := logger.WithComponent("processor")
	log.Info().Msg("processor starting")

	if err := p.initBackends(ctx); err != nil {
		log.Error().Err(err).Msg("failed to initialize backends")
		p.closeBackends()
		return err
	}
	if err := p.initTriggers(); err != nil {
		log.Error().Err(err).Msg("failed to initialize triggers")
		p.closeBackends()
		return err
	}

	p.initWorkerPool()
	p.pool.Start()

	if err := p.initConsumer(); err != nil {
		log.Error().Err(err).Msg("failed to initialize consumer")
		p.pool.Stop()
		p.closeBackends()
		return fmt.Errorf("failed to initialize consumer: %w", err)
	}

	if err := p.initHTTPServer(); err != nil {
		log.Error().Err(err).Msg("failed to initialize HTTP server")
		p.pool.Stop()
		p.closeBackends()
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Info().Str("addr", p.Addr()).Msg("starting HTTP server")
		if err := p.httpServer.Serve(p.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()
	close(p.ready)

	if p.consumer != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := p.consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("kafka consumer stopped")
			}
		}()
	}

	if p.memory != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.memory.Run(ctx, sweepInterval)
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reportStats(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return p.shutdown()
}

// initBackends connects the optional stores. A backend whose address is empty is skipped.
func (p *Processor) initBackends(ctx context.Context) error {
	log := logger.WithComponent("processor")

	if p.cfg.Cooldown.RedisAddr != "" {
		p.redis = state.NewRedisStore(p.cfg.Cooldown.RedisAddr, p.cfg.Cooldown.KeyPrefix, p.cfg.Cooldown.Window)
		log.Info().Str("addr", p.cfg.Cooldown.RedisAddr).Msg("redis cooldown store initialized")
	} else {
		p.memory = state.NewMemoryStore(p.cfg.Cooldown.Window, p.cfg.Cooldown.MaxEntries)
		log.Info().Dur("window", p.cfg.Cooldown.Window).Msg("in-memory cooldown store initialized")
	}

	influx, err := storage.NewInflux(p.cfg.Influx)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		log.Warn().Msg("influx not configured, trigger output will be discarded")
	case err != nil:
		return fmt.Errorf("failed to initialize influx: %w", err)
	default:
		p.influx = influx
		log.Info().Str("bucket", p.cfg.Influx.Bucket).Msg("influx writer initialized")
	}

	pg, err := storage.OpenPostgres(ctx, p.cfg.Postgres.DSN)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
	case err != nil:
		return fmt.Errorf("failed to initialize postgres: %w", err)
	default:
		p.postgres = pg
		log.Info().Msg("postgres alert history initialized")
	}

	if len(p.cfg.Kafka.Brokers) > 0 && p.cfg.Kafka.HistoryTopic != "" {
		producer, err := kafka.NewProducer(p.cfg.Kafka.Brokers, p.cfg.Kafka.HistoryTopic, p.cfg.Kafka.Producer)
		if err != nil {
			return fmt.Errorf("failed to initialize producer: %w", err)
		}
		p.producer = producer
		log.Info().
			Strs("brokers", p.cfg.Kafka.Brokers).
			Str("topic", p.cfg.Kafka.HistoryTopic).
			Msg("kafka producer initialized")
	}

	if p.cfg.NATS.URL != "" {
		conn, err := notify.ConnectNATS(p.cfg.NATS.URL, "bmsengine")
		if err != nil {
			return err
		}
		p.natsConn = conn
		log.Info().Str("url", p.cfg.NATS.URL).Msg("nats channel initialized")
	}
	return nil
}

func (p *Processor) initTriggers() error {
	table := thresholds.DefaultTable()
	if p.cfg.ThresholdsFile != "" {
		t, err := thresholds.LoadFile(p.cfg.ThresholdsFile)
		if err != nil {
			return err
		}
		table = t
	}

	var store state.Store = p.memory
	if p.redis != nil {
		store = p.redis
	}

	var static []notify.Channel
	if p.natsConn != nil {
		static = append(static, notify.NewNATSChannel(p.natsConn, p.cfg.NATS.SubjectPrefix))
	}

	var sinks []history.Sink
	if p.postgres != nil {
		sinks = append(sinks, p.postgres)
	}
	if p.producer != nil {
		sinks = append(sinks, p.producer)
	}

	p.pipeline = alerts.NewPipeline(
		state.NewGate(store),
		notify.NewDispatcher(static...),
		notify.NewBuilder(p.cfg.Notify, &http.Client{}),
		history.NewRecorder(sinks...),
	)

	evaluator := thresholds.NewEvaluator(table)
	p.analyzer = health.NewAnalyzer(health.WithHistorySize(p.cfg.Health.HistorySize))
	p.optimizer = energy.NewOptimizer(
		energy.WithPeakDemand(p.cfg.Energy.PeakDemandKW),
		energy.WithSheddingOrder(p.cfg.Energy.SheddingOrder),
	)

	var energyOpts []triggers.EnergyOption
	if p.cfg.Energy.RollupAlerts {
		energyOpts = append(energyOpts, triggers.WithRollupAlerts(evaluator, p.pipeline))
	}

	p.registry = triggers.NewRegistry(
		triggers.NewAlertEngine(evaluator, p.pipeline, p.cfg.RowConcurrency),
		triggers.NewPredictiveMaintenance(p.analyzer, p.pipeline, p.cfg.RowConcurrency),
		triggers.NewEnergyOptimization(p.optimizer, energyOpts...),
	)

	log := logger.WithComponent("processor")
	log.Info().Strs("triggers", p.registry.Names()).Msg("triggers registered")
	return nil
}

// initWorkerPool initializes the worker pool
func (p *Processor) initWorkerPool() {
	log := logger.WithComponent("processor")

	var writer host.LineWriter
	if p.influx != nil {
		writer = p.influx
	}

	p.pool = worker.NewPool(worker.Config{
		Registry:     p.registry,
		Writer:       writer,
		QueueSize:    p.cfg.QueueSize,
		Workers:      p.cfg.Workers,
		BatchSize:    p.cfg.BatchSize,
		BatchTimeout: p.cfg.BatchTimeout,
		DefaultArgs:  config.Args(p.cfg.Args),
	})
	log.Info().Int("workers", p.cfg.Workers).Int("queue_size", p.cfg.QueueSize).Msg("worker pool initialized")
}

func (p *Processor) initConsumer() error {
	if len(p.cfg.Kafka.Brokers) == 0 || p.cfg.Kafka.WritesTopic == "" {
		return nil
	}
	consumer, err := kafka.NewConsumer(p.cfg.Kafka.Brokers, p.cfg.Kafka.WritesTopic, p.cfg.Kafka.GroupID, p.pool)
	if err != nil {
		return err
	}
	p.consumer = consumer
	return nil
}

// initHTTPServer binds the listener and builds the mux. Every route shares the middleware chain.
func (p *Processor) initHTTPServer() error {
	mux := http.NewServeMux()

	mux.Handle("/writes", handlers.NewIngestHandler(handlers.IngestConfig{
		Submitter:   p.pool,
		MaxBodySize: maxIngestBody,
		QueueFull:   worker.ErrQueueFull,
	}))

	var alertReader handlers.AlertReader
	if p.postgres != nil {
		alertReader = p.postgres
	}
	handlers.NewQueryHandler(alertReader, p.analyzer, p.optimizer).Register(mux)

	mux.HandleFunc("/health", p.healthHandler)
	mux.HandleFunc("/stats", p.statsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	listener, err := net.Listen("tcp", p.cfg.HTTPAddr)
	if err != nil {
		return err
	}
	p.listener = listener

	p.httpServer = &http.Server{
		Handler:      middleware.Chain(mux, middleware.Recovery, middleware.RequestID, middleware.Logging),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return nil
}

// shutdown performs graceful shutdown
func (p *Processor) shutdown() error {
	log := logger.WithComponent("processor")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop accepting new HTTP requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := p.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop reading new envelopes
	if p.consumer != nil {
		log.Info().Msg("stopping kafka consumer")
		if err := p.consumer.Stop(); err != nil {
			log.Error().Err(err).Msg("consumer close error")
		}
	}

	// 3. Drain the queue, abandoning in-flight work after the timeout
	done := make(chan struct{})
	go func() {
		p.pool.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("workers stopped gracefully")
	case <-time.After(poolStopTimeout):
		log.Warn().Msg("worker shutdown timeout - aborting in-flight work")
		p.pool.Abort()
		<-done
	}

	// 4. Close backends
	p.closeBackends()

	// 5. Wait for all goroutines
	p.wg.Wait()

	log.Info().Msg("processor stopped gracefully")
	return nil
}

func (p *Processor) closeBackends() {
	log := logger.WithComponent("processor")

	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			log.Error().Err(err).Msg("producer close error")
		}
	}
	if p.influx != nil {
		p.influx.Close()
	}
	if p.postgres != nil {
		if err := p.postgres.Close(); err != nil {
			log.Error().Err(err).Msg("postgres close error")
		}
	}
	if p.natsConn != nil {
		p.natsConn.Close()
	}

	// The pipeline owns the cooldown store once built.
	if p.pipeline != nil {
		if err := p.pipeline.Close(); err != nil {
			log.Error().Err(err).Msg("cooldown store close error")
		}
		return
	}
	if p.redis != nil {
		p.redis.Close()
	}
	if p.memory != nil {
		p.memory.Close()
	}
}

// reportStats periodically logs statistics
func (p *Processor) reportStats(ctx context.Context) {
	log := logger.WithComponent("processor")
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := p.Stats()
			metrics.WorkerQueueSize.Set(float64(stats.Worker.QueueLen))

			event := log.Info().
				Uint64("worker_processed", stats.Worker.Processed).
				Uint64("worker_failed", stats.Worker.Failed).
				Uint64("lines_written", stats.Worker.LinesWritten).
				Uint64("lines_failed", stats.Worker.LinesFailed).
				Int("queue_size", stats.Worker.QueueLen)
			if stats.Producer != nil {
				event = event.
					Uint64("producer_sent", stats.Producer.MessagesSent).
					Uint64("producer_failed", stats.Producer.MessagesFailed)
			}
			if stats.CooldownEntries != nil {
				event = event.Int("cooldown_entries", *stats.CooldownEntries)
			}
			event.Msg("stats")
		}
	}
}

// Stats is the body of the /stats endpoint.
type Stats struct {
	Worker          worker.Stats         `json:"worker"`
	Producer        *kafka.ProducerStats `json:"producer,omitempty"`
	CooldownEntries *int                 `json:"cooldown_entries,omitempty"`
	Triggers        []string             `json:"triggers"`
}

func (p *Processor) Stats() Stats {
	s := Stats{
		Worker:   p.pool.Stats(),
		Triggers: p.registry.Names(),
	}
	if p.producer != nil {
		ps := p.producer.Stats()
		s.Producer = &ps
	}
	if p.memory != nil {
		n := p.memory.Len()
		s.CooldownEntries = &n
	}
	return s
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler pings every configured backend.
func (p *Processor) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]pinger{}
	if p.influx != nil {
		checks["influx"] = p.influx
	}
	if p.postgres != nil {
		checks["postgres"] = p.postgres
	}
	if p.redis != nil {
		checks["redis"] = p.redis
	}

	status := http.StatusOK
	body := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	failures := map[string]string{}
	for name, c := range checks {
		if err := c.Ping(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if p.natsConn != nil && !p.natsConn.IsConnected() {
		failures["nats"] = p.natsConn.Status().String()
	}
	if len(failures) > 0 {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["failures"] = failures
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statsHandler returns current statistics
func (p *Processor) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(p.Stats())
}
