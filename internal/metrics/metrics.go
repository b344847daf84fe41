package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmsengine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bmsengine_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Ingest metrics
	IngestEnvelopesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmsengine_ingest_envelopes_total",
			Help: "Total number of write envelopes received",
		},
		[]string{"source", "status"}, // status: accepted, rejected
	)

	IngestRowsPerEnvelope = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bmsengine_ingest_rows_per_envelope",
			Help:    "Number of rows carried by each write envelope",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// Trigger metrics
	TriggerRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmsengine_trigger_rows_total",
			Help: "Rows handled by each trigger",
		},
		[]string{"trigger", "table", "status"}, // status: processed, skipped, failed
	)

	TriggerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bmsengine_trigger_duration_seconds",
			Help:    "Time spent in one trigger invocation",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15, 30},
		},
		[]string{"trigger"},
	)

	LinesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmsengine_lines_written_total",
			Help: "Line protocol records written through the host",
		},
		[]string{"measurement", "status"},
	)

	// Alert metrics
	AlertsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmsengine_alerts_generated_total",
			Help: "Alert candidates produced by evaluators",
		},
		[]string{"source", "kind", "severity"},
	)

	AlertsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmsengine_alerts_suppressed_total",
			Help: "Alert candidates suppressed by the cooldown gate",
		},
		[]string{"source", "kind"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmsengine_notifications_total",
			Help: "Notification attempts per channel",
		},
		[]string{"channel", "status"}, // status: success, failed
	)

	NotificationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmsengine_notification_retries_total",
			Help: "Retries made by retrying channels",
		},
		[]string{"channel"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bmsengine_dispatch_duration_seconds",
			Help:    "Time to fan one alert out to every channel",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15, 30, 60},
		},
	)

	HistoryWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmsengine_history_writes_total",
			Help: "Alert history writes per sink",
		},
		[]string{"sink", "status"},
	)

	CooldownEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bmsengine_cooldown_entries",
			Help: "Entries held by the in-memory cooldown store",
		},
	)

	// Worker metrics
	WorkerQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bmsengine_worker_queue_size",
			Help: "Current size of the worker queue",
		},
	)

	WorkerQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bmsengine_worker_queue_capacity",
			Help: "Capacity of the worker queue",
		},
	)

	WorkerProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bmsengine_worker_processed_total",
			Help: "Total number of envelopes processed by workers",
		},
	)

	// Kafka metrics
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmsengine_kafka_publish_total",
			Help: "Total number of alert facts published to Kafka",
		},
		[]string{"status"}, // status: success, failed
	)

	KafkaPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bmsengine_kafka_publish_retries_total",
			Help: "Total number of Kafka publish retries",
		},
	)

	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmsengine_kafka_messages_consumed_total",
			Help: "Write envelopes read from Kafka",
		},
		[]string{"status"}, // status: accepted, invalid, dropped
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmsengine_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
