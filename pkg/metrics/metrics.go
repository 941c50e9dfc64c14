package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all reconciliation-service metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaEventsConsumed  *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// Store metrics
	StoreOperations        *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Temporal metrics
	WorkflowsStarted    *prometheus.CounterVec
	WorkflowsCompleted  *prometheus.CounterVec
	ActivitiesCompleted *prometheus.CounterVec
	ActivityDuration    *prometheus.HistogramVec

	// Reconciliation metrics
	ProductsResolved    *prometheus.CounterVec
	TransitCreated      *prometheus.CounterVec
	UnitsReceived       prometheus.Counter
	ReceiptsTotal       *prometheus.CounterVec
	UnfulfilledUnits    prometheus.Counter
	BarcodesAdded       prometheus.Counter
	LockWaitDuration    prometheus.Histogram
	PurchaseOrdersSaved *prometheus.CounterVec

	// Outbox metrics
	OutboxPending   prometheus.Gauge
	OutboxPublished *prometheus.CounterVec
	OutboxRetries   *prometheus.CounterVec
	OutboxDuration  prometheus.Histogram

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// New creates a new Metrics instance on a private registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}
	ns := config.Namespace
	svc := prometheus.Labels{"service": config.ServiceName}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total", Help: "Total number of HTTP requests"},
		[]string{"service", "method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)
	m.HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "http_requests_in_flight",
		Help:        "Number of HTTP requests currently being processed",
		ConstLabels: svc,
	})

	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "kafka_events_published_total", Help: "Total number of Kafka events published"},
		[]string{"service", "topic", "event_type", "status"},
	)
	m.KafkaEventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "kafka_events_consumed_total", Help: "Total number of Kafka events consumed"},
		[]string{"service", "topic", "event_type", "status"},
	)
	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "kafka_publish_duration_seconds",
			Help:      "Kafka publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "topic"},
	)

	m.StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "state_store_operations_total", Help: "Total number of state store operations"},
		[]string{"service", "backend", "operation", "status"},
	)
	m.StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "state_store_operation_duration_seconds",
			Help:      "State store operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "backend", "operation"},
	)

	m.WorkflowsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "temporal_workflows_started_total", Help: "Total number of Temporal workflows started"},
		[]string{"service", "workflow_type"},
	)
	m.WorkflowsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "temporal_workflows_completed_total", Help: "Total number of Temporal workflows completed"},
		[]string{"service", "workflow_type", "status"},
	)
	m.ActivitiesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "temporal_activities_completed_total", Help: "Total number of Temporal activities completed"},
		[]string{"service", "activity_type", "status"},
	)
	m.ActivityDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "temporal_activity_duration_seconds",
			Help:      "Temporal activity duration in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"service", "activity_type"},
	)

	m.ProductsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "reconciliation_products_resolved_total", Help: "Purchase-order lines resolved to a product, by outcome"},
		[]string{"service", "outcome"},
	)
	m.TransitCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "reconciliation_transit_records_created_total", Help: "Transit records created from purchase orders"},
		[]string{"service", "source"},
	)
	m.UnitsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "reconciliation_units_received_total",
		Help:        "Units moved from transit to on-hand",
		ConstLabels: svc,
	})
	m.ReceiptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "reconciliation_receipts_total", Help: "Receive calls by result"},
		[]string{"service", "result"},
	)
	m.UnfulfilledUnits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "reconciliation_unfulfilled_units_total",
		Help:        "Requested units that exceeded available transit quantity",
		ConstLabels: svc,
	})
	m.BarcodesAdded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "reconciliation_barcodes_added_total",
		Help:        "Barcodes attached to products",
		ConstLabels: svc,
	})
	m.LockWaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   ns,
		Name:        "reconciliation_lock_wait_seconds",
		Help:        "Time spent waiting for the state write lock",
		ConstLabels: svc,
		Buckets:     []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	})
	m.PurchaseOrdersSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "reconciliation_purchase_orders_recorded_total", Help: "Purchase orders recorded, by sync outcome"},
		[]string{"service", "outcome"},
	)

	m.OutboxPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "outbox_pending_events",
		Help:        "Unpublished outbox events seen in the last poll",
		ConstLabels: svc,
	})
	m.OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "outbox_events_published_total", Help: "Outbox events relayed to Kafka"},
		[]string{"service", "event_type", "status"},
	)
	m.OutboxRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "outbox_event_retries_total", Help: "Outbox publish retries"},
		[]string{"service", "event_type"},
	)
	m.OutboxDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   ns,
		Name:        "outbox_publish_duration_seconds",
		Help:        "Outbox relay publish duration in seconds",
		ConstLabels: svc,
		Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: ns, Name: "circuit_breaker_state", Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)"},
		[]string{"service", "name"},
	)
	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "circuit_breaker_trips_total", Help: "Total number of circuit breaker trips"},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaEventsConsumed,
		m.KafkaPublishDuration,
		m.StoreOperations,
		m.StoreOperationDuration,
		m.WorkflowsStarted,
		m.WorkflowsCompleted,
		m.ActivitiesCompleted,
		m.ActivityDuration,
		m.ProductsResolved,
		m.TransitCreated,
		m.UnitsReceived,
		m.ReceiptsTotal,
		m.UnfulfilledUnits,
		m.BarcodesAdded,
		m.LockWaitDuration,
		m.PurchaseOrdersSaved,
		m.OutboxPending,
		m.OutboxPublished,
		m.OutboxRetries,
		m.OutboxDuration,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish event
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordKafkaConsume records a Kafka consume event
func (m *Metrics) RecordKafkaConsume(topic, eventType string, success bool) {
	m.KafkaEventsConsumed.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
}

// RecordStoreOperation records a state load or persist against a backend
func (m *Metrics) RecordStoreOperation(backend, operation string, success bool, duration time.Duration) {
	m.StoreOperations.WithLabelValues(m.serviceName, backend, operation, statusLabel(success)).Inc()
	m.StoreOperationDuration.WithLabelValues(m.serviceName, backend, operation).Observe(duration.Seconds())
}

// RecordWorkflowStarted records a workflow start
func (m *Metrics) RecordWorkflowStarted(workflowType string) {
	m.WorkflowsStarted.WithLabelValues(m.serviceName, workflowType).Inc()
}

// RecordWorkflowCompleted records a workflow completion
func (m *Metrics) RecordWorkflowCompleted(workflowType string, success bool) {
	m.WorkflowsCompleted.WithLabelValues(m.serviceName, workflowType, statusLabel(success)).Inc()
}

// RecordActivityCompleted records an activity completion
func (m *Metrics) RecordActivityCompleted(activityType string, success bool, duration time.Duration) {
	m.ActivitiesCompleted.WithLabelValues(m.serviceName, activityType, statusLabel(success)).Inc()
	m.ActivityDuration.WithLabelValues(m.serviceName, activityType).Observe(duration.Seconds())
}

// RecordSync records the counters produced by one purchase-order sync
func (m *Metrics) RecordSync(source string, created, matched, transit int) {
	m.ProductsResolved.WithLabelValues(m.serviceName, "created").Add(float64(created))
	m.ProductsResolved.WithLabelValues(m.serviceName, "matched").Add(float64(matched))
	m.TransitCreated.WithLabelValues(m.serviceName, source).Add(float64(transit))
}

// RecordReceipt records a successful receive call
func (m *Metrics) RecordReceipt(received, unfulfilled float64) {
	m.ReceiptsTotal.WithLabelValues(m.serviceName, "received").Inc()
	m.UnitsReceived.Add(received)
	if unfulfilled > 0 {
		m.UnfulfilledUnits.Add(unfulfilled)
	}
}

// RecordReceiptRejected records a receive call that failed, labelled by error code
func (m *Metrics) RecordReceiptRejected(code string) {
	m.ReceiptsTotal.WithLabelValues(m.serviceName, code).Inc()
}

// RecordBarcodeAdded records a barcode attachment
func (m *Metrics) RecordBarcodeAdded() {
	m.BarcodesAdded.Inc()
}

// ObserveLockWait records how long an operation waited for the write lock
func (m *Metrics) ObserveLockWait(duration time.Duration) {
	m.LockWaitDuration.Observe(duration.Seconds())
}

// RecordPurchaseOrder records a recorded purchase order, by sync outcome
func (m *Metrics) RecordPurchaseOrder(outcome string) {
	m.PurchaseOrdersSaved.WithLabelValues(m.serviceName, outcome).Inc()
}

// SetOutboxPending sets the number of pending outbox events
func (m *Metrics) SetOutboxPending(count int) {
	m.OutboxPending.Set(float64(count))
}

// RecordOutboxPublish records an outbox relay attempt
func (m *Metrics) RecordOutboxPublish(eventType string, success bool, duration time.Duration) {
	m.OutboxPublished.WithLabelValues(m.serviceName, eventType, statusLabel(success)).Inc()
	m.OutboxDuration.Observe(duration.Seconds())
}

// RecordOutboxRetry records an outbox retry
func (m *Metrics) RecordOutboxRetry(eventType string) {
	m.OutboxRetries.WithLabelValues(m.serviceName, eventType).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}
