package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EnvelopesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envelopes_processed_total",
			Help: "Total number of envelope messages processed, by terminal result (count)",
		},
		[]string{"result"},
	)

	EnvelopeProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "envelope_processing_duration_ms",
			Help:    "End-to-end processing duration for one envelope delivery in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"result"},
	)

	UnknownClassificationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "envelope_unknown_classifications_total",
			Help: "Envelopes whose classification was not recognised and fell back to exception record routing (count)",
		},
	)

	DuplicateDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duplicate_documents_total",
			Help: "Documents excluded from case updates because their uuid was already attached (count)",
		},
		[]string{"anomaly"},
	)

	CaseClientRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "case_client_requests_total",
			Help: "Requests to the case management system (count)",
		},
		[]string{"operation", "status"},
	)

	CaseClientDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "case_client_duration_ms",
			Help:    "Case management call duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"operation"},
	)

	LedgerLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_lookups_total",
			Help: "Idempotency lookups against the outcome ledger (count)",
		},
		[]string{"source", "outcome"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of message delivery retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DeadLetteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dead_lettered_messages_total",
			Help: "Messages moved to the dead letter store (count)",
		},
		[]string{"queue", "reason"},
	)

	DeadLetterSweepDeletions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dead_letter_sweep_deletions_total",
			Help: "Dead-lettered messages discarded by the retention sweep (count)",
		},
	)

	DeadLetterStoreSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dead_letter_store_size",
			Help: "Approximate number of messages currently in the dead letter store (count)",
		},
	)

	PaymentCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_commands_total",
			Help: "Payment commands published to the payment processor (count)",
		},
		[]string{"command", "status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failed requests through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

func RegisterPipelineMetrics() {
	prometheus.MustRegister(
		EnvelopesProcessedTotal,
		EnvelopeProcessingDuration,
		UnknownClassificationsTotal,
		DuplicateDocumentsTotal,
		LedgerLookupsTotal,
	)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(
		RetryAttemptsTotal,
		DeadLetteredTotal,
	)
}

func RegisterDeadLetterMetrics() {
	prometheus.MustRegister(
		DeadLetterSweepDeletions,
		DeadLetterStoreSize,
	)
}

func RegisterCaseClientMetrics() {
	prometheus.MustRegister(
		CaseClientRequests,
		CaseClientDuration,
	)
}

func RegisterPaymentMetrics() {
	prometheus.MustRegister(PaymentCommandsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(
		CircuitBreakerState,
		CircuitBreakerRequests,
		CircuitBreakerFailures,
	)
}

func ObserveProcessingDuration(d time.Duration, result string) {
	EnvelopeProcessingDuration.WithLabelValues(result).Observe(float64(d.Milliseconds()))
}

func ObserveCaseClientDuration(d time.Duration, operation string) {
	CaseClientDuration.WithLabelValues(operation).Observe(float64(d.Milliseconds()))
}
