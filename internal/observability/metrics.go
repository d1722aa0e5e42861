package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "shelfcheck"

var (
	metricChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "checks_total",
		Help:      "Completed page checks by kind and outcome.",
	}, []string{"kind", "outcome"})
	metricRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "check_retries_total",
		Help:      "Check attempts that failed and were retried.",
	}, []string{"kind"})
	metricPageLoad = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "page_load_seconds",
		Help:      "Navigation time of product pages until the network went idle.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	})
	metricRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "runs_total",
		Help:      "QA runs by terminal outcome.",
	}, []string{"outcome"})
	metricTeardownFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "teardown_failures_total",
		Help:      "Browser context or process shutdowns that returned an error.",
	})
)

// Run outcomes reported through RecordRun.
const (
	RunPassed         = "passed"
	RunBelowThreshold = "below_threshold"
	RunInvalidConfig  = "invalid_config"
	RunSetupFailed    = "setup_failed"
	RunAborted        = "aborted"
)

// RecordCheck counts one finished check.
func RecordCheck(kind string, passed bool) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	metricChecks.WithLabelValues(kind, outcome).Inc()
}

func RecordRetry(kind string) {
	metricRetries.WithLabelValues(kind).Inc()
}

func RecordPageLoad(d time.Duration) {
	if d > 0 {
		metricPageLoad.Observe(d.Seconds())
	}
}

func RecordRun(outcome string) {
	metricRuns.WithLabelValues(outcome).Inc()
}

func RecordTeardownFailure() {
	metricTeardownFailures.Inc()
}
