package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// JobMetrics tracks enqueue and execution outcomes for the job pipeline.
type JobMetrics struct {
	enqueues     *prometheus.CounterVec
	enqueueFails *prometheus.CounterVec
	runs         *prometheus.CounterVec
	terminal     *prometheus.CounterVec
	retryable    *prometheus.CounterVec
	duration     *prometheus.HistogramVec

	evalRuns      prometheus.Counter
	evalBillable  prometheus.Counter
	evalRunLag    prometheus.Histogram
	evalLockMiss  prometheus.Counter
	trackerOpened prometheus.Counter
}

var (
	jobsOnce sync.Once
	jobs     *JobMetrics
)

// Jobs returns the process-wide job metrics, registering on first use.
func Jobs() *JobMetrics {
	jobsOnce.Do(func() {
		jobs = newJobMetrics(prometheus.DefaultRegisterer)
	})
	return jobs
}

// ResetJobMetricsForTest drops the singleton so tests can re-register
// against a private registry.
func ResetJobMetricsForTest() {
	jobsOnce = sync.Once{}
	jobs = nil
}

func newJobMetrics(reg prometheus.Registerer) *JobMetrics {
	factory := promauto.With(reg)
	return &JobMetrics{
		enqueues: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recurra_job_enqueues_total",
			Help: "Jobs handed to the dispatch backend.",
		}, []string{"job", "queue"}),
		enqueueFails: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recurra_job_enqueue_failures_total",
			Help: "Enqueue calls that failed at the transport.",
		}, []string{"job", "queue"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recurra_job_runs_total",
			Help: "Job executions by outcome.",
		}, []string{"job", "outcome"}),
		terminal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recurra_job_terminal_errors_total",
			Help: "Executions dropped on a terminal error.",
		}, []string{"job"}),
		retryable: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recurra_job_retryable_errors_total",
			Help: "Executions returned to the queue for retry.",
		}, []string{"job"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recurra_job_duration_seconds",
			Help:    "Job execution duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),

		evalRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "recurra_billing_evaluations_total",
			Help: "Hourly billing evaluation runs.",
		}),
		evalBillable: factory.NewCounter(prometheus.CounterOpts{
			Name: "recurra_billing_merchants_billable_total",
			Help: "Merchants whose billing window was due.",
		}),
		evalRunLag: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "recurra_billing_evaluation_lag_seconds",
			Help:    "Lag behind the scheduled evaluation instant.",
			Buckets: []float64{1, 5, 15, 60, 300, 900},
		}),
		evalLockMiss: factory.NewCounter(prometheus.CounterOpts{
			Name: "recurra_billing_evaluation_lock_misses_total",
			Help: "Evaluation runs skipped because another replica held the lock.",
		}),
		trackerOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "recurra_dunning_trackers_opened_total",
			Help: "Dunning trackers created on first failure notification.",
		}),
	}
}

func (m *JobMetrics) IncEnqueue(job, queue string) {
	m.enqueues.WithLabelValues(job, queue).Inc()
}

func (m *JobMetrics) IncEnqueueFailure(job, queue string) {
	m.enqueueFails.WithLabelValues(job, queue).Inc()
}

func (m *JobMetrics) IncRun(job, outcome string) {
	m.runs.WithLabelValues(job, outcome).Inc()
}

func (m *JobMetrics) IncTerminal(job string) {
	m.terminal.WithLabelValues(job).Inc()
}

func (m *JobMetrics) IncRetryable(job string) {
	m.retryable.WithLabelValues(job).Inc()
}

func (m *JobMetrics) ObserveDuration(job string, d time.Duration) {
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *JobMetrics) IncEvaluationRun()      { m.evalRuns.Inc() }
func (m *JobMetrics) IncBillableMerchant()   { m.evalBillable.Inc() }
func (m *JobMetrics) IncEvaluationLockMiss() { m.evalLockMiss.Inc() }
func (m *JobMetrics) IncTrackerOpened()      { m.trackerOpened.Inc() }

func (m *JobMetrics) ObserveEvaluationLag(lag time.Duration) {
	if lag > 0 {
		m.evalRunLag.Observe(lag.Seconds())
	}
}
