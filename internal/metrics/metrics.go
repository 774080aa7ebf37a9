package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds the collectors for the aggregation and reminder cycles. A nil
// *Pipeline is valid and records nothing.
type Pipeline struct {
	sourceFetchTotal    *prometheus.CounterVec
	sourceFetchDuration *prometheus.HistogramVec
	sourceCandidates    *prometheus.GaugeVec
	reconcileTotal      *prometheus.CounterVec
	statusTransitions   *prometheus.CounterVec
	aggregationDuration prometheus.Histogram
	aggregationSkipped  prometheus.Counter
	reminderTotal       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		sourceFetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contest_source_fetch_total",
				Help: "Source adapter fetches by outcome",
			},
			[]string{"source", "outcome"},
		),
		sourceFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contest_source_fetch_duration_seconds",
				Help:    "Source adapter fetch duration in seconds, retries included",
				Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"source"},
		),
		sourceCandidates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "contest_source_candidates",
				Help: "Candidates returned by the last fetch of each source",
			},
			[]string{"source"},
		),
		reconcileTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contest_reconcile_total",
				Help: "Reconciled candidates by action",
			},
			[]string{"action"},
		),
		statusTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contest_status_transitions_total",
				Help: "Contests moved between lifecycle states by the sweep",
			},
			[]string{"to"},
		),
		aggregationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "contest_aggregation_duration_seconds",
				Help:    "End-to-end aggregation cycle duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		aggregationSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "contest_aggregation_skipped_total",
				Help: "Aggregation triggers skipped because another cycle held the lock",
			},
		),
		reminderTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contest_reminder_dispatch_total",
				Help: "Reminder dispatch attempts by lead time and outcome",
			},
			[]string{"lead", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			p.sourceFetchTotal,
			p.sourceFetchDuration,
			p.sourceCandidates,
			p.reconcileTotal,
			p.statusTransitions,
			p.aggregationDuration,
			p.aggregationSkipped,
			p.reminderTotal,
		)
	}
	return p
}

func (p *Pipeline) ObserveSourceFetch(source string, ok bool, candidates int, took time.Duration) {
	if p == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	p.sourceFetchTotal.WithLabelValues(source, outcome).Inc()
	p.sourceFetchDuration.WithLabelValues(source).Observe(took.Seconds())
	p.sourceCandidates.WithLabelValues(source).Set(float64(candidates))
}

func (p *Pipeline) AddReconcile(action string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.reconcileTotal.WithLabelValues(action).Add(float64(n))
}

func (p *Pipeline) AddTransitions(to string, n int64) {
	if p == nil || n <= 0 {
		return
	}
	p.statusTransitions.WithLabelValues(to).Add(float64(n))
}

func (p *Pipeline) ObserveAggregation(took time.Duration) {
	if p == nil {
		return
	}
	p.aggregationDuration.Observe(took.Seconds())
}

func (p *Pipeline) IncAggregationSkipped() {
	if p == nil {
		return
	}
	p.aggregationSkipped.Inc()
}

func (p *Pipeline) IncReminder(lead string, ok bool) {
	if p == nil {
		return
	}
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	p.reminderTotal.WithLabelValues(lead, outcome).Inc()
}
