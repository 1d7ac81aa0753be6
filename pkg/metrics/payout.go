package metrics

import "github.com/prometheus/client_golang/prometheus"

// PayoutMetrics exposes the operational backlog of unresolved payout tasks.
type PayoutMetrics struct {
	backlog prometheus.Gauge
	retries *prometheus.CounterVec
}

// NewPayoutMetrics registers the payout metrics on the provided registerer.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "payout_tasks_pending",
		Help: "Number of payout tasks awaiting retry or manual resolution.",
	})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_retries_total",
		Help: "Payout retry attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(backlog, retries)
	return &PayoutMetrics{backlog: backlog, retries: retries}
}

// SetBacklog records the current pending payout task count.
func (p *PayoutMetrics) SetBacklog(count int64) {
	if p == nil || p.backlog == nil {
		return
	}
	p.backlog.Set(float64(count))
}

// IncRetry counts a retry attempt with the given outcome label.
func (p *PayoutMetrics) IncRetry(outcome string) {
	if p == nil || p.retries == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	p.retries.WithLabelValues(outcome).Inc()
}
