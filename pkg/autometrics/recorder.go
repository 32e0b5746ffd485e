// Package autometrics instruments the autonomy engine with Prometheus
// counters, gauges, and histograms, adapted from the teacher's
// agent-middleware metrics recorder.
package autometrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records cycle outcomes, stage transitions, policy denials,
// promotions/rollbacks, and budget consumption.
type Recorder interface {
	ObserveCycle(agentId, status string, duration time.Duration)
	ObserveStageTransition(agentId, from, to string)
	ObservePolicyDenial(agentId, stage, reason string)
	ObservePromotion(agentId string)
	ObserveRollback(agentId string)
	ObserveBudget(agentId string, tokensUsed, cyclesUsed int)
}

// PrometheusRecorder is the promauto-backed Recorder used in production.
type PrometheusRecorder struct {
	cyclesTotal      *prometheus.CounterVec
	cycleDuration    *prometheus.HistogramVec
	transitionsTotal *prometheus.CounterVec
	denialsTotal     *prometheus.CounterVec
	promotionsTotal  *prometheus.CounterVec
	rollbacksTotal   *prometheus.CounterVec
	budgetTokens     *prometheus.GaugeVec
	budgetCycles     *prometheus.GaugeVec
}

// NewPrometheusRecorder registers and returns a PrometheusRecorder against
// the default registerer.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		cyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autonomy_cycles_total",
			Help: "Total autonomy cycles by outcome status.",
		}, []string{"agent_id", "status"}),
		cycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autonomy_cycle_duration_seconds",
			Help:    "Duration of autonomy cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent_id", "status"}),
		transitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autonomy_stage_transitions_total",
			Help: "Total augmentation FSM stage transitions.",
		}, []string{"agent_id", "from", "to"}),
		denialsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autonomy_policy_denials_total",
			Help: "Total policy/promotion-gate denials by stage and reason.",
		}, []string{"agent_id", "stage", "reason"}),
		promotionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autonomy_promotions_total",
			Help: "Total successful candidate promotions.",
		}, []string{"agent_id"}),
		rollbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autonomy_rollbacks_total",
			Help: "Total canary-triggered rollbacks.",
		}, []string{"agent_id"}),
		budgetTokens: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "autonomy_budget_tokens_used",
			Help: "Tokens used in the current daily budget window.",
		}, []string{"agent_id"}),
		budgetCycles: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "autonomy_budget_cycles_used",
			Help: "Cycles used in the current daily budget window.",
		}, []string{"agent_id"}),
	}
}

func (r *PrometheusRecorder) ObserveCycle(agentId, status string, duration time.Duration) {
	r.cyclesTotal.WithLabelValues(agentId, status).Inc()
	r.cycleDuration.WithLabelValues(agentId, status).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) ObserveStageTransition(agentId, from, to string) {
	r.transitionsTotal.WithLabelValues(agentId, from, to).Inc()
}

func (r *PrometheusRecorder) ObservePolicyDenial(agentId, stage, reason string) {
	r.denialsTotal.WithLabelValues(agentId, stage, reason).Inc()
}

func (r *PrometheusRecorder) ObservePromotion(agentId string) {
	r.promotionsTotal.WithLabelValues(agentId).Inc()
}

func (r *PrometheusRecorder) ObserveRollback(agentId string) {
	r.rollbacksTotal.WithLabelValues(agentId).Inc()
}

func (r *PrometheusRecorder) ObserveBudget(agentId string, tokensUsed, cyclesUsed int) {
	r.budgetTokens.WithLabelValues(agentId).Set(float64(tokensUsed))
	r.budgetCycles.WithLabelValues(agentId).Set(float64(cyclesUsed))
}

// Noop satisfies Recorder without touching the default registry, used in
// tests and when Metrics.Enabled is false.
type Noop struct{}

func (Noop) ObserveCycle(string, string, time.Duration)  {}
func (Noop) ObserveStageTransition(string, string, string) {}
func (Noop) ObservePolicyDenial(string, string, string)  {}
func (Noop) ObservePromotion(string)                     {}
func (Noop) ObserveRollback(string)                      {}
func (Noop) ObserveBudget(string, int, int)              {}
