package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chat holds the orchestration metrics. A nil *Chat is valid and
// records nothing, so wiring stays optional in tests.
type Chat struct {
	TurnsTotal       *prometheus.CounterVec
	TurnDuration     prometheus.Histogram
	TurnIterations   prometheus.Histogram
	AgentCalls       *prometheus.CounterVec
	AgentLatency     *prometheus.HistogramVec
	PlannerDecisions *prometheus.CounterVec
}

// NewChat registers the chat metrics on the default registry
func NewChat() *Chat {
	return &Chat{
		TurnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Completed turns by outcome (answered, failed)",
		}, []string{"outcome"}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_turn_duration_seconds",
			Help:    "Wall time of a full turn",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
		}),
		TurnIterations: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_turn_iterations",
			Help:    "Planner iterations consumed per turn",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		AgentCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_agent_calls_total",
			Help: "Agent invocations by kind and outcome",
		}, []string{"agent", "outcome"}),
		AgentLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_agent_latency_seconds",
			Help:    "Agent answer latency by kind",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"agent"}),
		PlannerDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_planner_decisions_total",
			Help: "Planner decisions by action",
		}, []string{"action"}),
	}
}

// ObserveTurn records the outcome of one finished turn
func (c *Chat) ObserveTurn(outcome string, seconds float64, iterations int) {
	if c == nil {
		return
	}
	c.TurnsTotal.WithLabelValues(outcome).Inc()
	c.TurnDuration.Observe(seconds)
	c.TurnIterations.Observe(float64(iterations))
}

// ObserveAgent records one agent invocation
func (c *Chat) ObserveAgent(agent, outcome string, seconds float64) {
	if c == nil {
		return
	}
	c.AgentCalls.WithLabelValues(agent, outcome).Inc()
	c.AgentLatency.WithLabelValues(agent).Observe(seconds)
}

// ObserveDecision records one planner decision
func (c *Chat) ObserveDecision(action string) {
	if c == nil {
		return
	}
	c.PlannerDecisions.WithLabelValues(action).Inc()
}

// Handler exposes the default registry for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
