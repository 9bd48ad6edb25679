package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const (
	Evaluations       = "relaydesk_filter_evaluations_total"
	Matches           = "relaydesk_filter_matches_total"
	ClassifierErrors  = "relaydesk_classifier_errors_total"
	Dispatches        = "relaydesk_webhook_dispatches_total"
	Deliveries        = "relaydesk_webhook_deliveries_total"
	DeliveryAttempts  = "relaydesk_webhook_attempts_total"
	TokenResolveFails = "relaydesk_token_resolve_failures_total"
)

// Registry is the process-wide registry served on /metrics.
var Registry = prometheus.NewRegistry()

var counters = map[string]*prometheus.CounterVec{}

func counter(name, help string, labels ...string) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	Registry.MustRegister(vec)
	if len(labels) == 0 {
		vec.WithLabelValues()
	}
	counters[name] = vec
}

func init() {
	counter(Evaluations, "Messages run through the filter evaluator.")
	counter(Matches, "Messages that matched a filter rule.")
	counter(ClassifierErrors, "Classifier calls that failed or timed out.")
	counter(Dispatches, "Entity mutations dispatched to webhooks.")
	counter(Deliveries, "Webhook deliveries by terminal status.", "status")
	counter(DeliveryAttempts, "HTTP attempts made by webhook deliveries.")
	counter(TokenResolveFails, "Rejected external access tokens.")
}

func Inc(name string) { add(name) }

func IncStatus(name, status string) { add(name, status) }

func add(name string, labels ...string) {
	vec, ok := counters[name]
	if !ok {
		log.Warn().Str("metric", name).Msg("Unknown metric")
		return
	}
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("Metric label mismatch")
		return
	}
	c.Inc()
}
