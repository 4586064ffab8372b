package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recommendation outcomes.
const (
	OutcomeHit         = "hit"
	OutcomeRegenerated = "regenerated"
	OutcomeFallback    = "fallback"
)

var (
	recommendationRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibehealth",
		Subsystem: "recommendation",
		Name:      "requests_total",
		Help:      "Daily recommendation requests by outcome (hit, regenerated, fallback).",
	}, []string{"outcome"})
	recommendationGeneratedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vibehealth",
		Subsystem: "recommendation",
		Name:      "last_generated_timestamp_seconds",
		Help:      "Unix timestamp of the most recent recommendation written to the cache.",
	})
	modelCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vibehealth",
		Subsystem: "model",
		Name:      "call_duration_seconds",
		Help:      "Latency of OpenRouter calls by operation and result.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"operation", "result"})
	confirmedEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibehealth",
		Subsystem: "entries",
		Name:      "confirmed_total",
		Help:      "Confirmed diet and exercise entries.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(recommendationRequests, recommendationGeneratedGauge, modelCallDuration, confirmedEntries)
}

// RecordRecommendation counts one recommendation request by outcome.
func RecordRecommendation(outcome string) {
	recommendationRequests.WithLabelValues(outcome).Inc()
}

// RecordRecommendationGenerated updates the generation watermark gauge.
func RecordRecommendationGenerated(ts time.Time) {
	if ts.IsZero() {
		return
	}
	recommendationGeneratedGauge.Set(float64(ts.Unix()))
}

// ObserveModelCall records the latency of one model call.
func ObserveModelCall(operation, result string, d time.Duration) {
	modelCallDuration.WithLabelValues(operation, result).Observe(d.Seconds())
}

// RecordEntryConfirmed counts a confirmed entry of the given kind.
func RecordEntryConfirmed(kind string) {
	confirmedEntries.WithLabelValues(kind).Inc()
}
