package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessionq",
		Name:      "attempts_total",
		Help:      "Completed session attempts by result (success, failure, error).",
	}, []string{"result"})
	metricWaves = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sessionq",
		Name:      "waves_total",
		Help:      "Number of attempt waves fully drained.",
	})
	metricInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sessionq",
		Name:      "attempts_inflight",
		Help:      "Session attempts currently executing.",
	})
	metricSessionBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sessionq",
		Name:      "session_bytes",
		Help:      "Bytes transferred per session attempt.",
		Buckets:   prometheus.ExponentialBuckets(64*1024, 2, 12),
	})
)

func recordOutcome(out Outcome) {
	switch {
	case out.Succeeded:
		metricAttempts.WithLabelValues("success").Inc()
	case out.Err != nil:
		metricAttempts.WithLabelValues("error").Inc()
	default:
		metricAttempts.WithLabelValues("failure").Inc()
	}
	if out.Usage != nil {
		metricSessionBytes.Observe(float64(out.Usage.TotalBytes))
	}
}
