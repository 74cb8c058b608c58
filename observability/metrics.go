package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records the issuance pipeline activity exposed on the
// gateway /metrics endpoint.
type PipelineMetrics struct {
	BatchesSubmitted  prometheus.Counter
	BatchesSettled    prometheus.Counter
	BatchesChallenged prometheus.Counter
	CreditsMinted     prometheus.Counter
	ClaimsPaid        prometheus.Counter
	ExchangeFills     prometheus.Counter
	RequestDuration   *prometheus.HistogramVec
}

var (
	pipelineOnce sync.Once
	pipelineReg  *PipelineMetrics
)

// Pipeline returns the lazily-initialised metrics registry shared by the
// RPC and gateway layers.
func Pipeline() *PipelineMetrics {
	pipelineOnce.Do(func() {
		pipelineReg = &PipelineMetrics{
			BatchesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "carbon",
				Subsystem: "bridge",
				Name:      "batches_submitted_total",
				Help:      "Total batches accepted by the intake.",
			}),
			BatchesSettled: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "carbon",
				Subsystem: "bridge",
				Name:      "batches_settled_total",
				Help:      "Total batches settled into minted credits.",
			}),
			BatchesChallenged: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "carbon",
				Subsystem: "bridge",
				Name:      "batches_challenged_total",
				Help:      "Total challenges raised against pending batches.",
			}),
			CreditsMinted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "carbon",
				Subsystem: "bridge",
				Name:      "credits_minted_total",
				Help:      "Total credit smallest units minted by settlements.",
			}),
			ClaimsPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "carbon",
				Subsystem: "rewards",
				Name:      "claims_paid_total",
				Help:      "Total reward claims paid out.",
			}),
			ExchangeFills: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "carbon",
				Subsystem: "exchange",
				Name:      "fills_total",
				Help:      "Total exchange listing fills.",
			}),
			RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "carbon",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method", "outcome"}),
		}
		prometheus.MustRegister(
			pipelineReg.BatchesSubmitted,
			pipelineReg.BatchesSettled,
			pipelineReg.BatchesChallenged,
			pipelineReg.CreditsMinted,
			pipelineReg.ClaimsPaid,
			pipelineReg.ExchangeFills,
			pipelineReg.RequestDuration,
		)
	})
	return pipelineReg
}
