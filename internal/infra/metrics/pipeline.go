package metrics

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsTotal, providerCallLatencyMs, storageOpsTotal, statusPollsTotal)
}

var jobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "customization_jobs_total",
		Help: "Customization jobs reaching a status, labeled by status.",
	},
	[]string{"status"},
)

var providerCallLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "provider_call_latency_ms",
		Help:    "AI provider call latency distribution in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
	},
	[]string{"provider", "op", "success"},
)

var storageOpsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "blob_storage_ops_total",
		Help: "Blob store operations by op and outcome.",
	},
	[]string{"op", "success"},
)

var statusPollsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tryon_status_polls_total",
		Help: "Status polls by resolution source (cache, provider).",
	},
	[]string{"source"},
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncJobStatus(status string) {
	jobsTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveProviderCall(provider, op string, latencyMs int64, success bool) {
	providerCallLatencyMs.WithLabelValues(norm(provider), norm(op), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncStorageOp(op string, success bool) {
	storageOpsTotal.WithLabelValues(norm(op), strconv.FormatBool(success)).Inc()
}

func IncStatusPoll(source string) {
	statusPollsTotal.WithLabelValues(norm(source)).Inc()
}
