package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "staking_engine",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staking_engine",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "staking_engine",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	depositsRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "staking_engine",
			Subsystem: "ledger",
			Name:      "deposits_total",
			Help:      "Total number of deposits recorded.",
		},
	)

	withdrawalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staking_engine",
			Subsystem: "ledger",
			Name:      "withdrawal_requests_total",
			Help:      "Total number of withdrawal requests by outcome.",
		},
		[]string{"outcome"},
	)

	accrualRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staking_engine",
			Subsystem: "accrual",
			Name:      "runs_total",
			Help:      "Total number of accrual job runs by result.",
		},
		[]string{"result"},
	)

	accrualStakesCredited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "staking_engine",
			Subsystem: "accrual",
			Name:      "stakes_credited_total",
			Help:      "Total number of stake-day yield credits written.",
		},
	)

	accrualDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "staking_engine",
			Subsystem: "accrual",
			Name:      "run_duration_seconds",
			Help:      "Duration of accrual job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		depositsRecorded,
		withdrawalRequests,
		accrualRuns,
		accrualStakesCredited,
		accrualDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordDeposit counts a successfully recorded deposit.
func RecordDeposit() {
	depositsRecorded.Inc()
}

// RecordWithdrawalRequest counts a withdrawal request by outcome
// (accepted/rejected).
func RecordWithdrawalRequest(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	withdrawalRequests.WithLabelValues(outcome).Inc()
}

// RecordAccrualRun records one accrual job run.
func RecordAccrualRun(credited int, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	accrualRuns.WithLabelValues(result).Inc()
	accrualStakesCredited.Add(float64(credited))
	accrualDuration.Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "admin":
		if len(parts) >= 2 && parts[1] == "withdrawals" {
			if len(parts) > 2 {
				return "/admin/withdrawals/:id"
			}
			return "/admin/withdrawals"
		}
		if len(parts) > 1 {
			return "/admin/" + parts[1]
		}
		return "/admin"
	case "cron", "pool", "auth":
		if len(parts) > 1 {
			return "/" + parts[0] + "/" + parts[1]
		}
		return "/" + parts[0]
	default:
		return "/" + parts[0]
	}
}
