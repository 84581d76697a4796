package httpapi

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvh",
			Name:      "requests_total",
			Help:      "Requests served, by handler, method and status.",
		}, []string{"handler", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kvh",
			Name:      "request_duration_seconds",
			Help:      "Time spent serving a request, by handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *metrics) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snoop := httpsnoop.CaptureMetrics(next, w, r)
		m.requests.WithLabelValues(name, r.Method, strconv.Itoa(snoop.Code)).Inc()
		m.duration.WithLabelValues(name).Observe(snoop.Duration.Seconds())
	})
}
