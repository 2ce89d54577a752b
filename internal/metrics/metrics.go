// Package metrics exposes the prometheus collectors shared by the HTTP API,
// the WebSocket hub and the background jobs.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "tracker_ws_connections", Help: "Open WebSocket connections"},
	)
	WSMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tracker_ws_messages_total", Help: "WebSocket sends by result"},
		[]string{"result"},
	)
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tracker_job_runs_total", Help: "Background job runs by job and result"},
		[]string{"job", "result"},
	)
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_job_duration_seconds",
			Help:    "Background job duration including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, WSConnections, WSMessages, JobRuns, JobDuration)
}

// Server serves /metrics on its own listener.
type Server struct {
	srv *http.Server
}

func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}}
}

// ListenAndServe blocks until Shutdown is called.
func (s *Server) ListenAndServe() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler returns the /metrics mux.
func (s *Server) Handler() http.Handler { return s.srv.Handler }
