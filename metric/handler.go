package metric

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/schoolcache/errors"
)

// HealthFunc reports process health for the /health endpoint. The returned
// value is serialised as JSON; healthy selects 200 vs 503.
type HealthFunc func(ctx context.Context) (report any, healthy bool)

// Server exposes the registry over HTTP.
type Server struct {
	addr     string
	path     string
	registry *MetricsRegistry
	health   HealthFunc

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a metrics server. An empty addr defaults to ":9090" and an
// empty path to "/metrics". health may be nil.
func NewServer(addr, path string, registry *MetricsRegistry, health HealthFunc) *Server {
	if path == "" {
		path = "/metrics"
	}
	if addr == "" {
		addr = ":9090"
	}
	return &Server{
		addr:     addr,
		path:     path,
		registry: registry,
		health:   health,
	}
}

// Handler builds the HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))
	mux.HandleFunc("/health", s.serveHealth)
	return mux
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report, healthy := s.health(ctx)
	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}

// Start binds the listener and serves in the background. It returns once the
// listener is bound.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start", "server already running")
	}
	if s.registry == nil {
		return errors.WrapFatal(fmt.Errorf("nil registry"), "Server", "Start", "metrics registry not provided")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.WrapFatal(err, "Server", "Start", fmt.Sprintf("listen on %s", s.addr))
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.server
	go func() { _ = srv.Serve(ln) }()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	if err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "shutdown HTTP server")
	}
	return nil
}

// Address returns the URL of the metrics endpoint, resolving the bound port
// when the server is running.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := s.addr
	if s.listener != nil {
		addr = s.listener.Addr().String()
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + s.path
	}
	if host == "" || host == "::" || host == "0.0.0.0" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + s.path
}
