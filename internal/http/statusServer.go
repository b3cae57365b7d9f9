package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"classchat/internal/api"
	"classchat/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusServer exposes client metrics and session status on a local port.
type StatusServer struct {
	server *http.Server
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewStatusServer(source api.ViewSource, m *metrics.Metrics, addr string, logger *slog.Logger) *StatusServer {
	if logger == nil {
		logger = slog.Default()
	}
	handlers := api.New(source, logger)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", handlers.HealthHandler)
	mux.HandleFunc("GET /api/status", handlers.StatusHandler)
	mux.HandleFunc("GET /api/view", handlers.ViewHandler)

	if addr == "" {
		addr = "localhost:9090"
	}

	return &StatusServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger,
	}
}

func (s *StatusServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *StatusServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *StatusServer) Serve(ln net.Listener) error {
	s.logger.Info("Status server started", "addr", ln.Addr().String())
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
