package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/stkwatch/internal/pkg/metrics"
	"github.com/autopeer-io/stkwatch/internal/stkagent/exposure"
	"github.com/autopeer-io/stkwatch/internal/stkagent/fetcher"
	"github.com/autopeer-io/stkwatch/pkg/log"
	"github.com/autopeer-io/stkwatch/pkg/options"
)

// Prober performs an ad-hoc upstream API call.
type Prober interface {
	Probe(ctx context.Context, vin, key string) (*fetcher.ProbeResult, error)
}

// Config wires the server to the rest of the agent.
type Config struct {
	HttpOptions *options.HttpOptions
	Board       *exposure.Board
	// Prober is optional; the debug route is only mounted when it is set
	// and debug is enabled.
	Prober Prober
	// Ready reports whether the agent finished starting.
	Ready func() bool
}

type Server struct {
	opts   *options.HttpOptions
	board  *exposure.Board
	prober Prober
	ready  func() bool
	router *mux.Router
}

func (cfg *Config) New() *Server {
	s := &Server{
		opts:   cfg.HttpOptions,
		board:  cfg.Board,
		prober: cfg.Prober,
		ready:  cfg.Ready,
	}
	if s.ready == nil {
		s.ready = func() bool { return true }
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/vehicles", s.handleListVehicles).Methods(http.MethodGet)
	api.HandleFunc("/vehicles/{vin}", s.handleGetVehicle).Methods(http.MethodGet)
	api.HandleFunc("/vehicles/{vin}/sensors", s.handleGetSensors).Methods(http.MethodGet)
	if s.opts.EnableDebug && s.prober != nil {
		api.HandleFunc("/debug/probe", s.handleProbe).Methods(http.MethodPost)
	}
	return r
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen(s.opts.Network, s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.opts.Timeout,
		WriteTimeout:      s.opts.Timeout,
	}

	log.Info("stkwatch HTTP listening", "address", lis.Addr().String(), "debug", s.opts.EnableDebug)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error(err, "HTTP server shutdown failed")
		}
	}()

	if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}
	return nil
}
