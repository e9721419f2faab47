package web

import (
	"context"
	"net/http"
	"time"

	"github.com/zaplink/zaplink/internal/metrics"
	"github.com/zaplink/zaplink/internal/provision"
)

// Provisioner runs the first-run pipeline, emitting progress events as
// it goes. Satisfied by *provision.Saga.
type Provisioner interface {
	Run(ctx context.Context, req provision.ProvisionRequest, emit provision.Emitter) error
}

const (
	defaultMaxRequestBody = 1 << 20 // 1 MB
	defaultRequestBudget  = 300 * time.Second
)

// Server exposes the setup API: one streaming provision endpoint plus
// status and operational probes.
type Server struct {
	Mux    *http.ServeMux
	Saga   Provisioner
	Status *StatusTracker

	// Provisioned, when set, probes whether an earlier run already set
	// this instance up; the status endpoint reports it while idle.
	Provisioned func(ctx context.Context) error

	// MaxBodyBytes caps the provision request body; RequestBudget bounds
	// one whole saga run. Zero values use the defaults above.
	MaxBodyBytes  int64
	RequestBudget time.Duration
}

func NewServer(saga Provisioner) *Server {
	s := &Server{
		Mux:    http.NewServeMux(),
		Saga:   saga,
		Status: NewStatusTracker(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Mux.HandleFunc("/healthz", s.handleHealthz)
	s.Mux.HandleFunc("/readyz", s.handleReadyz)
	s.Mux.Handle("/metrics", metrics.Handler())

	s.Mux.HandleFunc("/v1/setup/provision", s.handleProvision)
	s.Mux.HandleFunc("/v1/setup/status", s.handleStatus)
}

// Handler wraps the mux with request metrics.
func (s *Server) Handler() http.Handler {
	return metrics.Middleware(s.Mux)
}

func (s *Server) maxBodyBytes() int64 {
	if s.MaxBodyBytes > 0 {
		return s.MaxBodyBytes
	}
	return defaultMaxRequestBody
}

func (s *Server) requestBudget() time.Duration {
	if s.RequestBudget > 0 {
		return s.RequestBudget
	}
	return defaultRequestBudget
}
