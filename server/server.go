package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/microc/buildcache"
)

var log = commonlog.GetLogger("microc.server")

// MicroCServer serves the compile service over Connect (HTTP/JSON).
type MicroCServer struct {
	worker *Worker
	mux    *http.ServeMux
}

// ServerOption configures a MicroCServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	cache    *buildcache.Cache
	workers  int
	maxSteps int
	timeout  time.Duration
}

// WithCache sets the build cache shared by compile and run requests.
func WithCache(c *buildcache.Cache) ServerOption {
	return func(cfg *serverConfig) { cfg.cache = c }
}

// WithWorkers sets how many requests are compiled or run at once.
func WithWorkers(n int) ServerOption {
	return func(cfg *serverConfig) { cfg.workers = n }
}

// WithRunLimits caps the instructions and wall time of a Run request.
// Zero leaves the corresponding limit off.
func WithRunLimits(maxSteps int, timeout time.Duration) ServerOption {
	return func(cfg *serverConfig) {
		cfg.maxSteps = maxSteps
		cfg.timeout = timeout
	}
}

// New creates a MicroCServer.
func New(opts ...ServerOption) *MicroCServer {
	cfg := &serverConfig{
		workers:  runtime.NumCPU(),
		maxSteps: 10_000_000,
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &MicroCServer{
		worker: NewWorker(cfg.workers),
		mux:    http.NewServeMux(),
	}

	svc := NewCompileService(s.worker, cfg.cache, cfg.maxSteps, cfg.timeout)
	path, handler := NewCompileServiceHandler(svc)
	s.mux.Handle(path, handler)

	return s
}

// Handler returns the HTTP handler serving every service.
func (s *MicroCServer) Handler() http.Handler { return s.mux }

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *MicroCServer) ListenAndServe(addr string) error {
	log.Noticef("MicroC compile server listening on %s", addr)
	log.Infof("Connect (HTTP/JSON): http://%s%s", addr, CompileProcedure)
	return http.ListenAndServe(addr, s.mux)
}

// Stop shuts down the server's workers.
func (s *MicroCServer) Stop() {
	s.worker.Stop()
}
