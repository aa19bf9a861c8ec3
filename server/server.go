package server

import (
	"net/http/httptest"
	"sync"

	"github.com/Masterminds/semver/v3"
	telemetry "github.com/darrensmithwtc/go-loadtest-telemetry"
	"github.com/darrensmithwtc/go-loadtest-telemetry/server/backend"
	"github.com/gin-gonic/gin"
)

// MetricPath is the path of the metric ingestion endpoint.
const MetricPath = "/metric/v1"

// Server is a fake metric ingestion API for tests.
type Server struct {
	// r is the gin router.
	r *gin.Engine

	// s is the underlying server.
	s *httptest.Server

	// b is the server backend, which stores license keys and accepted batches.
	b *backend.Backend

	// callWatchers records callWatchers received by the server.
	callWatchers     []callWatcher
	callWatchersLock sync.RWMutex

	// minAgentVersion is the minimum agent version that the server will accept.
	minAgentVersion *semver.Version

	// rateLimit is the optional rate limiter applied to the ingestion endpoint.
	rateLimit *rateLimiter

	// relay is the optional upstream ingestion endpoint that accepted batches are forwarded to.
	relay *relay

	// offline is whether to pretend the server is offline and return 5xx errors.
	offline bool

	stateLock sync.RWMutex
}

func New(opts ...Option) *Server {
	builder := newServerBuilder()

	for _, opt := range opts {
		opt.config(builder)
	}

	return builder.build()
}

func (s *Server) GetHostURL() string {
	return s.s.URL
}

// GetEndpoint returns the URL of the metric ingestion endpoint.
func (s *Server) GetEndpoint() string {
	return s.s.URL + MetricPath
}

func (s *Server) AddCallWatcher(fn func(Call), paths ...string) {
	s.callWatchersLock.Lock()
	defer s.callWatchersLock.Unlock()

	s.callWatchers = append(s.callWatchers, newCallWatcher(fn, paths...))
}

func (s *Server) AddLicenseKey(key string) {
	s.b.AddLicenseKey(key)
}

// GetBatches returns every batch accepted by the server.
func (s *Server) GetBatches() []backend.Batch {
	return s.b.GetBatches()
}

// GetMetrics returns every metric accepted by the server.
func (s *Server) GetMetrics() []telemetry.Metric {
	return s.b.GetMetrics()
}

func (s *Server) SetMinAgentVersion(minAgentVersion *semver.Version) {
	s.stateLock.Lock()
	defer s.stateLock.Unlock()

	s.minAgentVersion = minAgentVersion
}

func (s *Server) SetOffline(offline bool) {
	s.stateLock.Lock()
	defer s.stateLock.Unlock()

	s.offline = offline
}

func (s *Server) isOffline() bool {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()

	return s.offline
}

func (s *Server) Close() {
	s.s.Close()
}
