package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/darrensmithwtc/go-loadtest-telemetry/server/backend"
	"github.com/gin-gonic/gin"
)

type serverBuilder struct {
	withTLS         bool
	logger          io.Writer
	licenseKeys     []string
	minAgentVersion *semver.Version
	rateLimiter     *rateLimiter
	relayOrigin     string
	relayTransport  http.RoundTripper
}

func newServerBuilder() *serverBuilder {
	var logger io.Writer

	if os.Getenv("GO_LOADTEST_TELEMETRY_SERVER_LOGGER_ENABLED") != "" {
		logger = gin.DefaultWriter
	} else {
		logger = io.Discard
	}

	return &serverBuilder{
		withTLS: true,
		logger:  logger,
	}
}

func (builder *serverBuilder) build() *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		r: gin.New(),
		b: backend.New(builder.licenseKeys...),

		minAgentVersion: builder.minAgentVersion,
		rateLimit:       builder.rateLimiter,
	}

	if builder.relayOrigin != "" {
		relay, err := newRelay(builder.relayOrigin, builder.relayTransport)
		if err != nil {
			panic(err)
		}

		s.relay = relay
	}

	if builder.withTLS {
		s.s = httptest.NewTLSServer(s.r)
	} else {
		s.s = httptest.NewServer(s.r)
	}

	s.r.Use(
		gin.LoggerWithConfig(gin.LoggerConfig{Output: builder.logger}),
		gin.Recovery(),
		s.logCalls(),
		s.handleOffline(),
	)

	initRouter(s)

	return s
}

// Option represents a type that can be used to configure the server.
type Option interface {
	config(*serverBuilder)
}

// WithTLS controls whether the server should serve over TLS.
func WithTLS(tls bool) Option {
	return &withTLS{
		withTLS: tls,
	}
}

type withTLS struct {
	withTLS bool
}

func (opt withTLS) config(builder *serverBuilder) {
	builder.withTLS = opt.withTLS
}

// WithLogger controls where Gin logs to.
func WithLogger(logger io.Writer) Option {
	return &withLogger{
		logger: logger,
	}
}

type withLogger struct {
	logger io.Writer
}

func (opt withLogger) config(builder *serverBuilder) {
	builder.logger = opt.logger
}

// WithLicenseKeys sets the license keys the server accepts.
func WithLicenseKeys(keys ...string) Option {
	return &withLicenseKeys{
		keys: keys,
	}
}

type withLicenseKeys struct {
	keys []string
}

func (opt withLicenseKeys) config(builder *serverBuilder) {
	builder.licenseKeys = append(builder.licenseKeys, opt.keys...)
}

func WithMinAgentVersion(version *semver.Version) Option {
	return &withMinAgentVersion{
		version: version,
	}
}

type withMinAgentVersion struct {
	version *semver.Version
}

func (opt withMinAgentVersion) config(builder *serverBuilder) {
	builder.minAgentVersion = opt.version
}

func WithRateLimit(limit int, window time.Duration) Option {
	return &withRateLimit{
		limit:  limit,
		window: window,
	}
}

type withRateLimit struct {
	limit  int
	window time.Duration
}

func (opt withRateLimit) config(builder *serverBuilder) {
	builder.rateLimiter = newRateLimiter(opt.limit, opt.window)
}

// WithRelay forwards every accepted request to the given ingestion endpoint.
// Batches are only recorded once the origin has accepted them.
func WithRelay(origin string, transport http.RoundTripper) Option {
	return &withRelay{
		origin:    origin,
		transport: transport,
	}
}

type withRelay struct {
	origin    string
	transport http.RoundTripper
}

func (opt withRelay) config(builder *serverBuilder) {
	builder.relayOrigin = opt.origin
	builder.relayTransport = opt.transport
}
