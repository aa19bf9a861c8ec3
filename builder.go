package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultEndpoint is the default metric ingestion endpoint.
	DefaultEndpoint = "https://metric-api.eu.newrelic.com/metric/v1"

	// DefaultBatchSize is the default number of observations sent per batch.
	DefaultBatchSize = 10

	// DefaultSendTimeout bounds the time spent delivering a single batch.
	DefaultSendTimeout = 30 * time.Second

	// DefaultAgentVersion is the version reported to the ingestion API in the user agent.
	DefaultAgentVersion = "1.0.0"

	// AgentName prefixes the user agent sent with every batch.
	AgentName = "loadtest-telemetry"

	licenseKeyHeader = "X-License-Key"
)

type forwarderBuilder struct {
	endpoint     string
	licenseKey   string
	batchSize    int
	common       Attributes
	sendTimeout  time.Duration
	transport    http.RoundTripper
	logger       resty.Logger
	debug        bool
	agentVersion string
	registerer   prometheus.Registerer
	sink         Sink
}

func newForwarderBuilder() *forwarderBuilder {
	return &forwarderBuilder{
		endpoint:     DefaultEndpoint,
		batchSize:    DefaultBatchSize,
		common:       Attributes{},
		sendTimeout:  DefaultSendTimeout,
		transport:    http.DefaultTransport,
		agentVersion: DefaultAgentVersion,
	}
}

func (builder *forwarderBuilder) validate() error {
	var result *multierror.Error

	if builder.batchSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("batch size must be positive, got %d", builder.batchSize))
	}

	if builder.sendTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("send timeout must be positive, got %v", builder.sendTimeout))
	}

	// A caller-provided sink handles its own endpoint and credentials.
	if builder.sink == nil {
		if err := validateEndpoint(builder.endpoint); err != nil {
			result = multierror.Append(result, err)
		}

		if builder.licenseKey == "" {
			result = multierror.Append(result, errors.New("license key is required"))
		}
	}

	return result.ErrorOrNil()
}

func (builder *forwarderBuilder) build() (*Forwarder, error) {
	if err := builder.validate(); err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	sink := builder.sink
	if sink == nil {
		sink = builder.buildHTTPSink()
	}

	return newForwarder(sink, builder.batchSize, builder.common.Clone(), builder.sendTimeout, newForwarderMetrics(builder.registerer)), nil
}

func (builder *forwarderBuilder) buildHTTPSink() *httpSink {
	rc := resty.New()

	// Set the transport.
	rc.SetTransport(builder.transport)

	// Set the logger.
	if builder.logger != nil {
		rc.SetLogger(builder.logger)
	}

	// Set the debug flag.
	rc.SetDebug(builder.debug)

	// Set the credential and agent headers.
	rc.SetHeader(licenseKeyHeader, builder.licenseKey)
	rc.SetHeader("Content-Type", "application/json")
	rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		req.SetHeader("User-Agent", AgentName+"/"+builder.agentVersion)
		return nil
	})

	// Set middleware.
	rc.OnAfterResponse(catchAPIError)

	// Failed batches are dropped, never retried.
	rc.SetRetryCount(0)

	// Set the data type of API errors.
	rc.SetError(&APIError{})

	return &httpSink{
		rc:       rc,
		endpoint: builder.endpoint,
	}
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return errors.New("endpoint is required")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("malformed endpoint %q: %w", endpoint, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("malformed endpoint %q: scheme must be http or https", endpoint)
	}

	if u.Host == "" {
		return fmt.Errorf("malformed endpoint %q: missing host", endpoint)
	}

	return nil
}

// Option represents a type that can be used to configure the forwarder.
type Option interface {
	config(*forwarderBuilder)
}

// WithEndpoint sets the URL batches are posted to.
func WithEndpoint(endpoint string) Option {
	return &withEndpoint{
		endpoint: endpoint,
	}
}

type withEndpoint struct {
	endpoint string
}

func (opt withEndpoint) config(builder *forwarderBuilder) {
	builder.endpoint = opt.endpoint
}

// WithLicenseKey sets the license key used to authenticate with the ingestion API.
func WithLicenseKey(key string) Option {
	return &withLicenseKey{
		key: key,
	}
}

type withLicenseKey struct {
	key string
}

func (opt withLicenseKey) config(builder *forwarderBuilder) {
	builder.licenseKey = opt.key
}

// WithBatchSize sets the number of observations that triggers a flush.
func WithBatchSize(size int) Option {
	return &withBatchSize{
		size: size,
	}
}

type withBatchSize struct {
	size int
}

func (opt withBatchSize) config(builder *forwarderBuilder) {
	builder.batchSize = opt.size
}

// WithCommonAttributes sets the attributes attached to every batch.
func WithCommonAttributes(attrs Attributes) Option {
	return &withCommonAttributes{
		attrs: attrs,
	}
}

type withCommonAttributes struct {
	attrs Attributes
}

func (opt withCommonAttributes) config(builder *forwarderBuilder) {
	builder.common = opt.attrs
}

// WithSendTimeout bounds the time spent sending a single batch.
func WithSendTimeout(timeout time.Duration) Option {
	return &withSendTimeout{
		timeout: timeout,
	}
}

type withSendTimeout struct {
	timeout time.Duration
}

func (opt withSendTimeout) config(builder *forwarderBuilder) {
	builder.sendTimeout = opt.timeout
}

func WithTransport(transport http.RoundTripper) Option {
	return &withTransport{
		transport: transport,
	}
}

type withTransport struct {
	transport http.RoundTripper
}

func (opt withTransport) config(builder *forwarderBuilder) {
	builder.transport = opt.transport
}

func WithLogger(logger resty.Logger) Option {
	return &withLogger{
		logger: logger,
	}
}

type withLogger struct {
	logger resty.Logger
}

func (opt withLogger) config(builder *forwarderBuilder) {
	builder.logger = opt.logger
}

func WithDebug(debug bool) Option {
	return &withDebug{
		debug: debug,
	}
}

type withDebug struct {
	debug bool
}

func (opt withDebug) config(builder *forwarderBuilder) {
	builder.debug = opt.debug
}

// WithAgentVersion sets the version reported in the user agent.
func WithAgentVersion(version string) Option {
	return &withAgentVersion{
		version: version,
	}
}

type withAgentVersion struct {
	version string
}

func (opt withAgentVersion) config(builder *forwarderBuilder) {
	builder.agentVersion = opt.version
}

// WithRegisterer registers the forwarder's own metrics with the given registerer.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return &withRegisterer{
		registerer: registerer,
	}
}

type withRegisterer struct {
	registerer prometheus.Registerer
}

func (opt withRegisterer) config(builder *forwarderBuilder) {
	builder.registerer = opt.registerer
}

// WithSink replaces the HTTP sink. Endpoint and license key are then ignored.
func WithSink(sink Sink) Option {
	return &withSink{
		sink: sink,
	}
}

type withSink struct {
	sink Sink
}

func (opt withSink) config(builder *forwarderBuilder) {
	builder.sink = opt.sink
}
