package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrListenerNotSetUp is returned when samples are handled outside of a test run.
var ErrListenerNotSetUp = errors.New("listener is not set up")

// Listener adapts the forwarder to a load-testing tool's test lifecycle.
// The host calls Setup once, HandleSampleResults any number of times, then Teardown once.
type Listener struct {
	// opts are applied after the options derived from the parameters.
	opts []Option

	cfg       Config
	filter    *SamplerFilter
	mapper    *Mapper
	forwarder *Forwarder

	// tornDown is set by Teardown and cleared by the next Setup.
	tornDown bool

	lock sync.Mutex
}

// NewListener returns a listener whose forwarder is additionally configured with opts.
func NewListener(opts ...Option) *Listener {
	return &Listener{opts: opts}
}

// DefaultParameters returns the parameters the listener accepts, with their default values.
func (l *Listener) DefaultParameters() map[string]string {
	return DefaultParameters()
}

// Setup parses the parameters and starts a new test run.
// A run that was set up but not torn down is closed first, sending its pending observations.
func (l *Listener) Setup(ctx context.Context, params map[string]string) error {
	cfg, err := ParseConfig(params)
	if err != nil {
		return err
	}

	forwarder, err := New(append([]Option{
		WithEndpoint(cfg.ConnectionString),
		WithLicenseKey(cfg.LicenceKey),
		WithBatchSize(cfg.MetricBatchSize),
		WithCommonAttributes(Attributes{"ingestProvider": IngestProvider}),
	}, l.opts...)...)
	if err != nil {
		return err
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	if l.forwarder != nil && !l.tornDown {
		if err := l.forwarder.Close(ctx); err != nil {
			logrus.WithField("pkg", "go-loadtest-telemetry").WithError(err).Warn("Failed to close previous test run")
		}
	}

	l.cfg = cfg
	l.filter = cfg.Filter()
	l.tornDown = false
	l.mapper = NewMapper(cfg.TestName, time.Now(), cfg.CustomProperties, cfg.ResponseHeaders)
	l.forwarder = forwarder

	logrus.WithFields(logrus.Fields{
		"pkg":       "go-loadtest-telemetry",
		"testName":  cfg.TestName,
		"endpoint":  cfg.ConnectionString,
		"batchSize": cfg.MetricBatchSize,
		"headers":   cfg.ResponseHeaders,
	}).Info("Listener set up")

	return nil
}

// Forwarder returns the forwarder of the current test run, or nil before Setup.
func (l *Listener) Forwarder() *Forwarder {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.forwarder
}

// HandleSampleResults forwards every sample accepted by the sampler filter.
// After Teardown it returns ErrForwarderClosed.
func (l *Listener) HandleSampleResults(ctx context.Context, samples []Sample) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.forwarder == nil {
		return ErrListenerNotSetUp
	}

	if l.tornDown {
		return ErrForwarderClosed
	}

	for _, sample := range samples {
		if !l.filter.Match(sample.Label) {
			continue
		}

		if err := l.forwarder.Record(ctx, l.mapper.Map(sample)); err != nil {
			return err
		}
	}

	return nil
}

// Teardown ends the test run, sending any pending observations.
func (l *Listener) Teardown(ctx context.Context) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.forwarder == nil {
		return ErrListenerNotSetUp
	}

	l.filter.Clear()
	l.tornDown = true

	err := l.forwarder.Close(ctx)

	stats := l.forwarder.Stats()

	logrus.WithFields(logrus.Fields{
		"pkg":      "go-loadtest-telemetry",
		"testName": l.cfg.TestName,
		"recorded": stats.Recorded,
		"sent":     stats.Sent,
		"dropped":  stats.Dropped,
	}).Info("Listener torn down")

	return err
}
