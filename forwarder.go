package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FailureObserver is called with every batch that could not be delivered.
// Observers run while the forwarder is locked and must not call back into it.
type FailureObserver func(*SendFailure)

// Stats is a snapshot of a forwarder's counters.
// Recorded always equals Sent + Dropped + Pending.
type Stats struct {
	Recorded      int
	Sent          int
	Dropped       int
	Pending       int
	Flushes       int
	FailedFlushes int
}

// Forwarder accumulates observations and sends them to a sink in batches.
// A batch is sent when it reaches the batch size, when Flush is called, or when the forwarder is closed.
// Batches that fail to send are dropped.
type Forwarder struct {
	sink        Sink
	batchSize   int
	common      Attributes
	sendTimeout time.Duration

	// batch holds the observations recorded since the last flush.
	batch  []Observation
	closed bool
	stats  Stats
	lock   sync.Mutex

	metrics *forwarderMetrics

	observers    []FailureObserver
	observerLock sync.RWMutex
}

// New builds a forwarder from the given options.
// It returns a *ConfigurationError if the options do not describe a usable forwarder.
func New(opts ...Option) (*Forwarder, error) {
	builder := newForwarderBuilder()

	for _, opt := range opts {
		opt.config(builder)
	}

	return builder.build()
}

func newForwarder(sink Sink, batchSize int, common Attributes, sendTimeout time.Duration, metrics *forwarderMetrics) *Forwarder {
	return &Forwarder{
		sink:        sink,
		batchSize:   batchSize,
		common:      common,
		sendTimeout: sendTimeout,
		batch:       make([]Observation, 0, batchSize),
		metrics:     metrics,
	}
}

// AddFailureObserver registers a function to be called whenever a batch is dropped.
func (f *Forwarder) AddFailureObserver(observer FailureObserver) {
	f.observerLock.Lock()
	defer f.observerLock.Unlock()

	f.observers = append(f.observers, observer)
}

// Record adds an observation to the current batch.
// If the batch reaches the batch size, it is sent before Record returns.
// A failure to send that batch is logged and reported to failure observers, not returned.
func (f *Forwarder) Record(ctx context.Context, obs Observation) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.closed {
		return ErrForwarderClosed
	}

	f.batch = append(f.batch, obs)
	f.stats.Recorded++
	f.metrics.observeRecord()

	if len(f.batch) >= f.batchSize {
		_ = f.flush(ctx)
	}

	return nil
}

// Flush sends the current batch to the sink.
// The batch is discarded whether or not it was delivered; on failure a *SendFailure is returned.
// Flushing an empty batch does nothing.
func (f *Forwarder) Flush(ctx context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.closed {
		return ErrForwarderClosed
	}

	return f.flush(ctx)
}

// Close sends any pending observations and releases the sink.
// Calling Close more than once is safe; later calls do nothing.
func (f *Forwarder) Close(ctx context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true

	defer f.sink.Close()

	return f.flush(ctx)
}

// Stats returns a snapshot of the forwarder's counters.
func (f *Forwarder) Stats() Stats {
	f.lock.Lock()
	defer f.lock.Unlock()

	stats := f.stats
	stats.Pending = len(f.batch)

	return stats
}

// flush must be called with the lock held.
func (f *Forwarder) flush(ctx context.Context) error {
	if len(f.batch) == 0 {
		return nil
	}

	batch := f.batch

	f.batch = make([]Observation, 0, f.batchSize)

	ctx, cancel := context.WithTimeout(ctx, f.sendTimeout)
	defer cancel()

	start := time.Now()

	err := f.sink.SendBatch(ctx, newMetricBatch(f.common, batch))

	f.metrics.observeFlush(len(batch), time.Since(start), err)
	f.stats.Flushes++

	if err != nil {
		f.stats.FailedFlushes++
		f.stats.Dropped += len(batch)

		failure := &SendFailure{
			Dropped: len(batch),
			Status:  statusOf(err),
			Err:     err,
		}

		logrus.WithFields(logrus.Fields{
			"pkg":    "go-loadtest-telemetry",
			"status": failure.Status,
		}).WithError(err).Error("Failed to send batch")

		logrus.WithFields(logrus.Fields{
			"pkg":     "go-loadtest-telemetry",
			"dropped": failure.Dropped,
		}).Warn("Dropping observations")

		f.notifyFailure(failure)

		return failure
	}

	f.stats.Sent += len(batch)

	logrus.WithFields(logrus.Fields{
		"pkg":  "go-loadtest-telemetry",
		"size": len(batch),
	}).Debug("Sent batch")

	return nil
}

func (f *Forwarder) notifyFailure(failure *SendFailure) {
	f.observerLock.RLock()
	defer f.observerLock.RUnlock()

	for _, observer := range f.observers {
		observer(failure)
	}
}
