package backend

import (
	"sync"
	"time"

	telemetry "github.com/darrensmithwtc/go-loadtest-telemetry"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// Batch is a metric batch accepted by the backend.
type Batch struct {
	RequestID string
	Received  time.Time

	telemetry.MetricBatch
}

// Backend stores the state of the fake ingestion API.
type Backend struct {
	state *unsafeBackend
	lock  sync.RWMutex
}

type unsafeBackend struct {
	licenseKeys map[string]struct{}
	batches     []Batch
}

func New(licenseKeys ...string) *Backend {
	keys := make(map[string]struct{}, len(licenseKeys))

	for _, key := range licenseKeys {
		keys[key] = struct{}{}
	}

	return &Backend{
		state: &unsafeBackend{
			licenseKeys: keys,
		},
	}
}

func (b *Backend) AddLicenseKey(key string) {
	writeBackend(b, func(b *unsafeBackend) {
		b.licenseKeys[key] = struct{}{}
	})
}

func (b *Backend) VerifyLicenseKey(key string) bool {
	return readBackendRet(b, func(b *unsafeBackend) bool {
		_, ok := b.licenseKeys[key]
		return ok
	})
}

// PushBatches stores the batches of a single request and returns the request ID assigned to it.
func (b *Backend) PushBatches(batches []telemetry.MetricBatch) string {
	requestID := uuid.NewString()

	b.PushBatchesWithID(requestID, batches)

	return requestID
}

// PushBatchesWithID stores the batches of a single request under a request ID assigned elsewhere.
func (b *Backend) PushBatchesWithID(requestID string, batches []telemetry.MetricBatch) {
	writeBackend(b, func(b *unsafeBackend) {
		for _, batch := range batches {
			b.batches = append(b.batches, Batch{
				RequestID:   requestID,
				Received:    time.Now(),
				MetricBatch: batch,
			})
		}
	})
}

// GetBatches returns every accepted batch, in the order received.
func (b *Backend) GetBatches() []Batch {
	return readBackendRet(b, func(b *unsafeBackend) []Batch {
		return slices.Clone(b.batches)
	})
}

// GetMetrics returns the metrics of every accepted batch, in the order received.
func (b *Backend) GetMetrics() []telemetry.Metric {
	return readBackendRet(b, func(b *unsafeBackend) []telemetry.Metric {
		var metrics []telemetry.Metric

		for _, batch := range b.batches {
			metrics = append(metrics, batch.Metrics...)
		}

		return metrics
	})
}

func writeBackend(b *Backend, fn func(*unsafeBackend)) {
	b.lock.Lock()
	defer b.lock.Unlock()

	fn(b.state)
}

func readBackendRet[T any](b *Backend, fn func(*unsafeBackend) T) T {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return fn(b.state)
}
