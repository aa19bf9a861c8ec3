package telemetry

import (
	"errors"
	"fmt"
)

// ErrForwarderClosed is returned when observations are recorded on a closed forwarder.
var ErrForwarderClosed = errors.New("forwarder is closed")

// ConfigurationError is returned when a forwarder or listener cannot be built from its configuration.
// The forwarder is unusable until it is built again with a valid configuration.
type ConfigurationError struct {
	Err error
}

func (err *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", err.Err)
}

func (err *ConfigurationError) Unwrap() error {
	return err.Err
}

// SendFailure is returned when a batch could not be delivered to the sink.
// The observations of the batch are dropped; they are never retried.
type SendFailure struct {
	// Dropped is the number of observations lost with the batch.
	Dropped int

	// Status is the HTTP status returned by the sink, or zero if no response was received.
	Status int

	Err error
}

func (err *SendFailure) Error() string {
	if err.Status != 0 {
		return fmt.Sprintf("failed to send batch of %d observations (status %d): %v", err.Dropped, err.Status, err.Err)
	}

	return fmt.Sprintf("failed to send batch of %d observations: %v", err.Dropped, err.Err)
}

func (err *SendFailure) Unwrap() error {
	return err.Err
}
