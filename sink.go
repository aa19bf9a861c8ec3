package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// Sink accepts batches of metrics for delivery to the ingestion backend.
type Sink interface {
	// SendBatch delivers the batch, returning an error if it was not accepted.
	SendBatch(ctx context.Context, batch MetricBatch) error

	// Close releases any resources held by the sink.
	Close()
}

// httpSink posts batches to the ingestion API over HTTP.
type httpSink struct {
	rc *resty.Client

	// endpoint is the absolute URL batches are posted to.
	endpoint string
}

func (s *httpSink) SendBatch(ctx context.Context, batch MetricBatch) error {
	var ingest IngestResponse

	res, err := s.rc.R().
		SetContext(ctx).
		SetBody([]MetricBatch{batch}).
		SetResult(&ingest).
		Post(s.endpoint)

	// If we receive no response, the batch never reached the API.
	if res == nil || res.RawResponse == nil {
		if err == nil {
			err = errors.New("no response")
		}

		return fmt.Errorf("received no response from ingestion API: %w", err)
	}

	if err != nil {
		return err
	}

	return nil
}

func (s *httpSink) Close() {
	s.rc.GetClient().CloseIdleConnections()
}

// statusOf returns the HTTP status carried by an error returned from the HTTP sink, or zero.
func statusOf(err error) int {
	if apiErr := new(APIError); errors.As(err, apiErr) {
		return apiErr.Status
	}

	return 0
}
