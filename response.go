package telemetry

import (
	"fmt"

	"github.com/go-resty/resty/v2"
)

// APIError is the error body returned by the ingestion API.
type APIError struct {
	Status    int    `json:"-"`
	RequestID string `json:"requestId"`
	Message   string `json:"error"`
}

func (err APIError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("request %v rejected", err.RequestID)
	}

	return err.Message
}

// IngestResponse is the body returned by the ingestion API when a batch is accepted.
type IngestResponse struct {
	RequestID string `json:"requestId"`
}

func catchAPIError(_ *resty.Client, res *resty.Response) error {
	if !res.IsError() {
		return nil
	}

	apiErr := APIError{Status: res.StatusCode()}

	if bodyErr, ok := res.Error().(*APIError); ok && bodyErr != nil {
		apiErr.RequestID = bodyErr.RequestID
		apiErr.Message = bodyErr.Message
	}

	if apiErr.Message == "" {
		apiErr.Message = res.Status()
	}

	return fmt.Errorf("%v: %w", res.StatusCode(), apiErr)
}
