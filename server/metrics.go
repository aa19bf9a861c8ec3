package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	telemetry "github.com/darrensmithwtc/go-loadtest-telemetry"
	"github.com/gin-gonic/gin"
)

func (s *Server) handlePostMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}

		var req []telemetry.MetricBatch

		if err := json.Unmarshal(body, &req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, telemetry.APIError{
				Message: err.Error(),
			})
			return
		}

		if err := validateBatches(req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, telemetry.APIError{
				Message: err.Error(),
			})
			return
		}

		if s.relay != nil {
			s.relayBatches(c, body, req)
			return
		}

		c.JSON(http.StatusAccepted, telemetry.IngestResponse{
			RequestID: s.b.PushBatches(req),
		})
	}
}

// relayBatches forwards the request upstream and records the batches only if the origin accepted them.
func (s *Server) relayBatches(c *gin.Context, body []byte, req []telemetry.MetricBatch) {
	res, err := s.relay.forward(c.Writer, c.Request, body)
	if err != nil {
		return
	}

	if status := c.Writer.Status(); status < 200 || status >= 300 {
		return
	}

	var ingest telemetry.IngestResponse

	if err := json.Unmarshal(res, &ingest); err != nil || ingest.RequestID == "" {
		s.b.PushBatches(req)
	} else {
		s.b.PushBatchesWithID(ingest.RequestID, req)
	}
}

func (s *Server) handleGetPing() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	}
}

func validateBatches(batches []telemetry.MetricBatch) error {
	for i, batch := range batches {
		for j, metric := range batch.Metrics {
			if metric.Name == "" {
				return fmt.Errorf("batch %d metric %d: missing name", i, j)
			}

			if metric.Type != telemetry.MetricTypeGauge {
				return fmt.Errorf("batch %d metric %d: unsupported type %q", i, j, metric.Type)
			}
		}
	}

	return nil
}
