package server

import (
	"bytes"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	telemetry "github.com/darrensmithwtc/go-loadtest-telemetry"
	"github.com/gin-gonic/gin"
)

func initRouter(s *Server) {
	// The ingestion endpoint requires a license key and a supported agent.
	if metric := s.r.Group(MetricPath, s.requireLicenseKey(), s.requireValidAgentVersion(), s.handleRateLimit()); metric != nil {
		metric.POST("", s.handlePostMetrics())
	}

	// Test routes don't need authentication.
	if tests := s.r.Group("/tests"); tests != nil {
		tests.GET("/ping", s.handleGetPing())
	}
}

func (s *Server) requireLicenseKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Header.Get("X-License-Key")
		if key == "" {
			key = c.Request.Header.Get("Api-Key")
		}

		if key == "" || !s.b.VerifyLicenseKey(key) {
			c.AbortWithStatusJSON(http.StatusForbidden, telemetry.APIError{
				Message: "invalid license key",
			})
		}
	}
}

func (s *Server) requireValidAgentVersion() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok := s.validateAgentVersion(c.Request.Header.Get("User-Agent")); !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, telemetry.APIError{
				Message: "This version of the agent is no longer supported, please update to continue sending metrics",
			})
		}
	}
}

func (s *Server) handleRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.rateLimit == nil {
			return
		}

		if wait := s.rateLimit.exceeded(); wait > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatus(http.StatusTooManyRequests)
		}
	}
}

func (s *Server) logCalls() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := io.ReadAll(c.Request.Body)
		if err != nil {
			panic(err)
		} else {
			c.Request.Body = io.NopCloser(bytes.NewReader(req))
		}

		res, err := newBodyWriter(c.Writer)
		if err != nil {
			panic(err)
		} else {
			c.Writer = res
		}

		c.Next()

		s.callWatchersLock.RLock()
		defer s.callWatchersLock.RUnlock()

		for _, call := range s.callWatchers {
			if call.isWatching(c.Request.URL.Path) {
				call.publish(Call{
					URL:    c.Request.URL,
					Method: c.Request.Method,
					Status: c.Writer.Status(),

					RequestHeader: c.Request.Header,
					RequestBody:   req,

					ResponseHeader: c.Writer.Header(),
					ResponseBody:   res.bytes(),
				})
			}
		}
	}
}

func (s *Server) handleOffline() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.isOffline() {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
	}
}

// validateAgentVersion checks a user agent of the form "loadtest-telemetry/1.2.3" against the minimum version.
func (s *Server) validateAgentVersion(userAgent string) bool {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()

	if s.minAgentVersion == nil {
		return true
	}

	split := strings.Split(userAgent, "/")

	if len(split) != 2 || split[0] != telemetry.AgentName {
		return false
	}

	version, err := semver.NewVersion(split[1])
	if err != nil {
		return false
	}

	if version.LessThan(s.minAgentVersion) {
		return false
	}

	return true
}

type bodyWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func newBodyWriter(w gin.ResponseWriter) (*bodyWriter, error) {
	if w == nil {
		return nil, errors.New("response writer is nil")
	}

	return &bodyWriter{
		ResponseWriter: w,

		buf: &bytes.Buffer{},
	}, nil
}

func (w bodyWriter) Write(b []byte) (int, error) {
	if n, err := w.buf.Write(b); err != nil {
		return n, err
	}

	return w.ResponseWriter.Write(b)
}

func (w bodyWriter) bytes() []byte {
	return w.buf.Bytes()
}
