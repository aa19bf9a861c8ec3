package server

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
)

// relay forwards accepted batches to a real ingestion endpoint, returning the upstream response.
type relay struct {
	origin    *url.URL
	transport http.RoundTripper
	debug     bool
}

func newRelay(origin string, transport http.RoundTripper) (*relay, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, err
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid relay origin %q", origin)
	}

	return &relay{
		origin:    u,
		transport: transport,
		debug:     os.Getenv("GO_LOADTEST_TELEMETRY_SERVER_LOGGER_ENABLED") != "",
	}, nil
}

// forward sends the request body to the origin, writing the upstream response to w.
// It returns whatever the origin wrote, decompressed if needed.
func (r *relay) forward(w http.ResponseWriter, req *http.Request, body []byte) ([]byte, error) {
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))

	buf := new(bytes.Buffer)

	r.newProxy().ServeHTTP(&writerWrapper{w, buf}, req)

	if strings.Contains(w.Header().Get("Content-Encoding"), "gzip") {
		return gzipDecode(buf.Bytes())
	}

	return buf.Bytes(), nil
}

func (r *relay) newProxy() *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = r.origin.Scheme
			req.URL.Host = r.origin.Host
			req.URL.Path = r.origin.Path
			req.Host = r.origin.Host
		},

		ModifyResponse: r.targetResponseModifier,
		ErrorHandler:   r.targetErrorHandler,

		Transport: r.transport,
	}
}

func (r *relay) targetResponseModifier(res *http.Response) error {
	if r.debug {
		fmt.Printf("RELAY RESP %d: %s %s\n", res.StatusCode, res.Request.Method, res.Request.URL)
	}

	return nil
}

func (r *relay) targetErrorHandler(rw http.ResponseWriter, req *http.Request, targetError error) {
	if r.debug {
		fmt.Printf("RELAY ERROR: %s %s: %v\n", req.Method, req.URL, targetError)
	}

	rw.WriteHeader(http.StatusBadGateway)
}

type writerWrapper struct {
	http.ResponseWriter

	buf *bytes.Buffer
}

func (w *writerWrapper) Write(b []byte) (int, error) {
	if _, err := w.buf.Write(b); err != nil {
		return 0, err
	}

	return w.ResponseWriter.Write(b)
}

func gzipDecode(b []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
