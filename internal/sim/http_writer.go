// Writer delivering snapshots to an HTTP collector
package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"geoactor-sim/internal/telemetry"
)

// DeliveryError reports a snapshot the collector did not accept. It is never
// fatal to an actor.
type DeliveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("deliver to %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("deliver to %s: %v", e.URL, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// HTTPWriter POSTs each snapshot as a JSON object to the listener URL.
type HTTPWriter struct {
	url     string
	client  *http.Client
	gzip    bool
	limiter *rate.Limiter
}

// HTTPOption customizes an HTTPWriter.
type HTTPOption func(*HTTPWriter)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) HTTPOption { return func(w *HTTPWriter) { w.client = c } }

// WithGzip compresses request bodies.
func WithGzip(on bool) HTTPOption { return func(w *HTTPWriter) { w.gzip = on } }

// WithRateLimit caps the request rate across all actors sharing the writer.
// A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(w *HTTPWriter) {
		if rps <= 0 {
			w.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewHTTPWriter creates a writer for the collector at url.
func NewHTTPWriter(url string, opts ...HTTPOption) *HTTPWriter {
	w := &HTTPWriter{
		url:    url,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write delivers one snapshot. Any transport failure or non-2xx response is
// returned as a *DeliveryError.
func (w *HTTPWriter) Write(ctx context.Context, s telemetry.Snapshot) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return &DeliveryError{URL: w.url, Err: err}
		}
	}
	body, err := w.encode(s)
	if err != nil {
		return &DeliveryError{URL: w.url, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{URL: w.url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if w.gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return &DeliveryError{URL: w.url, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{URL: w.url, StatusCode: resp.StatusCode}
	}
	return nil
}

func (w *HTTPWriter) encode(s telemetry.Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	if !w.gzip {
		return data, nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
