package sim

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

func TestHTTPWriterPostsJSON(t *testing.T) {
	var got map[string]any
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewHTTPWriter(srv.URL)
	if err := w.Write(context.Background(), sampleSnapshot(123456, time.Unix(1, 0))); err != nil {
		t.Fatalf("write: %v", err)
	}
	if contentType != "application/json" {
		t.Fatalf("content type = %q", contentType)
	}
	if got["uuid"] != float64(123456) || got["location"] != "41.411338,2.226438" || got["age"] != float64(30) {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestHTTPWriterNon2xxIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewHTTPWriter(srv.URL).Write(context.Background(), sampleSnapshot(1, time.Unix(0, 0)))
	var de *DeliveryError
	if !errors.As(err, &de) || de.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected DeliveryError with 503, got %v", err)
	}
}

func TestHTTPWriterUnreachableIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewHTTPWriter(url).Write(context.Background(), sampleSnapshot(1, time.Unix(0, 0)))
	var de *DeliveryError
	if !errors.As(err, &de) || de.Err == nil {
		t.Fatalf("expected transport DeliveryError, got %v", err)
	}
}

func TestHTTPWriterGzip(t *testing.T) {
	var encoding string
	var uuid float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoding = r.Header.Get("Content-Encoding")
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			t.Errorf("gzip reader: %v", err)
			return
		}
		body, _ := io.ReadAll(zr)
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		uuid, _ = m["uuid"].(float64)
	}))
	defer srv.Close()

	if err := NewHTTPWriter(srv.URL, WithGzip(true)).Write(context.Background(), sampleSnapshot(777777, time.Unix(0, 0))); err != nil {
		t.Fatalf("write: %v", err)
	}
	if encoding != "gzip" || uuid != 777777 {
		t.Fatalf("encoding %q uuid %v", encoding, uuid)
	}
}

func TestHTTPWriterRateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	w := NewHTTPWriter(srv.URL, WithRateLimit(0.001, 1))
	if err := w.Write(context.Background(), sampleSnapshot(1, time.Unix(0, 0))); err != nil {
		t.Fatalf("first write: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := w.Write(ctx, sampleSnapshot(1, time.Unix(0, 0)))
	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected limiter DeliveryError, got %v", err)
	}
}
