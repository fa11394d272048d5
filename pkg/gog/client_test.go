package gog

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"
)

func TestGetJSONAbsentOnNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	doc, err := c.GetJSON(context.Background(), srv.URL+"/missing")
	if err != nil {
		t.Fatalf("non-success status must not be an error: %v", err)
	}
	if doc != nil {
		t.Errorf("expected absence, got %v", doc)
	}
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	doc, err := c.GetJSON(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if doc == nil {
		t.Fatal("expected a document after retries")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	doc, err := c.GetJSON(context.Background(), srv.URL)
	if err != nil || doc != nil {
		t.Fatalf("403 should be absence: doc=%v err=%v", doc, err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", got)
	}
}

func TestGetCompressedJSON(t *testing.T) {
	plain := []byte(`{"version":2,"depots":[{"manifest":"abc"}]}`)
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(plain)
	zw.Close()
	compressed := buf.Bytes()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(compressed)
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	doc, raw, _, err := c.GetCompressedJSON(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("GetCompressedJSON: %v", err)
	}
	if !bytes.Equal(raw, compressed) {
		t.Error("raw bytes must be the verbatim compressed body")
	}
	if n, _ := doc.GetInt("version"); n != 2 {
		t.Errorf("parsed version = %d", n)
	}
}

func TestAuthorizationHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	c.Authorization = func(ctx context.Context) (string, error) { return "tok-123", nil }
	if _, err := c.GetJSON(context.Background(), srv.URL); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if got != "Bearer tok-123" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestGetRange(t *testing.T) {
	body := []byte("0123456789abcdef")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "main.bin", time.Time{}, bytes.NewReader(body))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	window, err := c.GetRange(context.Background(), srv.URL, 4, 7)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if string(window) != "4567" {
		t.Errorf("window = %q", window)
	}

	n, err := c.ContentLength(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("ContentLength: %v", err)
	}
	if n != int64(len(body)) {
		t.Errorf("ContentLength = %d, want %d", n, len(body))
	}
}
