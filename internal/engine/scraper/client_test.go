package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient returns a client pointed at plain HTTP so httptest servers
// work without the TLS fingerprint transport.
func newTestClient(maxRetries int) *Client {
	c := NewClient(ClientOptions{
		Timeout:    5 * time.Second,
		MaxRetries: maxRetries,
	})
	c.http.Transport = http.DefaultTransport
	return c
}

func TestClientFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request without user agent")
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	body, err := newTestClient(3).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "<html>ok</html>" {
		t.Errorf("body = %q", body)
	}
}

func TestClientFetch_NotFoundIsImmediate(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(3).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("404 retried: %d requests, want 1", got)
	}
}

func TestClientFetch_RateLimitClassified(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		_, err := newTestClient(2).Fetch(ctx, srv.URL)
		cancel()
		srv.Close()

		// The backoff outlives the context; either the classified error
		// or the context error may surface, but never a success.
		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}
		var rl *RateLimitError
		if !errors.As(err, &rl) && !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("status %d: unexpected error %v", status, err)
		}
	}
}

func TestClientFetch_ContextCancelDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := newTestClient(3).Fetch(ctx, srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	// Cancellation must interrupt the first backoff, which is far longer
	// than a second.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %s, backoff was not interrupted", elapsed)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &RateLimitError{StatusCode: 429}, true},
		{"server error", &StatusError{StatusCode: 503}, true},
		{"client error", &StatusError{StatusCode: 400}, false},
		{"not found", ErrNotFound, false},
		{"timeout", &url.Error{Op: "Get", URL: "x", Err: timeoutErr{}}, true},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := retryable(tc.err); got != tc.want {
				t.Errorf("retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

var _ net.Error = timeoutErr{}
