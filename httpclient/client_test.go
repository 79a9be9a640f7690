package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/diarizer/resilience"
)

func newClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestClient_Do_GET(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("expected /health, got %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "diarizer-test" {
			t.Errorf("expected user agent, got %q", ua)
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL, UserAgent: "diarizer-test"})
	resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/health"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.IsSuccess() || !strings.Contains(string(resp.Body), "ok") {
		t.Errorf("unexpected response %d %s", resp.StatusCode, resp.Body)
	}
}

func TestClient_Do_JSONBodyAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer hf_secret" {
			t.Errorf("expected bearer auth, got %q", auth)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != "pyannote/speaker-diarization-3.1" {
			t.Errorf("unexpected body %v", body)
		}
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL, Auth: BearerAuth("hf_secret")})
	_, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "pipeline/load",
		Body:   map[string]string{"model": "pyannote/speaker-diarization-3.1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_Do_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		code      ErrorCode
		retryable bool
		text      string
	}{
		{404, ErrCodeNotFound, false, "404 Not Found"},
		{403, ErrCodeAuth, false, "403 Forbidden"},
		{422, ErrCodeValidation, false, "422 Unprocessable Entity"},
		{429, ErrCodeRateLimit, true, "429 Too Many Requests"},
		{503, ErrCodeServer, true, "503 Service Unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("upstream says no"))
			}))
			defer srv.Close()

			c := newClient(t, Config{})
			resp, err := c.Do(context.Background(), Request{Path: srv.URL})
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if e.Code != tt.code || e.Retryable != tt.retryable {
				t.Errorf("got code=%s retryable=%v", e.Code, e.Retryable)
			}
			if e.Error() != tt.text {
				t.Errorf("expected %q, got %q", tt.text, e.Error())
			}
			if resp == nil || string(resp.Body) != "upstream says no" {
				t.Errorf("expected response body to be returned alongside error")
			}
		})
	}
}

func TestClient_Do_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newClient(t, Config{Timeout: 50 * time.Millisecond})
	_, err := c.Do(context.Background(), Request{Path: srv.URL})
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("timeouts should be retryable")
	}
}

func TestClient_Do_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := newClient(t, Config{Timeout: time.Second})
	_, err := c.Do(context.Background(), Request{Path: addr + "/a.mp3?sig=secret"})
	if !IsConnection(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("url leaked into message: %q", err.Error())
	}
}

func TestClient_Do_MaxResponseSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	c := newClient(t, Config{MaxResponseSize: 1024})
	_, err := c.Do(context.Background(), Request{Path: srv.URL})
	if !IsTooLarge(err) {
		t.Fatalf("expected too-large error, got %v", err)
	}

	exact := newClient(t, Config{MaxResponseSize: 2048})
	resp, err := exact.Do(context.Background(), Request{Path: srv.URL})
	if err != nil || len(resp.Body) != 2048 {
		t.Fatalf("expected exactly-at-limit body to pass, got %v", err)
	}
}

func TestClient_DoStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3 audio bytes"))
	}))
	defer srv.Close()

	c := newClient(t, Config{})
	stream, err := c.DoStream(context.Background(), Request{Path: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "ID3 audio bytes" {
		t.Errorf("unexpected body %q", data)
	}
	if stream.Headers["Content-Type"] != "audio/mpeg" {
		t.Errorf("unexpected headers %v", stream.Headers)
	}
}

func TestClient_DoStream_StatusAndSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", "4096")
		w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	c := newClient(t, Config{MaxResponseSize: 1024})
	if _, err := c.DoStream(context.Background(), Request{Path: srv.URL + "/missing"}); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := c.DoStream(context.Background(), Request{Path: srv.URL + "/big"}); !IsTooLarge(err) {
		t.Errorf("expected too large from Content-Length, got %v", err)
	}
}

func TestClient_Retry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ready"))
	}))
	defer srv.Close()

	retry := DefaultRetryConfig()
	retry.InitialBackoff = time.Millisecond
	c := newClient(t, Config{Retry: retry})
	resp, err := c.Do(context.Background(), Request{Path: srv.URL})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if string(resp.Body) != "ready" || atomic.LoadInt32(&calls) != 3 {
		t.Errorf("unexpected result body=%q calls=%d", resp.Body, calls)
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path == "/bad-request" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := DefaultCircuitBreakerConfig("sidecar")
	cb.MaxFailures = 2
	c := newClient(t, Config{BaseURL: srv.URL, CircuitBreaker: cb})

	for i := 0; i < 3; i++ {
		c.Do(context.Background(), Request{Path: "/bad-request"})
	}
	if c.CircuitState() != resilience.StateClosed {
		t.Fatalf("4xx must not open the breaker, got %s", c.CircuitState())
	}

	c.Do(context.Background(), Request{Path: "/diarize"})
	c.Do(context.Background(), Request{Path: "/diarize"})
	if c.CircuitState() != resilience.StateOpen {
		t.Fatalf("expected open breaker, got %s", c.CircuitState())
	}

	before := atomic.LoadInt32(&calls)
	_, err := c.Do(context.Background(), Request{Path: "/diarize"})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("expected circuit open error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != before {
		t.Error("open breaker must not reach the server")
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Timeout != defaultTimeout || cfg.MaxResponseSize != defaultMaxResponseSize || cfg.Name != "http" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}
