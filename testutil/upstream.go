package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// Upstream is an httptest server standing in for the host of an audio URL.
type Upstream struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	hits   map[string]int
}

// NewUpstream starts a server that is closed at test cleanup.
// Unregistered paths answer 404.
func NewUpstream(t testing.TB) *Upstream {
	t.Helper()
	u := &Upstream{
		routes: make(map[string]http.HandlerFunc),
		hits:   make(map[string]int),
	}
	u.Server = httptest.NewServer(http.HandlerFunc(u.dispatch))
	t.Cleanup(u.Server.Close)
	return u
}

func (u *Upstream) dispatch(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	h, ok := u.routes[r.URL.Path]
	u.hits[r.URL.Path]++
	u.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

// Handle registers an arbitrary handler for path.
func (u *Upstream) Handle(path string, h http.HandlerFunc) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.routes[path] = h
}

// Serve answers path with body.
func (u *Upstream) Serve(path, contentType string, body []byte) {
	u.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		_, _ = w.Write(body)
	})
}

// Fail answers path with status.
func (u *Upstream) Fail(path string, status int) {
	u.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, http.StatusText(status), status)
	})
}

// Stall never answers path; the handler returns once the client goes away.
func (u *Upstream) Stall(path string) {
	u.Handle(path, func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
}

// Trickle sends headers at once, then body in chunks separated by gap.
func (u *Upstream) Trickle(path string, body []byte, chunk int, gap time.Duration) {
	u.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for off := 0; off < len(body); off += chunk {
			end := min(off+chunk, len(body))
			if _, err := w.Write(body[off:end]); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			select {
			case <-time.After(gap):
			case <-r.Context().Done():
				return
			}
		}
	})
}

// URL returns the absolute URL for path.
func (u *Upstream) URL(path string) string {
	return u.Server.URL + path
}

// Hits returns how many requests path has received.
func (u *Upstream) Hits(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[path]
}
