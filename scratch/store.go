package scratch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kbukum/diarizer/component"
	"github.com/kbukum/diarizer/logger"
)

// Store creates and tracks scratch files in a single directory.
type Store struct {
	dir      string
	prefix   string
	sweepAge time.Duration
	log      *logger.Logger

	active atomic.Int64
}

var _ component.Component = (*Store)(nil)

// New creates a Store, creating the directory if needed.
func New(cfg Config, log *logger.Logger) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dir := cfg.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("scratch: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("scratch: create dir: %w", err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Store{
		dir:      abs,
		prefix:   cfg.Prefix,
		sweepAge: cfg.SweepAge,
		log:      log.WithComponent("scratch"),
	}, nil
}

// Dir returns the absolute scratch directory.
func (s *Store) Dir() string { return s.dir }

// Active returns the number of files created and not yet released.
func (s *Store) Active() int64 { return s.active.Load() }

// Create opens a new uniquely named file with the given suffix.
func (s *Store) Create(suffix string) (*File, error) {
	f, err := os.CreateTemp(s.dir, s.prefix+"*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("scratch: create file: %w", err)
	}
	s.active.Add(1)
	return &File{f: f, path: f.Name(), store: s}, nil
}

// With creates a file, passes it to fn and releases it when fn returns or
// panics. A release failure is logged, never returned in place of fn's error.
func (s *Store) With(ctx context.Context, suffix string, fn func(ctx context.Context, f *File) error) error {
	f, err := s.Create(suffix)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := f.Release(); rerr != nil {
			s.log.WithContext(ctx).Warn("failed to release scratch file", map[string]interface{}{
				"path":  f.Path(),
				"error": rerr.Error(),
			})
		}
	}()
	return fn(ctx, f)
}

// Sweep removes files carrying the store prefix that were last modified
// before olderThan. It returns the number of files removed.
func (s *Store) Sweep(olderThan time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("scratch: list dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), s.prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(olderThan) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			s.log.Warn("failed to sweep scratch file", map[string]interface{}{"file": e.Name(), "error": err.Error()})
			continue
		}
		removed++
	}
	return removed, nil
}

// --- component.Component ---

// Name returns the component name.
func (s *Store) Name() string { return "scratch" }

// Start sweeps stale files when SweepAge is set.
func (s *Store) Start(_ context.Context) error {
	if s.sweepAge <= 0 {
		return nil
	}
	n, err := s.Sweep(time.Now().Add(-s.sweepAge))
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Info("swept stale scratch files", map[string]interface{}{"count": n, "dir": s.dir})
	}
	return nil
}

// Stop reports files still held by in-flight requests.
func (s *Store) Stop(_ context.Context) error {
	if n := s.active.Load(); n > 0 {
		s.log.Warn("scratch files still active at shutdown", map[string]interface{}{"count": n})
	}
	return nil
}

// Health checks that the directory is still writable.
func (s *Store) Health(_ context.Context) component.Health {
	f, err := os.CreateTemp(s.dir, s.prefix+"probe-*")
	if err != nil {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}
