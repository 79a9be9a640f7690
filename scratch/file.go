package scratch

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// File is a scratch file exclusively owned by one caller.
type File struct {
	f     *os.File
	path  string
	size  int64
	store *Store

	mu       sync.Mutex
	released bool
}

// Path returns the current path of the file.
func (f *File) Path() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.path
}

// Size returns the length of the written content.
func (f *File) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Write appends p to the file.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return 0, os.ErrClosed
	}
	n, err := f.f.Write(p)
	if pos, seekErr := f.f.Seek(0, io.SeekCurrent); seekErr == nil {
		f.size = max(f.size, pos)
	}
	return n, err
}

// Seek moves the write offset, so encoders that patch headers can use File.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return 0, os.ErrClosed
	}
	return f.f.Seek(offset, whence)
}

// Close flushes and closes the handle. The file stays on disk until Release.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeLocked()
}

// SetExt renames the file so that it ends in ext (e.g. ".mp3").
func (f *File) SetExt(ext string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return fmt.Errorf("scratch: file already released")
	}
	if strings.HasSuffix(f.path, ext) {
		return nil
	}
	dot := strings.LastIndexByte(f.path, '.')
	slash := strings.LastIndexByte(f.path, os.PathSeparator)
	base := f.path
	if dot > slash {
		base = f.path[:dot]
	}
	next := base + ext
	if err := os.Rename(f.path, next); err != nil {
		return fmt.Errorf("scratch: rename: %w", err)
	}
	f.path = next
	return nil
}

// Release closes and removes the file. It is safe to call more than once.
func (f *File) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return nil
	}
	f.released = true
	f.store.active.Add(-1)

	closeErr := f.closeLocked()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("scratch: remove %s: %w", f.path, err)
	}
	return closeErr
}

func (f *File) closeLocked() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}
