package download

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"
)

var errIdleTimeout = errors.New("no data received within read timeout")

// idleReader cancels the transfer when a single Read blocks longer than
// timeout. Time spent by the consumer between reads is not counted.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func newIdleReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *idleReader {
	ir := &idleReader{r: r, timeout: timeout}
	ir.timer = time.AfterFunc(timeout, func() {
		ir.fired.Store(true)
		cancel()
	})
	ir.timer.Stop()
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	if ir.fired.Load() {
		return 0, errIdleTimeout
	}
	ir.timer.Reset(ir.timeout)
	n, err := ir.r.Read(p)
	ir.timer.Stop()
	if err != nil && err != io.EOF && ir.fired.Load() {
		return n, errIdleTimeout
	}
	return n, err
}

func (ir *idleReader) stop() {
	ir.timer.Stop()
}
