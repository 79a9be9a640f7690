package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/kbukum/diarizer/errors"
	"github.com/kbukum/diarizer/httpclient"
	"github.com/kbukum/diarizer/logger"
	"github.com/kbukum/diarizer/util"
)

// Result describes a completed download.
type Result struct {
	// Bytes is the number of bytes written to the destination.
	Bytes int64
	// ContentType is the upstream Content-Type header, if any. Informational only.
	ContentType string
	// Elapsed is the wall time of the transfer.
	Elapsed time.Duration
}

// Downloader streams remote files into local writers.
type Downloader struct {
	cfg    Config
	client *httpclient.Client
	log    *logger.Logger
}

// New creates a Downloader.
func New(cfg Config, log *logger.Logger) (*Downloader, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := httpclient.New(httpclient.Config{
		Name:            "download",
		Timeout:         cfg.Timeout,
		MaxResponseSize: cfg.MaxSizeBytes(),
		UserAgent:       cfg.UserAgent,
		Headers:         map[string]string{"Accept": "audio/*, */*;q=0.5"},
	})
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Downloader{cfg: cfg, client: client, log: log.WithComponent("download")}, nil
}

// Config returns the effective configuration.
func (d *Downloader) Config() Config { return d.cfg }

// Fetch downloads rawURL into dst. Errors are DOWNLOAD_TIMEOUT or
// DOWNLOAD_FAILED *errors.AppError values.
func (d *Downloader) Fetch(ctx context.Context, rawURL string, dst io.Writer) (*Result, error) {
	start := time.Now()
	log := d.log.WithContext(ctx)

	var cancelTotal context.CancelFunc = func() {}
	if d.cfg.MaxDuration > 0 {
		ctx, cancelTotal = context.WithTimeout(ctx, d.cfg.MaxDuration)
	}
	defer cancelTotal()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Debug("download started", map[string]interface{}{logger.FieldURL: util.RedactURL(rawURL)})

	stream, err := d.client.DoStream(ctx, httpclient.Request{Method: http.MethodGet, Path: rawURL})
	if err != nil {
		return nil, d.classify(ctx, err)
	}
	defer stream.Close()

	body := newIdleReader(stream.Body, d.cfg.Timeout, cancel)
	defer body.stop()

	w := &writeTracker{w: dst}
	n, err := io.Copy(w, body)
	if err != nil {
		log.Debug("download aborted", map[string]interface{}{"bytes": n, logger.FieldError: err.Error()})
		if w.err != nil {
			return nil, apperrors.Internal(fmt.Errorf("write download: %w", w.err))
		}
		return nil, d.classify(ctx, err)
	}

	res := &Result{Bytes: n, ContentType: stream.Headers["Content-Type"], Elapsed: time.Since(start)}
	log.Debug("download finished", map[string]interface{}{
		"bytes":              res.Bytes,
		"content_type":       res.ContentType,
		logger.FieldDuration: res.Elapsed.Milliseconds(),
	})
	return res, nil
}

func (d *Downloader) classify(ctx context.Context, err error) *apperrors.AppError {
	if errors.Is(err, errIdleTimeout) || httpclient.IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.DownloadTimeout(err)
	}
	return apperrors.DownloadFailed(err)
}

// writeTracker remembers destination errors so they are not reported as
// download failures.
type writeTracker struct {
	w   io.Writer
	err error
}

func (t *writeTracker) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
