package analysis_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/diarizer/analysis"
	"github.com/kbukum/diarizer/audio"
	"github.com/kbukum/diarizer/diarization"
	"github.com/kbukum/diarizer/diarization/energy"
	"github.com/kbukum/diarizer/download"
	apperrors "github.com/kbukum/diarizer/errors"
	"github.com/kbukum/diarizer/logger"
	"github.com/kbukum/diarizer/scratch"
	"github.com/kbukum/diarizer/testutil"
	"github.com/kbukum/diarizer/testutil/fixtures"
)

type stubModel struct {
	mu       sync.Mutex
	calls    int
	segments []diarization.Segment
	err      error
	before   func()
	ctxErr   error
	rate     int
	frames   int
}

func (s *stubModel) Name() string { return "stub" }

func (s *stubModel) Diarize(ctx context.Context, req diarization.Request) (*diarization.Response, error) {
	if s.before != nil {
		s.before()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.ctxErr = ctx.Err()
	s.rate = req.Waveform.SampleRate
	s.frames = req.Waveform.Frames()
	if s.err != nil {
		return nil, s.err
	}
	return &diarization.Response{Segments: s.segments}, nil
}

type harness struct {
	svc      *analysis.Service
	store    *scratch.Store
	upstream *testutil.Upstream
}

func newHarness(t *testing.T, model analysis.Diarizer) *harness {
	t.Helper()
	return newHarnessWithLogger(t, model, logger.NewDefault("test"))
}

func newHarnessWithLogger(t *testing.T, model analysis.Diarizer, log *logger.Logger) *harness {
	t.Helper()

	store, err := scratch.New(scratch.Config{Dir: t.TempDir()}, log)
	if err != nil {
		t.Fatal(err)
	}
	dl, err := download.New(download.Config{Timeout: 300 * time.Millisecond, MaxSize: "8MB"}, log)
	if err != nil {
		t.Fatal(err)
	}
	svc := analysis.NewService(analysis.Deps{
		Downloader: dl,
		Store:      store,
		Validator:  audio.NewValidator(audio.Config{MinDuration: time.Second}),
		Model:      model,
		Logger:     log,
	})
	return &harness{svc: svc, store: store, upstream: testutil.NewUpstream(t)}
}

// assertClean checks that no scratch file outlives the request.
func (h *harness) assertClean(t *testing.T) {
	t.Helper()
	if n := h.store.Active(); n != 0 {
		t.Errorf("active scratch files = %d", n)
	}
	entries, err := os.ReadDir(h.store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir not empty: %d entries", len(entries))
	}
}

func TestAnalyze_Success(t *testing.T) {
	model := &stubModel{segments: []diarization.Segment{
		{Speaker: "SPEAKER_01", Start: 2.5049, End: 3.999},
		{Speaker: "SPEAKER_00", Start: 0.031, End: 1.006},
		{Speaker: "SPEAKER_01", Start: 2.5049, End: 3.999},
	}}
	h := newHarness(t, model)
	h.upstream.Serve("/talk.wav", "audio/wav", fixtures.WAV(t, fixtures.Tone(2*time.Second, 16000, 1, 220)))

	ctx := logger.ContextWithRequestID(context.Background(), "req-1")
	res, err := h.svc.Analyze(ctx, h.upstream.URL("/talk.wav"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.RequestID != "req-1" {
		t.Errorf("RequestID = %q", res.RequestID)
	}

	want := []analysis.Segment{
		{Speaker: "SPEAKER_01", Start: 2.5, End: 4},
		{Speaker: "SPEAKER_00", Start: 0.03, End: 1.01},
		{Speaker: "SPEAKER_01", Start: 2.5, End: 4},
	}
	if len(res.Segments) != len(want) {
		t.Fatalf("segments = %+v", res.Segments)
	}
	for i := range want {
		if res.Segments[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, res.Segments[i], want[i])
		}
	}
	if model.rate != 16000 {
		t.Errorf("model got sample rate %d", model.rate)
	}
	h.assertClean(t)
}

func TestAnalyze_MP3(t *testing.T) {
	tests := []struct {
		name       string
		body       []byte
		wantFrames int
	}{
		{"complete", fixtures.SpeechMP3(), fixtures.SpeechMP3Samples},
		{"truncated final frame", fixtures.TruncatedMP3(), fixtures.SpeechMP3Samples - fixtures.MP3FrameSamples},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &stubModel{segments: []diarization.Segment{{Speaker: "SPEAKER_00", Start: 0.1, End: 1.9}}}
			h := newHarness(t, model)
			h.upstream.Serve("/talk.mp3", "audio/mpeg", tt.body)

			res, err := h.svc.Analyze(context.Background(), h.upstream.URL("/talk.mp3"))
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if len(res.Segments) != 1 || res.Segments[0].Speaker != "SPEAKER_00" {
				t.Errorf("segments = %+v", res.Segments)
			}
			if model.rate != fixtures.MP3SampleRate {
				t.Errorf("model got sample rate %d, want %d", model.rate, fixtures.MP3SampleRate)
			}
			if model.frames != tt.wantFrames {
				t.Errorf("model got %d frames, want %d", model.frames, tt.wantFrames)
			}
			h.assertClean(t)
		})
	}
}

func TestAnalyze_CompletionLogCarriesStageTimings(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "info", Format: "json"}, "test", &buf)
	h := newHarnessWithLogger(t, &stubModel{segments: []diarization.Segment{{Speaker: "SPEAKER_00", Start: 0, End: 1}}}, log)
	h.upstream.Serve("/a.wav", "audio/wav", fixtures.WAV(t, fixtures.Tone(time.Second, 8000, 1, 220)))

	if _, err := h.svc.Analyze(context.Background(), h.upstream.URL("/a.wav")); err != nil {
		t.Fatal(err)
	}

	var completed map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]interface{}
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		if entry["message"] == "request completed" {
			completed = entry
		}
	}
	if completed == nil {
		t.Fatalf("no completion log in %s", buf.String())
	}
	for _, key := range []string{"download_ms", "decode_ms", "diarize_ms", logger.FieldDuration, logger.FieldSegments} {
		if _, ok := completed[key]; !ok {
			t.Errorf("completion log missing %q: %v", key, completed)
		}
	}
}

func TestAnalyze_GeneratesRequestID(t *testing.T) {
	h := newHarness(t, &stubModel{})
	h.upstream.Serve("/a.wav", "", fixtures.WAV(t, fixtures.Tone(time.Second, 8000, 1, 220)))

	res, err := h.svc.Analyze(context.Background(), h.upstream.URL("/a.wav"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.RequestID) != 36 {
		t.Errorf("expected a UUID request id, got %q", res.RequestID)
	}
	if res.Segments == nil || len(res.Segments) != 0 {
		t.Errorf("expected empty, non-nil segments, got %#v", res.Segments)
	}
}

func TestAnalyze_Failures(t *testing.T) {
	tone := func(d time.Duration) []byte {
		return fixtures.WAV(t, fixtures.Tone(d, 16000, 1, 220))
	}

	tests := []struct {
		name      string
		setup     func(u *testutil.Upstream)
		url       func(u *testutil.Upstream) string
		modelErr  error
		wantCode  apperrors.ErrorCode
		wantModel bool
		wantHits  int
	}{
		{
			name:     "non http scheme",
			url:      func(*testutil.Upstream) string { return "ftp://example.com/a.mp3" },
			wantCode: apperrors.ErrCodeInvalidInput,
		},
		{
			name:     "not a url",
			url:      func(*testutil.Upstream) string { return "not a url" },
			wantCode: apperrors.ErrCodeInvalidInput,
		},
		{
			name:     "empty url",
			url:      func(*testutil.Upstream) string { return "" },
			wantCode: apperrors.ErrCodeInvalidInput,
		},
		{
			name:     "upstream 404",
			setup:    func(u *testutil.Upstream) { u.Fail("/a.wav", http.StatusNotFound) },
			url:      func(u *testutil.Upstream) string { return u.URL("/a.wav") },
			wantCode: apperrors.ErrCodeDownloadFailed,
			wantHits: 1,
		},
		{
			name:     "upstream stalls",
			setup:    func(u *testutil.Upstream) { u.Stall("/a.wav") },
			url:      func(u *testutil.Upstream) string { return u.URL("/a.wav") },
			wantCode: apperrors.ErrCodeDownloadTimeout,
			wantHits: 1,
		},
		{
			name:     "not audio",
			setup:    func(u *testutil.Upstream) { u.Serve("/a.wav", "text/html", []byte("<html><body>nope</body></html>")) },
			url:      func(u *testutil.Upstream) string { return u.URL("/a.wav") },
			wantCode: apperrors.ErrCodeInvalidAudio,
			wantHits: 1,
		},
		{
			name:     "too short",
			setup:    func(u *testutil.Upstream) { u.Serve("/a.wav", "audio/wav", tone(500*time.Millisecond)) },
			url:      func(u *testutil.Upstream) string { return u.URL("/a.wav") },
			wantCode: apperrors.ErrCodeAudioTooShort,
			wantHits: 1,
		},
		{
			name:     "mp3 too short",
			setup:    func(u *testutil.Upstream) { u.Serve("/a.wav", "audio/mpeg", fixtures.ShortMP3()) },
			url:      func(u *testutil.Upstream) string { return u.URL("/a.wav") },
			wantCode: apperrors.ErrCodeAudioTooShort,
			wantHits: 1,
		},
		{
			name:      "model fails",
			setup:     func(u *testutil.Upstream) { u.Serve("/a.wav", "audio/wav", tone(time.Second)) },
			url:       func(u *testutil.Upstream) string { return u.URL("/a.wav") },
			modelErr:  errors.New("CUDA out of memory"),
			wantCode:  apperrors.ErrCodeDiarizationFailed,
			wantModel: true,
			wantHits:  1,
		},
		{
			name:      "model busy",
			setup:     func(u *testutil.Upstream) { u.Serve("/a.wav", "audio/wav", tone(time.Second)) },
			url:       func(u *testutil.Upstream) string { return u.URL("/a.wav") },
			modelErr:  diarization.ErrModelBusy,
			wantCode:  apperrors.ErrCodeDiarizationFailed,
			wantModel: true,
			wantHits:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &stubModel{err: tt.modelErr}
			h := newHarness(t, model)
			if tt.setup != nil {
				tt.setup(h.upstream)
			}

			res, err := h.svc.Analyze(context.Background(), tt.url(h.upstream))
			if res != nil {
				t.Errorf("expected nil result, got %+v", res)
			}
			if !apperrors.IsCode(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
			if (model.calls > 0) != tt.wantModel {
				t.Errorf("model calls = %d, want called=%t", model.calls, tt.wantModel)
			}
			if hits := h.upstream.Hits("/a.wav"); hits != tt.wantHits {
				t.Errorf("upstream hits = %d, want %d", hits, tt.wantHits)
			}
			h.assertClean(t)
		})
	}
}

func TestAnalyze_DetailStrings(t *testing.T) {
	h := newHarness(t, &stubModel{err: errors.New("boom")})
	h.upstream.Fail("/missing.mp3", http.StatusNotFound)
	h.upstream.Serve("/ok.wav", "audio/wav", fixtures.WAV(t, fixtures.Tone(time.Second, 8000, 1, 220)))

	_, err := h.svc.Analyze(context.Background(), h.upstream.URL("/missing.mp3"))
	if got := apperrors.From(err).Message; got != "Error downloading the audio file: 404 Not Found" {
		t.Errorf("download detail = %q", got)
	}

	_, err = h.svc.Analyze(context.Background(), h.upstream.URL("/ok.wav"))
	if got := apperrors.From(err).Message; got != "Audio analysis error: boom" {
		t.Errorf("diarization detail = %q", got)
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantDetail string
	}{
		{"http", "http://example.com/a.mp3", ""},
		{"https", "https://example.com/a.mp3", ""},
		{"empty", "", "url is required"},
		{"ftp scheme", "ftp://example.com/a.mp3", "url must be a valid http(s) URL"},
		{"no scheme", "example.com/a.mp3", "url must be a valid http(s) URL"},
		{"no host", "http:///a.mp3", "url must be a valid http(s) URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := analysis.ValidateURL(tt.url)
			if tt.wantDetail == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			appErr := apperrors.From(err)
			if appErr.Code != apperrors.ErrCodeInvalidInput {
				t.Fatalf("code = %s, want %s", appErr.Code, apperrors.ErrCodeInvalidInput)
			}
			if appErr.Message != tt.wantDetail {
				t.Errorf("detail = %q, want %q", appErr.Message, tt.wantDetail)
			}
		})
	}
}

func TestAnalyze_ModelCallIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The client goes away while the model is running.
	model := &stubModel{before: cancel}
	h := newHarness(t, model)
	h.upstream.Serve("/a.wav", "audio/wav", fixtures.WAV(t, fixtures.Tone(time.Second, 8000, 1, 220)))

	if _, err := h.svc.Analyze(ctx, h.upstream.URL("/a.wav")); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if model.ctxErr != nil {
		t.Errorf("model context was canceled: %v", model.ctxErr)
	}
	h.assertClean(t)
}

func TestAnalyze_EnergyBackend(t *testing.T) {
	cfg := diarization.Config{Provider: energy.ProviderName}
	cfg.ApplyDefaults()
	model := diarization.NewExclusive(energy.NewProvider(cfg.Energy, logger.NewDefault("test")), cfg, nil, logger.NewDefault("test"))
	h := newHarness(t, model)

	wf := fixtures.Concat(
		fixtures.Tone(time.Second, 16000, 1, 220),
		fixtures.Silence(2*time.Second, 16000, 1),
		fixtures.Tone(time.Second, 16000, 1, 330),
	)
	h.upstream.Serve("/call.wav", "audio/wav", fixtures.WAV(t, wf))

	res, err := h.svc.Analyze(context.Background(), h.upstream.URL("/call.wav"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	want := []analysis.Segment{
		{Speaker: "SPEAKER_00", Start: 0, End: 1.02},
		{Speaker: "SPEAKER_01", Start: 3, End: 4},
	}
	if len(res.Segments) != len(want) {
		t.Fatalf("segments = %+v", res.Segments)
	}
	for i := range want {
		if res.Segments[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, res.Segments[i], want[i])
		}
	}
	h.assertClean(t)
}

func TestRoundSegments(t *testing.T) {
	got := analysis.RoundSegments([]diarization.Segment{
		{Speaker: "B", Start: 1.2351, End: 1.2449},
		{Speaker: "A", Start: 0.004, End: 0.0051},
	})
	want := []analysis.Segment{
		{Speaker: "B", Start: 1.24, End: 1.24},
		{Speaker: "A", Start: 0, End: 0.01},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
