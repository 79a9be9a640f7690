package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/diarizer/analysis"
	"github.com/kbukum/diarizer/api"
	"github.com/kbukum/diarizer/audio"
	"github.com/kbukum/diarizer/diarization"
	"github.com/kbukum/diarizer/diarization/energy"
	"github.com/kbukum/diarizer/download"
	apperrors "github.com/kbukum/diarizer/errors"
	"github.com/kbukum/diarizer/logger"
	"github.com/kbukum/diarizer/scratch"
	"github.com/kbukum/diarizer/server"
	servertest "github.com/kbukum/diarizer/server/testutil"
	"github.com/kbukum/diarizer/testutil"
	"github.com/kbukum/diarizer/testutil/fixtures"
)

type response struct {
	status    int
	requestID string
	body      []byte
}

func post(t *testing.T, base, body string, header map[string]string) response {
	t.Helper()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, base+"/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /analyze: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return response{status: resp.StatusCode, requestID: resp.Header.Get("X-Request-Id"), body: b}
}

func (r response) errorBody(t *testing.T) apperrors.ErrorResponse {
	t.Helper()
	var er apperrors.ErrorResponse
	if err := json.Unmarshal(r.body, &er); err != nil {
		t.Fatalf("invalid error body %q: %v", r.body, err)
	}
	if er.RequestID == "" || er.RequestID != r.requestID {
		t.Errorf("body request_id %q does not match header %q", er.RequestID, r.requestID)
	}
	return er
}

// newEnergyService wires the real pipeline with the energy backend.
func newEnergyService(t *testing.T) *analysis.Service {
	t.Helper()
	log := logger.NewDefault("test")

	store, err := scratch.New(scratch.Config{Dir: t.TempDir()}, log)
	if err != nil {
		t.Fatal(err)
	}
	dl, err := download.New(download.Config{Timeout: 300 * time.Millisecond, MaxSize: "8MB"}, log)
	if err != nil {
		t.Fatal(err)
	}
	cfg := diarization.Config{Provider: energy.ProviderName}
	cfg.ApplyDefaults()
	model := diarization.NewExclusive(energy.NewProvider(cfg.Energy, log), cfg, nil, log)

	return analysis.NewService(analysis.Deps{
		Downloader: dl,
		Store:      store,
		Validator:  audio.NewValidator(audio.Config{MinDuration: time.Second}),
		Model:      model,
		Logger:     log,
	})
}

func startServer(t *testing.T, cfg server.Config, svc api.Analyzer) string {
	t.Helper()
	srv := servertest.NewComponentWithConfig(cfg)
	api.NewHandler(svc, logger.NewDefault("test")).Register(srv.GinEngine().Group("/", srv.Server().Auth()))
	testutil.T(t).Setup(srv)
	return srv.BaseURL()
}

func TestAnalyze_EndToEnd(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.Serve("/call.wav", "audio/wav", fixtures.WAV(t, fixtures.Concat(
		fixtures.Tone(time.Second, 16000, 1, 220),
		fixtures.Silence(2*time.Second, 16000, 1),
		fixtures.Tone(time.Second, 16000, 1, 330),
	)))
	base := startServer(t, server.Config{}, newEnergyService(t))

	resp := post(t, base, `{"url":"`+upstream.URL("/call.wav")+`"}`, nil)
	if resp.status != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.status, resp.body)
	}

	var res analysis.Result
	if err := json.Unmarshal(resp.body, &res); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if res.RequestID == "" || res.RequestID != resp.requestID {
		t.Errorf("request_id %q does not match header %q", res.RequestID, resp.requestID)
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
}

func decodeResult(t *testing.T, resp response) analysis.Result {
	t.Helper()
	if resp.status != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.status, resp.body)
	}
	var res analysis.Result
	if err := json.Unmarshal(resp.body, &res); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	return res
}

func TestAnalyze_Silence(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.Serve("/quiet.wav", "audio/wav", fixtures.WAV(t, fixtures.Silence(5*time.Second, 16000, 1)))
	base := startServer(t, server.Config{}, newEnergyService(t))

	resp := post(t, base, `{"url":"`+upstream.URL("/quiet.wav")+`"}`, nil)
	res := decodeResult(t, resp)
	if !strings.Contains(string(resp.body), `"segments":[`) {
		t.Errorf("segments must be a JSON array: %s", resp.body)
	}
	if len(res.Segments) > 1 {
		t.Errorf("silence produced %d segments: %+v", len(res.Segments), res.Segments)
	}
}

func TestAnalyze_RepeatedRequestsAgree(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.Serve("/call.wav", "audio/wav", fixtures.WAV(t, fixtures.Concat(
		fixtures.Tone(time.Second, 16000, 1, 220),
		fixtures.Silence(time.Second, 16000, 1),
		fixtures.Tone(time.Second, 16000, 1, 330),
	)))
	base := startServer(t, server.Config{}, newEnergyService(t))
	body := `{"url":"` + upstream.URL("/call.wav") + `"}`

	first := decodeResult(t, post(t, base, body, nil))
	second := decodeResult(t, post(t, base, body, nil))

	if first.RequestID == second.RequestID {
		t.Errorf("request ids repeat: %q", first.RequestID)
	}
	if len(first.Segments) == 0 || len(first.Segments) != len(second.Segments) {
		t.Fatalf("segment counts differ: %+v vs %+v", first.Segments, second.Segments)
	}
	for i := range first.Segments {
		if first.Segments[i].Speaker != second.Segments[i].Speaker {
			t.Errorf("segment %d speaker = %q then %q", i, first.Segments[i].Speaker, second.Segments[i].Speaker)
		}
	}
}

func TestAnalyze_ErrorResponses(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.Fail("/missing.mp3", http.StatusNotFound)
	upstream.Stall("/slow.mp3")
	upstream.Serve("/page.html", "text/html", []byte("<html><body>hello</body></html>"))
	upstream.Serve("/blip.wav", "audio/wav", fixtures.WAV(t, fixtures.Tone(300*time.Millisecond, 16000, 1, 220)))
	base := startServer(t, server.Config{}, newEnergyService(t))

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantDetail string
	}{
		{"malformed json", `{"url":`, http.StatusBadRequest, "body must be a JSON object with a url field"},
		{"missing url", `{}`, http.StatusBadRequest, "url is required"},
		{"not a url", `{"url":"nope"}`, http.StatusBadRequest, "url must be a valid http(s) URL"},
		{"ftp scheme", `{"url":"ftp://example.com/talk.mp3"}`, http.StatusBadRequest, "url must be a valid http(s) URL"},
		{"no host", `{"url":"http:///talk.mp3"}`, http.StatusBadRequest, "url must be a valid http(s) URL"},
		{"upstream 404", `{"url":"` + upstream.URL("/missing.mp3") + `"}`, http.StatusBadRequest, "Error downloading the audio file: 404 Not Found"},
		{"upstream stalls", `{"url":"` + upstream.URL("/slow.mp3") + `"}`, http.StatusRequestTimeout, "Download request timed out."},
		{"not audio", `{"url":"` + upstream.URL("/page.html") + `"}`, http.StatusBadRequest, "Invalid or unreadable audio file."},
		{"too short", `{"url":"` + upstream.URL("/blip.wav") + `"}`, http.StatusBadRequest, "Audio file is too short for analysis."},
		{"body too large", `{"url":"http://example.com/` + strings.Repeat("a", 66*1024) + `"}`, http.StatusRequestEntityTooLarge, "Request body too large."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, base, tt.body, nil)
			if resp.status != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", resp.status, tt.wantStatus, resp.body)
			}
			if got := resp.errorBody(t).Detail; got != tt.wantDetail {
				t.Errorf("detail = %q, want %q", got, tt.wantDetail)
			}
		})
	}
}

type analyzerFunc func(ctx context.Context, rawURL string) (*analysis.Result, error)

func (f analyzerFunc) Analyze(ctx context.Context, rawURL string) (*analysis.Result, error) {
	return f(ctx, rawURL)
}

func TestAnalyze_UnclassifiedErrorIsInternal(t *testing.T) {
	base := startServer(t, server.Config{}, analyzerFunc(func(context.Context, string) (*analysis.Result, error) {
		return nil, errors.New("disk on fire")
	}))

	resp := post(t, base, `{"url":"http://example.com/a.mp3"}`, nil)
	if resp.status != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.status)
	}
	if got := resp.errorBody(t).Detail; got != "An internal server error occurred." {
		t.Errorf("detail = %q", got)
	}
}

func TestAnalyze_PassesRequestIDToPipeline(t *testing.T) {
	var seen string
	base := startServer(t, server.Config{}, analyzerFunc(func(ctx context.Context, _ string) (*analysis.Result, error) {
		seen = logger.RequestIDFromContext(ctx)
		return &analysis.Result{RequestID: seen, Segments: []analysis.Segment{}}, nil
	}))

	resp := post(t, base, `{"url":"http://example.com/a.mp3"}`, map[string]string{"X-Request-Id": "client-chosen"})
	if resp.status != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.status, resp.body)
	}
	if seen == "" || seen == "client-chosen" || seen != resp.requestID {
		t.Errorf("pipeline saw %q, header %q", seen, resp.requestID)
	}
	if !strings.Contains(string(resp.body), `"segments":[]`) {
		t.Errorf("expected empty segments array, got %s", resp.body)
	}
}

func TestAnalyze_BearerToken(t *testing.T) {
	calls := 0
	base := startServer(t, server.Config{AuthToken: "s3cret"}, analyzerFunc(func(context.Context, string) (*analysis.Result, error) {
		calls++
		return &analysis.Result{Segments: []analysis.Segment{}}, nil
	}))
	body := `{"url":"http://example.com/a.mp3"}`

	resp := post(t, base, body, nil)
	if resp.status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.status)
	}
	if got := resp.errorBody(t).Detail; got != "Authentication required." {
		t.Errorf("detail = %q", got)
	}
	if calls != 0 {
		t.Fatal("pipeline ran without a token")
	}

	resp = post(t, base, body, map[string]string{"Authorization": "Bearer s3cret"})
	if resp.status != http.StatusOK || calls != 1 {
		t.Fatalf("status = %d, calls = %d", resp.status, calls)
	}
}
