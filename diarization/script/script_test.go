package script_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/diarizer/component"
	"github.com/kbukum/diarizer/diarization"
	"github.com/kbukum/diarizer/diarization/script"
	"github.com/kbukum/diarizer/logger"
	"github.com/kbukum/diarizer/scratch"
	"github.com/kbukum/diarizer/testutil"
	"github.com/kbukum/diarizer/testutil/fixtures"
)

// fakeWorker speaks the worker protocol. The speaker label carries the
// staged file size so tests can check the WAV existed during the call.
// Paths containing "crash" or "hang" misbehave once per test directory.
const fakeWorker = `
if [ -z "$HUGGINGFACE_TOKEN" ]; then echo "load failed: token missing" >&2; exit 1; fi
tripped="$(dirname "$0")/tripped"
echo '{"event":"ready","device":"cpu","model":"'"$1"'"}'
while read line; do
  id=$(echo "$line" | sed 's/.*"id":"\([^"]*\)".*/\1/')
  path=$(echo "$line" | sed 's/.*"path":"\([^"]*\)".*/\1/')
  case "$path" in
    *fail*) echo '{"id":"'"$id"'","error":"pipeline exploded"}'; continue ;;
    *stale*) echo '{"id":"old-'"$id"'","segments":[]}'; continue ;;
    *crash*|*hang*)
      if [ ! -e "$tripped" ]; then
        : > "$tripped"
        case "$path" in *crash*) echo "worker crashed" >&2; exit 3 ;; esac
        sleep 30
      fi ;;
  esac
  size=$(wc -c < "$path" | tr -d ' ')
  echo '{"id":"'"$id"'","segments":[{"speaker":"BYTES_'"$size"'","start":0.5,"end":1.25},{"speaker":"SPEAKER_00","start":0.1,"end":0.4}]}'
done
`

func setup(t *testing.T, token, prefix string, opts ...func(*diarization.Config)) (*script.Provider, *scratch.Store) {
	t.Helper()
	dir := t.TempDir()
	workerPath := filepath.Join(dir, "worker.sh")
	if err := os.WriteFile(workerPath, []byte(fakeWorker), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := scratch.New(scratch.Config{Dir: filepath.Join(dir, "scratch"), Prefix: prefix}, logger.NewDefault("test"))
	if err != nil {
		t.Fatal(err)
	}

	cfg := diarization.Config{Provider: script.ProviderName, Token: token, Device: diarization.DeviceCPU}
	cfg.Script.Python = "sh"
	cfg.Script.Worker = workerPath
	cfg.Script.StartupTimeout = 5 * time.Second
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.ApplyDefaults()
	return script.NewProvider(cfg, store, logger.NewDefault("test")), store
}

func TestScript_DiarizeStagesWAV(t *testing.T) {
	p, store := setup(t, "hf_token", "diarizer-")
	testutil.T(t).Setup(p)

	if p.Device() != "cpu" {
		t.Errorf("Device() = %q", p.Device())
	}
	if h := p.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("health = %+v", h)
	}

	wf := fixtures.Tone(time.Second, 8000, 1, 440)
	resp, err := p.Diarize(context.Background(), diarization.Request{Waveform: wf})
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}
	if len(resp.Segments) != 2 {
		t.Fatalf("segments = %+v", resp.Segments)
	}

	size, err := strconv.Atoi(strings.TrimPrefix(resp.Segments[0].Speaker, "BYTES_"))
	if err != nil {
		t.Fatalf("unexpected label %q", resp.Segments[0].Speaker)
	}
	if want := 44 + 8000*2; size != want {
		t.Errorf("staged WAV size = %d, want %d", size, want)
	}
	if resp.Segments[1] != (diarization.Segment{Speaker: "SPEAKER_00", Start: 0.1, End: 0.4}) {
		t.Errorf("model order must be kept, got %+v", resp.Segments)
	}
	if resp.NumSpeakers != 2 {
		t.Errorf("NumSpeakers = %d", resp.NumSpeakers)
	}

	if store.Active() != 0 {
		t.Errorf("scratch files leaked: %d", store.Active())
	}
	entries, _ := os.ReadDir(store.Dir())
	if len(entries) != 0 {
		t.Errorf("scratch dir not empty: %v", entries)
	}
}

func TestScript_WorkerErrorReply(t *testing.T) {
	p, store := setup(t, "hf_token", "fail-")
	testutil.T(t).Setup(p)

	_, err := p.Diarize(context.Background(), diarization.Request{Waveform: fixtures.Tone(time.Second, 8000, 1, 440)})
	if err == nil || !strings.Contains(err.Error(), "pipeline exploded") {
		t.Fatalf("expected worker error, got %v", err)
	}
	if store.Active() != 0 {
		t.Errorf("scratch files leaked: %d", store.Active())
	}
	if !p.IsAvailable(context.Background()) {
		t.Error("an error reply must not kill the worker")
	}
}

func TestScript_LoadFailure(t *testing.T) {
	p, _ := setup(t, "", "diarizer-")
	err := p.Start(context.Background())
	if err == nil {
		t.Fatal("expected load failure")
	}
	if !strings.Contains(err.Error(), "token missing") {
		t.Errorf("error should carry the worker's stderr, got %v", err)
	}
	if h := p.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("health = %+v", h)
	}
}

func TestScript_RejectsMismatchedReply(t *testing.T) {
	p, store := setup(t, "hf_token", "stale-")
	testutil.T(t).Setup(p)

	_, err := p.Diarize(context.Background(), diarization.Request{Waveform: fixtures.Tone(time.Second, 8000, 1, 440)})
	if err == nil || !strings.Contains(err.Error(), "does not match job") {
		t.Fatalf("expected id mismatch, got %v", err)
	}
	if p.IsAvailable(context.Background()) {
		t.Error("a worker out of step must be killed")
	}
	if store.Active() != 0 {
		t.Errorf("scratch files leaked: %d", store.Active())
	}
}

func TestScript_RespawnsWorker(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		timeout time.Duration
		wantErr string
	}{
		{"after crash", "crash-", 0, "worker crashed"},
		{"after call timeout", "hang-", 300 * time.Millisecond, "deadline exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := setup(t, "hf_token", tt.prefix, func(cfg *diarization.Config) {
				cfg.Script.CallTimeout = tt.timeout
			})
			testutil.T(t).Setup(p)
			req := diarization.Request{Waveform: fixtures.Tone(time.Second, 8000, 1, 440)}

			_, err := p.Diarize(context.Background(), req)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q, got %v", tt.wantErr, err)
			}
			if h := p.Health(context.Background()); h.Status != component.StatusUnhealthy {
				t.Errorf("health after failure = %+v", h)
			}

			resp, err := p.Diarize(context.Background(), req)
			if err != nil {
				t.Fatalf("Diarize after respawn: %v", err)
			}
			if len(resp.Segments) != 2 {
				t.Errorf("segments = %+v", resp.Segments)
			}
			if h := p.Health(context.Background()); h.Status != component.StatusHealthy {
				t.Errorf("health after respawn = %+v", h)
			}
		})
	}
}

func TestScript_DiarizeBeforeStart(t *testing.T) {
	p, _ := setup(t, "hf_token", "diarizer-")
	if _, err := p.Diarize(context.Background(), diarization.Request{Waveform: fixtures.Tone(time.Second, 8000, 1, 440)}); err == nil {
		t.Fatal("expected error before Start")
	}
}
