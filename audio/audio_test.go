package audio_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kbukum/diarizer/audio"
	apperrors "github.com/kbukum/diarizer/errors"
	"github.com/kbukum/diarizer/testutil/fixtures"
)

func TestDecodeFile_WAV(t *testing.T) {
	tests := []struct {
		name     string
		wf       *audio.Waveform
		channels int
		seconds  float64
	}{
		{"mono 16k", fixtures.Tone(2*time.Second, 16000, 1, 440), 1, 2},
		{"stereo 44.1k", fixtures.Tone(1500*time.Millisecond, 44100, 2, 220), 2, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := fixtures.WriteWAV(t, "clip.wav", tt.wf)

			wf, format, err := audio.DecodeFile(path)
			if err != nil {
				t.Fatalf("DecodeFile failed: %v", err)
			}
			if format != audio.FormatWAV {
				t.Errorf("expected wav, got %s", format)
			}
			if wf.Channels() != tt.channels || wf.SampleRate != tt.wf.SampleRate {
				t.Errorf("got %d channels @ %d Hz", wf.Channels(), wf.SampleRate)
			}
			if math.Abs(wf.Seconds()-tt.seconds) > 0.001 {
				t.Errorf("expected %.3fs, got %.3fs", tt.seconds, wf.Seconds())
			}
		})
	}
}

func writeClip(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDecodeFile_MP3(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		frames int
	}{
		{"speech", fixtures.SpeechMP3(), fixtures.SpeechMP3Samples},
		{"short", fixtures.ShortMP3(), fixtures.ShortMP3Samples},
		{"truncated final frame is dropped", fixtures.TruncatedMP3(), fixtures.SpeechMP3Samples - fixtures.MP3FrameSamples},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The scratch name carries no extension until the content is sniffed.
			wf, format, err := audio.DecodeFile(writeClip(t, "download.part", tt.data))
			if err != nil {
				t.Fatalf("DecodeFile failed: %v", err)
			}
			if format != audio.FormatMP3 {
				t.Errorf("expected mp3, got %s", format)
			}
			if wf.SampleRate != fixtures.MP3SampleRate {
				t.Errorf("sample rate = %d", wf.SampleRate)
			}
			// go-mp3 always yields stereo, duplicating mono sources.
			if wf.Channels() != 2 {
				t.Errorf("channels = %d", wf.Channels())
			}
			if wf.Frames() != tt.frames {
				t.Errorf("frames = %d, want %d", wf.Frames(), tt.frames)
			}
			var peak float32
			for _, s := range wf.Samples[0] {
				peak = max(peak, s, -s)
			}
			if peak == 0 {
				t.Error("decoded speech is silent")
			}
		})
	}
}

func TestValidator_MP3Floor(t *testing.T) {
	v := audio.NewValidator(audio.Config{MinDuration: time.Second})

	speech, _, err := audio.DecodeFile(writeClip(t, "speech.mp3", fixtures.SpeechMP3()))
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Validate(speech); err != nil {
		t.Errorf("speech clip rejected: %v", err)
	}

	short, _, err := audio.DecodeFile(writeClip(t, "short.mp3", fixtures.ShortMP3()))
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Validate(short); !apperrors.IsCode(err, apperrors.ErrCodeAudioTooShort) {
		t.Errorf("expected AUDIO_TOO_SHORT, got %v", err)
	}
}

// headerOnlyWAV is a well-formed 16-bit mono WAV whose data chunk is empty.
func headerOnlyWAV() []byte {
	var b bytes.Buffer
	w := func(v any) { _ = binary.Write(&b, binary.LittleEndian, v) }
	b.WriteString("RIFF")
	w(uint32(36))
	b.WriteString("WAVEfmt ")
	w(uint32(16))
	w(uint16(1))     // PCM
	w(uint16(1))     // channels
	w(uint32(16000)) // sample rate
	w(uint32(32000)) // byte rate
	w(uint16(2))     // block align
	w(uint16(16))    // bits per sample
	b.WriteString("data")
	w(uint32(0))
	return b.Bytes()
}

func TestDecodeFile_EmptyWAVIsTooShort(t *testing.T) {
	wf, format, err := audio.DecodeFile(writeClip(t, "empty.wav", headerOnlyWAV()))
	if err != nil {
		t.Fatalf("DecodeFile failed: %v", err)
	}
	if format != audio.FormatWAV || wf.Frames() != 0 || wf.SampleRate != 16000 {
		t.Fatalf("unexpected waveform %s %d frames @ %d Hz", format, wf.Frames(), wf.SampleRate)
	}

	err = audio.NewValidator(audio.Config{}).Validate(wf)
	if !apperrors.IsCode(err, apperrors.ErrCodeAudioTooShort) {
		t.Fatalf("expected AUDIO_TOO_SHORT, got %v", err)
	}
	if got := apperrors.From(err).Message; got != "Audio file is too short for analysis." {
		t.Errorf("detail = %q", got)
	}
}

func TestDecodeFile_RoundTripsSamples(t *testing.T) {
	src := fixtures.Tone(time.Second, 8000, 1, 300)
	path := fixtures.WriteWAV(t, "tone.wav", src)

	wf, _, err := audio.DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile failed: %v", err)
	}
	for i := 0; i < src.Frames(); i += 97 {
		if d := math.Abs(float64(wf.Samples[0][i] - src.Samples[0][i])); d > 1.0/16384 {
			t.Fatalf("sample %d differs by %f", i, d)
		}
	}
}

func TestDecodeFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"html page", []byte("<!DOCTYPE html><html><body>not audio</body></html>")},
		{"json", []byte(`{"error":"forbidden"}`)},
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")},
		{"id3 tag without frames", append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), bytes.Repeat([]byte{0}, 64)...)},
		{"riff header only", []byte("RIFF\x24\x00\x00\x00WAVEfmt ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "download.part")
			if err := os.WriteFile(path, tt.data, 0o600); err != nil {
				t.Fatal(err)
			}
			_, _, err := audio.DecodeFile(path)
			if !apperrors.IsCode(err, apperrors.ErrCodeInvalidAudio) {
				t.Fatalf("expected INVALID_AUDIO, got %v", err)
			}
			appErr, _ := apperrors.AsAppError(err)
			if appErr.Message != "Invalid or unreadable audio file." {
				t.Errorf("unexpected message %q", appErr.Message)
			}
		})
	}
}

func TestDetectBytes(t *testing.T) {
	wav := fixtures.WAV(t, fixtures.Silence(100*time.Millisecond, 8000, 1))
	if f, err := audio.DetectBytes(wav); err != nil || f != audio.FormatWAV {
		t.Errorf("expected wav, got %s %v", f, err)
	}
	if f, err := audio.DetectBytes([]byte("ID3\x04\x00\x00\x00\x00\x00\x00")); err != nil || f != audio.FormatMP3 {
		t.Errorf("expected mp3, got %s %v", f, err)
	}
	if f, err := audio.DetectBytes(fixtures.SpeechMP3()); err != nil || f != audio.FormatMP3 {
		t.Errorf("expected mp3 for speech clip, got %s %v", f, err)
	}
	if _, err := audio.DetectBytes([]byte("plain text")); err == nil {
		t.Error("expected error for text")
	}
	if audio.FormatMP3.Ext() != ".mp3" || audio.FormatWAV.MIME() != "audio/wav" {
		t.Error("unexpected format helpers")
	}
}

func TestValidator(t *testing.T) {
	v := audio.NewValidator(audio.Config{})
	if v.MinDuration() != time.Second {
		t.Fatalf("expected 1s default, got %s", v.MinDuration())
	}

	tests := []struct {
		name string
		wf   *audio.Waveform
		code apperrors.ErrorCode
	}{
		{"exactly one second", fixtures.Silence(time.Second, 16000, 1), ""},
		{"long stereo", fixtures.Tone(3*time.Second, 16000, 2, 440), ""},
		{"half second", fixtures.Tone(500*time.Millisecond, 16000, 1, 440), apperrors.ErrCodeAudioTooShort},
		{"no frames", &audio.Waveform{Samples: [][]float32{{}}, SampleRate: 16000}, apperrors.ErrCodeAudioTooShort},
		{"no sample rate", &audio.Waveform{Samples: [][]float32{{0}}}, apperrors.ErrCodeInvalidAudio},
		{"nil", nil, apperrors.ErrCodeInvalidAudio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.wf)
			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !apperrors.IsCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestValidator_TooShortDetails(t *testing.T) {
	v := audio.NewValidator(audio.Config{MinDuration: 2 * time.Second})
	err := v.Validate(fixtures.Silence(time.Second, 8000, 1))
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Message != "Audio file is too short for analysis." || appErr.HTTPStatus != 400 {
		t.Errorf("unexpected error %+v", appErr)
	}
	if appErr.Details["min_duration_sec"] != 2.0 {
		t.Errorf("unexpected details %v", appErr.Details)
	}
}

func TestWaveform_Mono(t *testing.T) {
	wf := &audio.Waveform{Samples: [][]float32{{1, 0.5}, {0, -0.5}}, SampleRate: 2}
	mono := wf.Mono()
	if len(mono) != 2 || mono[0] != 0.5 || mono[1] != 0 {
		t.Errorf("unexpected mono mix %v", mono)
	}
	if wf.Duration() != time.Second {
		t.Errorf("expected 1s, got %s", wf.Duration())
	}
}

func TestEncodeWAV_Empty(t *testing.T) {
	if _, err := audio.WAVBytes(&audio.Waveform{}); err == nil {
		t.Error("expected error for empty waveform")
	}
}
