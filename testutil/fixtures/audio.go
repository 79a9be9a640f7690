// Package fixtures builds synthetic waveforms and encoded audio for tests.
package fixtures

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kbukum/diarizer/audio"
)

// Silence returns d of digital silence.
func Silence(d time.Duration, rate, channels int) *audio.Waveform {
	return build(d, rate, channels, func(int) float32 { return 0 })
}

// Tone returns a sine wave at freq Hz with amplitude 0.5.
func Tone(d time.Duration, rate, channels int, freq float64) *audio.Waveform {
	return build(d, rate, channels, func(i int) float32 {
		return float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	})
}

// Concat joins waveforms that share a sample rate and channel count.
func Concat(parts ...*audio.Waveform) *audio.Waveform {
	if len(parts) == 0 {
		return &audio.Waveform{}
	}
	out := &audio.Waveform{
		Samples:    make([][]float32, parts[0].Channels()),
		SampleRate: parts[0].SampleRate,
	}
	for _, p := range parts {
		for c := range out.Samples {
			out.Samples[c] = append(out.Samples[c], p.Samples[c]...)
		}
	}
	return out
}

// WAV encodes w as 16-bit PCM WAV bytes.
func WAV(t testing.TB, w *audio.Waveform) []byte {
	t.Helper()
	data, err := audio.WAVBytes(w)
	if err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	return data
}

// WriteWAV writes w to name inside a per-test temp dir and returns its path.
func WriteWAV(t testing.TB, name string, w *audio.Waveform) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, WAV(t, w), 0o600); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func build(d time.Duration, rate, channels int, gen func(i int) float32) *audio.Waveform {
	frames := int(d.Seconds() * float64(rate))
	w := &audio.Waveform{Samples: make([][]float32, channels), SampleRate: rate}
	for c := range w.Samples {
		ch := make([]float32, frames)
		for i := range ch {
			ch[i] = gen(i)
		}
		w.Samples[c] = ch
	}
	return w
}
