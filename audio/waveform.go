package audio

import "time"

// Waveform holds decoded samples normalized to [-1, 1].
type Waveform struct {
	// Samples is channel-major: Samples[c][i] is frame i of channel c.
	Samples [][]float32
	// SampleRate is the number of frames per second.
	SampleRate int
}

// Channels returns the number of channels.
func (w *Waveform) Channels() int { return len(w.Samples) }

// Frames returns the number of frames per channel.
func (w *Waveform) Frames() int {
	if len(w.Samples) == 0 {
		return 0
	}
	return len(w.Samples[0])
}

// Seconds returns the duration in seconds.
func (w *Waveform) Seconds() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(w.Frames()) / float64(w.SampleRate)
}

// Duration returns the duration as a time.Duration.
func (w *Waveform) Duration() time.Duration {
	return time.Duration(w.Seconds() * float64(time.Second))
}

// Mono returns the per-frame average of all channels. A single-channel
// waveform is returned without copying.
func (w *Waveform) Mono() []float32 {
	switch len(w.Samples) {
	case 0:
		return nil
	case 1:
		return w.Samples[0]
	}
	out := make([]float32, w.Frames())
	scale := 1 / float32(len(w.Samples))
	for _, ch := range w.Samples {
		for i, s := range ch {
			out[i] += s * scale
		}
	}
	return out
}
