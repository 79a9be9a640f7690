package diarization

import "github.com/kbukum/diarizer/audio"

// Request holds the input of a diarization call.
type Request struct {
	// Waveform is the decoded audio, at its native sample rate.
	Waveform *audio.Waveform
}

// Response holds the result of a diarization call.
type Response struct {
	// Segments are speaker turns in the order the model produced them.
	Segments []Segment `json:"segments"`
	// NumSpeakers is the number of distinct speakers detected.
	NumSpeakers int `json:"num_speakers"`
}

// Segment represents a speaker-attributed time range.
type Segment struct {
	// Speaker is the model's speaker label (e.g. "SPEAKER_00").
	Speaker string `json:"speaker"`
	// Start is the segment start time in seconds.
	Start float64 `json:"start"`
	// End is the segment end time in seconds.
	End float64 `json:"end"`
}

// CountSpeakers returns the number of distinct labels in segs.
func CountSpeakers(segs []Segment) int {
	seen := make(map[string]struct{}, 4)
	for _, s := range segs {
		seen[s.Speaker] = struct{}{}
	}
	return len(seen)
}
