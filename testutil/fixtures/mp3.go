package fixtures

import (
	"bytes"
	_ "embed"
)

// MP3 clips are mono MPEG-2 Layer III at 22.05kHz. Each frame decodes to
// 576 samples.
const (
	MP3SampleRate    = 22050
	MP3FrameSamples  = 576
	SpeechMP3Frames  = 80 // about 2.09s
	ShortMP3Frames   = 20 // about 0.52s
	SpeechMP3Samples = SpeechMP3Frames * MP3FrameSamples
	ShortMP3Samples  = ShortMP3Frames * MP3FrameSamples

	// truncateBytes is less than one frame, which is 156 or 157 bytes.
	truncateBytes = 64
)

var (
	//go:embed testdata/speech.mp3
	speechMP3 []byte
	//go:embed testdata/short.mp3
	shortMP3 []byte
)

// SpeechMP3 returns a spoken clip above the one second floor.
func SpeechMP3() []byte { return bytes.Clone(speechMP3) }

// ShortMP3 returns a spoken clip below the one second floor.
func ShortMP3() []byte { return bytes.Clone(shortMP3) }

// TruncatedMP3 returns SpeechMP3 cut off inside its final frame, as a
// download that ended early would leave it.
func TruncatedMP3() []byte {
	return bytes.Clone(speechMP3[:len(speechMP3)-truncateBytes])
}
