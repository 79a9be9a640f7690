package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	apperrors "github.com/kbukum/diarizer/errors"
)

// mp3 output from go-mp3 is always 16-bit little-endian stereo.
const (
	mp3Channels   = 2
	mp3FrameBytes = 4
	readFrames    = 4096
)

// WAV format tags accepted by the decoder.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// DecodeFile sniffs and decodes the file at path. Any failure is returned as
// an INVALID_AUDIO *errors.AppError.
func DecodeFile(path string) (wf *Waveform, format Format, err error) {
	format, err = Detect(path)
	if err != nil {
		return nil, "", apperrors.InvalidAudio(err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, format, apperrors.InvalidAudio(err)
	}
	defer f.Close()

	wf, err = Decode(f, format)
	if err != nil {
		return nil, format, apperrors.InvalidAudio(err)
	}
	return wf, format, nil
}

// Decode reads the whole stream as the given format. Malformed input that
// makes a decoder panic is reported as an error.
func Decode(r io.ReadSeeker, format Format) (wf *Waveform, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			wf, err = nil, fmt.Errorf("%s decoder panic: %v", format, rec)
		}
	}()

	switch format {
	case FormatMP3:
		return decodeMP3(r)
	case FormatWAV:
		return decodeWAV(r)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func decodeMP3(r io.Reader) (*Waveform, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	capacity := 0
	if n := dec.Length(); n > 0 {
		capacity = int(n / mp3FrameBytes)
	}
	left := make([]float32, 0, capacity)
	right := make([]float32, 0, capacity)

	buf := make([]byte, readFrames*mp3FrameBytes)
	pending := 0
	for {
		n, err := dec.Read(buf[pending:])
		n += pending
		whole := n - n%mp3FrameBytes
		for i := 0; i < whole; i += mp3FrameBytes {
			left = append(left, pcm16(buf[i:]))
			right = append(right, pcm16(buf[i+2:]))
		}
		pending = copy(buf, buf[whole:n])

		// go-mp3 reports a truncated final frame as io.EOF, keeping the
		// frames decoded before it.
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mp3: %w", err)
		}
	}

	return &Waveform{Samples: [][]float32{left, right}, SampleRate: dec.SampleRate()}, nil
}

func pcm16(b []byte) float32 {
	return float32(int16(binary.LittleEndian.Uint16(b))) / 32768
}

func decodeWAV(r io.ReadSeeker) (*Waveform, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("wav: invalid file")
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("wav: unsupported audio format %d", dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	if channels <= 0 || dec.SampleRate == 0 {
		return nil, errors.New("wav: missing channel count or sample rate")
	}
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("wav: unsupported bit depth %d", bitDepth)
	}

	// A header without sample data decodes to an empty waveform, which the
	// validator rejects as too short.
	frames := len(buf.Data) / channels

	// 8-bit WAV is unsigned; wider depths are signed.
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	scale := 1 / float32(int64(1)<<(bitDepth-1))

	samples := make([][]float32, channels)
	for c := range samples {
		samples[c] = make([]float32, frames)
	}
	for i := 0; i < frames*channels; i++ {
		samples[i%channels][i/channels] = float32(buf.Data[i]-offset) * scale
	}
	return &Waveform{Samples: samples, SampleRate: int(dec.SampleRate)}, nil
}
