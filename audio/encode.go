package audio

import (
	"errors"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const encodeBitDepth = 16

// EncodeWAV writes w as 16-bit PCM WAV.
func EncodeWAV(ws io.WriteSeeker, w *Waveform) error {
	if w.Channels() == 0 || w.SampleRate <= 0 {
		return errors.New("wav: empty waveform")
	}

	channels := w.Channels()
	frames := w.Frames()
	data := make([]int, frames*channels)
	for c, ch := range w.Samples {
		for i, s := range ch {
			data[i*channels+c] = toPCM16(s)
		}
	}

	enc := wav.NewEncoder(ws, w.SampleRate, encodeBitDepth, channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: w.SampleRate},
		Data:           data,
		SourceBitDepth: encodeBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// WAVBytes encodes w into an in-memory 16-bit PCM WAV file.
func WAVBytes(w *Waveform) ([]byte, error) {
	var mem memFile
	if err := EncodeWAV(&mem, w); err != nil {
		return nil, err
	}
	return mem.buf, nil
}

func toPCM16(s float32) int {
	v := math.Round(float64(s) * 32767)
	return int(max(-32768, min(32767, v)))
}

// memFile is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("memfile: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("memfile: negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
