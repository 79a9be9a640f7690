package audio

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// Format is a supported audio container.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

// Ext returns the file extension including the dot.
func (f Format) Ext() string { return "." + string(f) }

// MIME returns the canonical MIME type.
func (f Format) MIME() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// Detect sniffs the container of the file at path.
func Detect(path string) (Format, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect format: %w", err)
	}
	return formatOf(mt)
}

// DetectBytes sniffs the container from a content prefix.
func DetectBytes(head []byte) (Format, error) {
	return formatOf(mimetype.Detect(head))
}

func formatOf(mt *mimetype.MIME) (Format, error) {
	switch {
	case mt.Is("audio/mpeg"):
		return FormatMP3, nil
	case mt.Is("audio/wav"):
		return FormatWAV, nil
	default:
		return "", fmt.Errorf("unsupported content type %s", mt.String())
	}
}
