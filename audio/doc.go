// Package audio decodes downloaded audio files into waveforms and validates
// them before they are handed to a diarization backend.
//
// MP3 is decoded with github.com/hajimehoshi/go-mp3 and PCM WAV with
// github.com/go-audio/wav. The container is sniffed from file content with
// github.com/gabriel-vasile/mimetype; file names and Content-Type headers
// are not trusted.
package audio
