package analysis

import (
	"context"

	"github.com/kbukum/diarizer/diarization"
)

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// Segment is a speaker turn with times rounded to two decimals.
type Segment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Result is the body of a successful analysis.
type Result struct {
	RequestID string    `json:"request_id"`
	Segments  []Segment `json:"segments"`
}

// Diarizer is the model capability the pipeline needs.
type Diarizer interface {
	Name() string
	Diarize(ctx context.Context, req diarization.Request) (*diarization.Response, error)
}
