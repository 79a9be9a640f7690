package analysis

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/diarizer/audio"
	"github.com/kbukum/diarizer/diarization"
	"github.com/kbukum/diarizer/download"
	apperrors "github.com/kbukum/diarizer/errors"
	"github.com/kbukum/diarizer/logger"
	"github.com/kbukum/diarizer/observability"
	"github.com/kbukum/diarizer/scratch"
	"github.com/kbukum/diarizer/util"
	"github.com/kbukum/diarizer/validation"
)

const serviceName = "diarizer"

// partSuffix marks a download in progress; it becomes .mp3 or .wav once
// the content has been sniffed.
const partSuffix = ".part"

// Service runs the analysis pipeline.
type Service struct {
	downloader *download.Downloader
	store      *scratch.Store
	validator  *audio.Validator
	model      Diarizer
	metrics    *observability.Metrics
	log        *logger.Logger
}

// Deps are the collaborators of a Service. Metrics may be nil.
type Deps struct {
	Downloader *download.Downloader
	Store      *scratch.Store
	Validator  *audio.Validator
	Model      Diarizer
	Metrics    *observability.Metrics
	Logger     *logger.Logger
}

// NewService creates the analysis service.
func NewService(d Deps) *Service {
	return &Service{
		downloader: d.Downloader,
		store:      d.Store,
		validator:  d.Validator,
		model:      d.Model,
		metrics:    d.Metrics,
		log:        d.Logger.WithComponent("analysis"),
	}
}

// Analyze runs the pipeline for rawURL. Errors are *errors.AppError values
// carrying the client-facing detail. The request id is taken from ctx and
// generated when absent.
func (s *Service) Analyze(ctx context.Context, rawURL string) (res *Result, err error) {
	requestID := logger.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logger.ContextWithRequestID(ctx, requestID)
	}
	log := s.log.WithContext(ctx)

	oc := observability.NewOperationContext(serviceName, "analyze", requestID, s.metrics)
	ctx, span := oc.StartSpanForOperation(ctx, observability.SpanAnalyze)
	defer func() {
		status := "ok"
		if err != nil {
			status = string(apperrors.From(err).Code)
		}
		oc.EndOperation(ctx, span, status, err)
	}()

	log.Info("processing request", map[string]interface{}{logger.FieldURL: util.RedactURL(rawURL)})

	if err := ValidateURL(rawURL); err != nil {
		s.fail(ctx, "validate_url", err)
		return nil, err
	}

	var segments []Segment
	err = s.store.With(ctx, partSuffix, func(ctx context.Context, f *scratch.File) error {
		wf, err := s.load(ctx, rawURL, f)
		if err != nil {
			return err
		}
		segments, err = s.diarize(ctx, wf)
		return err
	})
	if err != nil {
		return nil, err
	}

	fields := oc.StageFields()
	fields[logger.FieldSegments] = len(segments)
	log.Info("request completed", logger.MergeWithDuration(fields, oc.Duration()))
	return &Result{RequestID: requestID, Segments: segments}, nil
}

// load downloads into f, names it after its sniffed format, decodes it and
// enforces the duration floor.
func (s *Service) load(ctx context.Context, rawURL string, f *scratch.File) (*audio.Waveform, error) {
	err := s.stage(ctx, observability.SpanDownload, "download", func(ctx context.Context) error {
		res, err := s.downloader.Fetch(ctx, rawURL, f)
		if err != nil {
			return err
		}
		observability.SetSpanAttribute(ctx, observability.AttrAudioBytes, res.Bytes)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var format audio.Format
	err = s.stage(ctx, observability.SpanPersist, "persist", func(ctx context.Context) error {
		if err := f.Close(); err != nil {
			return apperrors.Internal(fmt.Errorf("close scratch file: %w", err))
		}
		var err error
		if format, err = audio.Detect(f.Path()); err != nil {
			return apperrors.InvalidAudio(err)
		}
		if err := f.SetExt(format.Ext()); err != nil {
			return apperrors.Internal(err)
		}
		observability.SetSpanAttribute(ctx, observability.AttrAudioFormat, string(format))
		return nil
	})
	if err != nil {
		return nil, err
	}

	var wf *audio.Waveform
	err = s.stage(ctx, observability.SpanDecode, "decode", func(ctx context.Context) error {
		var err error
		wf, _, err = audio.DecodeFile(f.Path())
		if err != nil {
			return err
		}
		observability.SetSpanAttribute(ctx, observability.AttrAudioSeconds, wf.Seconds())
		if s.metrics != nil {
			s.metrics.RecordAudio(ctx, string(format), wf.Seconds())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.stage(ctx, observability.SpanValidate, "validate", func(ctx context.Context) error {
		return s.validator.Validate(wf)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Debug("audio ready", map[string]interface{}{
		"format":                string(format),
		"sample_rate":           wf.SampleRate,
		"channels":              wf.Channels(),
		logger.FieldDurationSec: util.Round(wf.Seconds(), 2),
	})
	return wf, nil
}

// diarize runs the model. The call is detached from ctx cancellation: once
// the model starts it runs to completion.
func (s *Service) diarize(ctx context.Context, wf *audio.Waveform) ([]Segment, error) {
	var segments []Segment
	err := s.stage(ctx, observability.SpanDiarize, "diarize", func(ctx context.Context) error {
		resp, err := s.model.Diarize(context.WithoutCancel(ctx), diarization.Request{Waveform: wf})
		if err != nil {
			if appErr, ok := apperrors.AsAppError(err); ok {
				return appErr
			}
			return apperrors.DiarizationFailed(err)
		}
		segments = RoundSegments(resp.Segments)
		observability.SetSpanAttribute(ctx, observability.AttrSegments, len(segments))
		if s.metrics != nil {
			s.metrics.RecordSegments(ctx, s.model.Name(), len(segments))
		}
		return nil
	})
	return segments, err
}

// stage runs fn in a child span and reports its outcome to the request's
// operation context.
func (s *Service) stage(ctx context.Context, span, name string, fn func(ctx context.Context) error) error {
	ctx, sp := observability.StartSpan(ctx, span)
	defer sp.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		s.fail(ctx, name, err)
	} else {
		s.log.WithContext(ctx).Debug("stage finished", logger.MergeWithDuration(map[string]interface{}{
			logger.FieldOperation: name,
		}, elapsed))
	}
	observability.OperationContextFromContext(ctx).RecordStage(ctx, name, status, elapsed)
	return err
}

// fail logs, traces and counts a stage failure.
func (s *Service) fail(ctx context.Context, stage string, err error) {
	appErr := apperrors.From(err)
	observability.SetSpanError(ctx, err)
	observability.SetSpanAttribute(ctx, observability.AttrErrorCode, string(appErr.Code))

	fields := logger.MergeWithError(map[string]interface{}{
		logger.FieldOperation: stage,
		"code":                string(appErr.Code),
	}, err)
	for k, v := range appErr.Details {
		fields[k] = v
	}
	log := s.log.WithContext(ctx)
	if appErr.HTTPStatus >= 500 {
		log.Error("request failed", fields)
	} else {
		log.Warn("request rejected", fields)
	}
	observability.OperationContextFromContext(ctx).RecordFailure(ctx, stage, string(appErr.Code))
}

// invalidURL matches the validator's wording for the http_url tag.
const invalidURL = "url must be a valid http(s) URL"

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(rawURL string) error {
	if err := validation.Validate(&AnalyzeRequest{URL: rawURL}); err != nil {
		return err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.InvalidInput("url", invalidURL).WithCause(err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.InvalidInput("url", invalidURL)
	}
	return nil
}

// RoundSegments rounds times to two decimals and keeps the model's order.
func RoundSegments(in []diarization.Segment) []Segment {
	out := make([]Segment, len(in))
	for i, seg := range in {
		out[i] = Segment{
			Speaker: seg.Speaker,
			Start:   util.Round(seg.Start, 2),
			End:     util.Round(seg.End, 2),
		}
	}
	return out
}
