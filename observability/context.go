package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OperationContext follows one analysis request through its pipeline
// stages. It is carried in the request context so stages can report
// against it without knowing the request that spawned them.
type OperationContext struct {
	ServiceName   string
	OperationName string
	RequestID     string
	StartTime     time.Time
	Metrics       *Metrics

	mu     sync.Mutex
	stages []StageTiming
}

// StageTiming is the outcome of one pipeline stage.
type StageTiming struct {
	Name     string
	Status   string
	Duration time.Duration
}

// NewOperationContext creates an operation context. metrics may be nil.
func NewOperationContext(serviceName, operationName, requestID string, metrics *Metrics) *OperationContext {
	return &OperationContext{
		ServiceName:   serviceName,
		OperationName: operationName,
		RequestID:     requestID,
		StartTime:     time.Now(),
		Metrics:       metrics,
	}
}

type operationContextKey struct{}

// WithOperationContext stores oc in ctx.
func WithOperationContext(ctx context.Context, oc *OperationContext) context.Context {
	return context.WithValue(ctx, operationContextKey{}, oc)
}

// OperationContextFromContext returns the operation carried by ctx, or nil.
// All OperationContext methods are safe on a nil receiver.
func OperationContextFromContext(ctx context.Context) *OperationContext {
	if oc, ok := ctx.Value(operationContextKey{}).(*OperationContext); ok {
		return oc
	}
	return nil
}

// StartSpanForOperation opens the request span, counts the request as
// active and stores oc in the returned context.
func (oc *OperationContext) StartSpanForOperation(ctx context.Context, spanName string) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, spanName)
	span.SetAttributes(
		attribute.String(AttrServiceName, oc.ServiceName),
		attribute.String(AttrOperationName, oc.OperationName),
		attribute.String(AttrRequestID, oc.RequestID),
	)
	if oc.Metrics != nil {
		oc.Metrics.RecordRequestStart(ctx)
	}
	return WithOperationContext(ctx, oc), span
}

// RecordStage stores a stage outcome and records its duration metric.
func (oc *OperationContext) RecordStage(ctx context.Context, stage, status string, d time.Duration) {
	if oc == nil {
		return
	}
	oc.mu.Lock()
	oc.stages = append(oc.stages, StageTiming{Name: stage, Status: status, Duration: d})
	oc.mu.Unlock()
	if oc.Metrics != nil {
		oc.Metrics.RecordOperation(ctx, oc.ServiceName, stage, status, d)
	}
}

// RecordFailure counts a failure with its error code against stage.
func (oc *OperationContext) RecordFailure(ctx context.Context, stage, code string) {
	if oc == nil || oc.Metrics == nil {
		return
	}
	oc.Metrics.RecordError(ctx, code, stage)
}

// Stages returns the recorded stages in completion order.
func (oc *OperationContext) Stages() []StageTiming {
	if oc == nil {
		return nil
	}
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return append([]StageTiming(nil), oc.stages...)
}

// StageFields returns "<stage>_ms" durations for a log line.
func (oc *OperationContext) StageFields() map[string]interface{} {
	fields := make(map[string]interface{})
	for _, st := range oc.Stages() {
		fields[st.Name+"_ms"] = st.Duration.Milliseconds()
	}
	return fields
}

// EndOperation ends the request span and records request-end metrics.
func (oc *OperationContext) EndOperation(ctx context.Context, span trace.Span, status string, err error) {
	duration := time.Since(oc.StartTime)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	if oc.Metrics != nil {
		oc.Metrics.RecordRequestEnd(ctx, oc.ServiceName, oc.OperationName, status, duration)
	}
}

// Duration returns the elapsed time since the request started.
func (oc *OperationContext) Duration() time.Duration {
	return time.Since(oc.StartTime)
}
