// Package observability provides OpenTelemetry tracing and metrics for the
// diarizer.
//
// Export is opt-in. With tracing and metrics disabled, the global otel
// providers stay no-op, so spans and instruments can be used unconditionally:
//
//	obs := observability.New(cfg, "diarizer", version.Version, env)
//	app.RegisterComponent(obs)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanDownload)
//	defer span.End()
//
//	metrics, _ := observability.NewMetrics(observability.Meter("diarizer"))
//	metrics.RecordStage(ctx, "decode", "ok", elapsed)
package observability
