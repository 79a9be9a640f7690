// Package diarization defines the provider interface and common types
// for speaker diarization backends.
//
// A backend is both a provider.Provider and a component.Component: it loads
// its model in Start, exposes the device it settled on and answers Diarize
// calls with speaker-attributed segments. Backends register a factory in a
// Registry and are selected by name from configuration.
//
// # Backends
//
//   - diarization/pyannote: HTTP sidecar hosting a pyannote pipeline
//   - diarization/script: local Python worker running the pipeline in-process
//   - diarization/energy: deterministic RMS voice-activity heuristic
//
// # Usage
//
//	reg := diarization.NewRegistry()
//	pyannote.Register(reg)
//	p, err := reg.Create(cfg.Provider, cfg)
//	model := diarization.NewExclusive(p, cfg, metrics, log)
//	resp, err := model.Diarize(ctx, diarization.Request{Waveform: wf})
package diarization
