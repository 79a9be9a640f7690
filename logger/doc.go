// Package logger provides structured logging for the diarizer service using
// zerolog.
//
// It supports JSON and console output, level configuration, component-scoped
// loggers, and request-scoped loggers that carry the request id placed in the
// context by the HTTP middleware.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("analysis").WithContext(ctx)
//	log.Info("audio decoded", logger.Fields("duration_sec", 12.4))
package logger
