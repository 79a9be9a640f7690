package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is the client-facing detail.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the HTTP status code this error maps to.
	HTTPStatus int `json:"-"`
	// Details contains additional context for logs.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// InvalidInput creates an error for a malformed request field. The reason is
// used verbatim so it reads like the validator's "<field> <problem>" messages.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: reason,
		HTTPStatus: http.StatusBadRequest, Details: details,
	}
}

// Validation creates an error for struct validation failures.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// Unauthorized creates an error for a missing or wrong access token.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// RateLimited creates an error for a client that exceeded its request budget.
func RateLimited(retryAfter time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeRateLimited, Message: "Too many requests.",
		HTTPStatus: http.StatusTooManyRequests, Retryable: true,
		Details: map[string]any{"retry_after_sec": retryAfter.Seconds()},
	}
}

// DownloadTimeout creates an error for a download that exceeded its deadline.
func DownloadTimeout(cause error) *AppError {
	return &AppError{
		Code: ErrCodeDownloadTimeout, Message: "Download request timed out.",
		HTTPStatus: http.StatusRequestTimeout, Retryable: true, Cause: cause,
	}
}

// DownloadFailed creates an error for any non-timeout download failure.
// The upstream cause is part of the client-facing message.
func DownloadFailed(cause error) *AppError {
	msg := "Error downloading the audio file."
	if cause != nil {
		msg = fmt.Sprintf("Error downloading the audio file: %v", cause)
	}
	return &AppError{
		Code: ErrCodeDownloadFailed, Message: msg,
		HTTPStatus: http.StatusBadRequest, Retryable: true, Cause: cause,
	}
}

// InvalidAudio creates an error for payloads that cannot be decoded as audio.
func InvalidAudio(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInvalidAudio, Message: "Invalid or unreadable audio file.",
		HTTPStatus: http.StatusBadRequest, Cause: cause,
	}
}

// AudioTooShort creates an error for audio below the minimum duration.
func AudioTooShort(durationSec, minSec float64) *AppError {
	return &AppError{
		Code: ErrCodeAudioTooShort, Message: "Audio file is too short for analysis.",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"duration_sec": durationSec, "min_duration_sec": minSec},
	}
}

// DiarizationFailed creates an error for a failed model invocation.
func DiarizationFailed(cause error) *AppError {
	msg := "Audio analysis error."
	if cause != nil {
		msg = fmt.Sprintf("Audio analysis error: %v", cause)
	}
	return &AppError{
		Code: ErrCodeDiarizationFailed, Message: msg,
		HTTPStatus: http.StatusInternalServerError, Retryable: true, Cause: cause,
	}
}

// Internal creates an error for an unexpected failure. The cause is never
// exposed to clients.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An internal server error occurred.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}

// IsCode reports whether err is an AppError carrying code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}
