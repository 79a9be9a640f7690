package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Client input errors
const (
	// ErrCodeInvalidInput indicates the request payload is malformed.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeUnauthorized indicates the request lacks a valid access token.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeRateLimited indicates the client exceeded its request budget.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeNotFound indicates no route matches the request path.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeMethodNotAllowed indicates the route exists for other methods.
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
)

// Download errors
const (
	// ErrCodeDownloadTimeout indicates the remote audio did not arrive in time.
	ErrCodeDownloadTimeout ErrorCode = "DOWNLOAD_TIMEOUT"
	// ErrCodeDownloadFailed indicates a network or upstream HTTP failure.
	ErrCodeDownloadFailed ErrorCode = "DOWNLOAD_FAILED"
)

// Content errors
const (
	// ErrCodeInvalidAudio indicates the payload is not decodable audio.
	ErrCodeInvalidAudio ErrorCode = "INVALID_AUDIO"
	// ErrCodeAudioTooShort indicates the audio is below the duration floor.
	ErrCodeAudioTooShort ErrorCode = "AUDIO_TOO_SHORT"
)

// Inference and internal errors
const (
	// ErrCodeDiarizationFailed indicates the model call failed.
	ErrCodeDiarizationFailed ErrorCode = "DIARIZATION_FAILED"
	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeDownloadTimeout:   true,
	ErrCodeDownloadFailed:    true,
	ErrCodeDiarizationFailed: true,
	ErrCodeRateLimited:       true,
}

// IsRetryableCode returns true if a client may reasonably retry the same request.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
