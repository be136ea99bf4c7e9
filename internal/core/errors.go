package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeEmptyMessage    = "empty_message"
	ErrCodeUnknownReceiver = "unknown_receiver"
	ErrCodeUploadFailed    = "upload_failed"
	ErrCodePersistFailed   = "persist_failed"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeUnauthorized    = "unauthorized"
)

var (
	ErrEmptyMessage    = errors.New("message has neither text nor image")
	ErrBadRequest      = errors.New("bad request")
	ErrUnknownReceiver = errors.New("unknown receiver")
	ErrUpstream        = errors.New("upstream failure")
	ErrHubStopped      = errors.New("hub stopped")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether the error was raised before anything was
// persisted because the caller broke the submission contract.
func (e *CoreError) IsValidation() bool {
	return !errors.Is(e.Err, ErrUpstream)
}

func coreError(code, msg string, err error) *CoreError {
	return &CoreError{Code: code, Message: msg, Err: err}
}
