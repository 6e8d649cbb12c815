package errors

import "fmt"

// ErrorCode classifies application errors by recovery strategy.
type ErrorCode string

const (
	// ErrCodeConfig is fatal: reported to the user, process exits non-zero
	// before any session work begins.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"
	// ErrCodeMeasurement is recovered locally via manual-entry fallback.
	ErrCodeMeasurement ErrorCode = "MEASUREMENT_ERROR"
	// ErrCodeLaunch is recorded per-session and never aborts the sequence.
	ErrCodeLaunch ErrorCode = "LAUNCH_ERROR"
	// ErrCodeProbe is recovered by counting the session as errored this tick.
	ErrCodeProbe ErrorCode = "PROBE_ERROR"
	// ErrCodeTeardown is best-effort, swallowed individually.
	ErrCodeTeardown ErrorCode = "TEARDOWN_ERROR"
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError carries an error code and optional context alongside the cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds a context field to the error.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

func NewConfigError(message string) *AppError {
	return New(ErrCodeConfig, message)
}

func NewMeasurementError(err error) *AppError {
	return Wrap(err, ErrCodeMeasurement, "bandwidth measurement failed")
}

func NewLaunchError(index int, err error) *AppError {
	return Wrap(err, ErrCodeLaunch, fmt.Sprintf("session %d launch failed", index))
}

// IsAppError checks if error is an AppError.
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError extracts an AppError from the error chain.
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	type unwrapper interface {
		Unwrap() error
	}
	if u, ok := err.(unwrapper); ok {
		return GetAppError(u.Unwrap())
	}
	return nil
}
