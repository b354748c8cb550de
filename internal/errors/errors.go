package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "VALIDATION_ERROR"
	ErrorTypeInvalidDimensions ErrorType = "INVALID_DIMENSIONS"
	ErrorTypeNotFound          ErrorType = "NOT_FOUND"
	ErrorTypeNoDetections      ErrorType = "NO_DETECTIONS"
	ErrorTypeInternal          ErrorType = "INTERNAL_ERROR"
	ErrorTypeTimeout           ErrorType = "TIMEOUT"
	ErrorTypeRateLimit         ErrorType = "RATE_LIMIT"
	ErrorTypeServiceDown       ErrorType = "SERVICE_DOWN"

	// Pipeline failures. These never reach an HTTP client directly; they
	// surface as the last recorded failure in pipeline stats.
	ErrorTypeDetectorFailure ErrorType = "DETECTOR_FAILURE"
	ErrorTypePerFaceFailure  ErrorType = "PER_FACE_FAILURE"
	ErrorTypeRotationConfig  ErrorType = "ROTATION_CONFIG"
	ErrorTypeDecodeFailure   ErrorType = "DECODE_FAILURE"
)

// AppError represents an application error with additional context.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCode adds an error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// New creates a new AppError.
func New(errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, http.StatusBadRequest)
}

// WrapInvalidDimensions reports a rejected width/height pair from a request.
func WrapInvalidDimensions(err error, width, height int) *AppError {
	return Wrap(err, ErrorTypeInvalidDimensions, "dimensions must be positive", http.StatusBadRequest).
		WithDetails(map[string]interface{}{"width": width, "height": height})
}

func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewNoDetectionsError is returned before the first detection set is published.
func NewNoDetectionsError() *AppError {
	return New(ErrorTypeNoDetections, "no detection set has been published yet", http.StatusNotFound)
}

func NewInternalError(message string) *AppError {
	return New(ErrorTypeInternal, message, http.StatusInternalServerError)
}

// WrapInternalError wraps an error as internal server error.
func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, http.StatusInternalServerError)
}

func NewTimeoutError(message string) *AppError {
	return New(ErrorTypeTimeout, message, http.StatusRequestTimeout)
}

func NewRateLimitError(message string) *AppError {
	return New(ErrorTypeRateLimit, message, http.StatusTooManyRequests)
}

func NewServiceDownError(service string) *AppError {
	return New(ErrorTypeServiceDown, fmt.Sprintf("%s service is currently unavailable", service), http.StatusServiceUnavailable)
}

// WrapDetectorFailure marks a whole-frame detector failure.
func WrapDetectorFailure(err error) *AppError {
	return Wrap(err, ErrorTypeDetectorFailure, "face detector failed", http.StatusBadGateway)
}

// WrapPerFaceFailure marks a single skipped face.
func WrapPerFaceFailure(err error, reason string) *AppError {
	return Wrap(err, ErrorTypePerFaceFailure, "face skipped", http.StatusUnprocessableEntity).WithCode(reason)
}

// WrapRotationConfig marks an unsupported rotation value.
func WrapRotationConfig(err error) *AppError {
	return Wrap(err, ErrorTypeRotationConfig, "unsupported rotation", http.StatusInternalServerError)
}

// WrapDecodeFailure marks a frame that could not be decoded.
func WrapDecodeFailure(err error) *AppError {
	return Wrap(err, ErrorTypeDecodeFailure, "frame decode failed", http.StatusUnprocessableEntity)
}

// GetAppError extracts the first AppError in err's chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsAppError checks if err's chain contains an AppError.
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}
