package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ekaya-inc/gepetto/pkg/apperrors"
)

// ErrorType classifies a failed call for callers that want to react to it.
type ErrorType string

const (
	ErrorTypeNone      ErrorType = ""
	ErrorTypeEndpoint  ErrorType = "endpoint"
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeModel     ErrorType = "model"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeResponse  ErrorType = "response"
	ErrorTypeRequest   ErrorType = "request"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error is a classified view of a failed call. The client never returns it;
// callers build one with ClassifyError when they need a category.
type Error struct {
	Type       ErrorType // Classification of the error
	Message    string    // Human-readable message
	Retryable  bool      // Whether the caller may reasonably try again
	Cause      error     // Underlying error
	StatusCode int       // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new classified error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// ClassifyError categorizes an error returned by Chat or FunctionCall.
// Structured go-openai errors are classified by status code; anything else
// falls back to message inspection.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	switch {
	case errors.Is(err, apperrors.ErrNoTools), errors.Is(err, apperrors.ErrInvalidTokenCount):
		return NewError(ErrorTypeRequest, "invalid request", false, err)
	case errors.Is(err, apperrors.ErrUnknownModel):
		return NewError(ErrorTypeModel, "unknown model", false, err)
	case errors.Is(err, apperrors.ErrNoChoices), errors.Is(err, apperrors.ErrNoToolCall):
		return NewError(ErrorTypeResponse, "malformed response", false, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewError(ErrorTypeEndpoint, "request timeout", true, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}

	lower := strings.ToLower(err.Error())

	if strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key") {
		return NewError(ErrorTypeAuth, "authentication failed", false, err)
	}

	if strings.Contains(lower, "model") && (strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist")) {
		return NewError(ErrorTypeModel, "model not found", false, err)
	}

	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") {
		return NewError(ErrorTypeEndpoint, "connection failed", true, err)
	}

	if strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded") {
		return NewError(ErrorTypeEndpoint, "request timeout", true, err)
	}

	if strings.Contains(lower, "decode function arguments") {
		return NewError(ErrorTypeResponse, "malformed function arguments", false, err)
	}

	return NewError(ErrorTypeUnknown, "llm error", false, err)
}

func classifyStatus(status int, err error) *Error {
	var e *Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = NewError(ErrorTypeAuth, "authentication failed", false, err)
	case status == http.StatusNotFound:
		if strings.Contains(strings.ToLower(err.Error()), "model") {
			e = NewError(ErrorTypeModel, "model not found", false, err)
		} else {
			e = NewError(ErrorTypeEndpoint, "endpoint not found", false, err)
		}
	case status == http.StatusTooManyRequests:
		e = NewError(ErrorTypeRateLimit, "rate limited", true, err)
	case status == http.StatusBadRequest:
		e = NewError(ErrorTypeRequest, "bad request", false, err)
	case status >= 500:
		e = NewError(ErrorTypeEndpoint, "server error", true, err)
	default:
		e = NewError(ErrorTypeUnknown, "llm error", false, err)
	}
	e.StatusCode = status
	return e
}

// IsRetryable reports whether the classified error suggests trying again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return ClassifyError(err).Retryable
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypeNone
	}
	return ClassifyError(err).Type
}
