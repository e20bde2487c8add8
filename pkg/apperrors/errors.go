package apperrors

import "errors"

var (
	ErrUnknownModel      = errors.New("unknown model")
	ErrInvalidTokenCount = errors.New("token count must not be negative")
	ErrNoTools           = errors.New("at least one tool declaration is required")
	ErrNoToolCall        = errors.New("response contains no tool call")
	ErrNoChoices         = errors.New("no choices in response")
)
