package chat

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// UnexpectedError is the last-resort user-facing message
const UnexpectedError = "Unexpected error"

// APIError is a non-2xx response from the backend
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (status %d): %s", e.Message, e.Status, e.Details)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// newAPIError builds an APIError, taking the message from the body's error
// field when the body is JSON
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var eb errorBody
	if len(body) > 0 && sonic.Unmarshal(body, &eb) == nil {
		apiErr.Message = eb.Error
		apiErr.Details = eb.Details
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("request failed with status code %d", status)
	}
	return apiErr
}

// ErrorMessage renders err for the user: the backend's error text when
// there is one, otherwise the error itself
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return UnexpectedError
}
