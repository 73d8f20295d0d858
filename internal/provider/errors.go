package provider

import (
	"fmt"
)

// TransportError means no response was received from the provider.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPError means the provider answered with a non-2xx status.
// Body carries the provider's response verbatim for relaying.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("provider returned status %d", e.StatusCode)
}

// ApplicationError means the provider answered 2xx but embedded a non-zero
// error code in its status envelope.
type ApplicationError struct {
	Code    int
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("provider error %d", e.Code)
}

// ParseError means the provider response body was not valid JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to decode provider response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
