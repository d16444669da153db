package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport covers unreachable hosts, timeouts, and non-2xx statuses.
	ErrTransport = errors.New("backend transport failure")
	// ErrMalformed is returned when a response body does not have the expected shape.
	ErrMalformed = errors.New("malformed backend response")
	// ErrEmptyMessage is returned when Chat is called with nothing to send.
	ErrEmptyMessage = errors.New("message is required")
)

// StatusError records a non-2xx HTTP status. It matches ErrTransport.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Endpoint, e.StatusCode)
}

// Is makes errors.Is(err, ErrTransport) hold for status failures.
func (e *StatusError) Is(target error) bool {
	return target == ErrTransport
}

// ServiceError is a failure the backend reported itself with success=false.
type ServiceError struct {
	Endpoint string
	Message  string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return e.Endpoint + " reported failure"
	}
	return fmt.Sprintf("%s reported failure: %s", e.Endpoint, e.Message)
}

// IsTransport reports whether err is a transport-class failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsMalformed reports whether err came from an unexpected response shape.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed)
}

// AsServiceError extracts a service-reported failure from err.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
