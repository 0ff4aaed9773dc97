package eventbus

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected       = errors.New("eventbus: not connected")
	ErrClosed             = errors.New("eventbus: connection closed")
	ErrInvalidPayload     = errors.New("eventbus: payload is not a json object")
	ErrUnsupportedVersion = errors.New("eventbus: unsupported schema version")
)

// ConnectionError is returned when the broker stays unreachable for the whole
// retry budget. Services treat it as fatal.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("eventbus: broker unreachable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PublishError describes a publish that never reached the broker.
type PublishError struct {
	RoutingKey string
	Err        error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("eventbus: publish %s: %v", e.RoutingKey, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error that retrying cannot fix. The message goes
// straight to the dead-letter sink.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
