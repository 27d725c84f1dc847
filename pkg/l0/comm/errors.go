package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrStreamNotReady is returned by a Transport when the bulk stream
	// produced nothing in time and the control channel should be polled.
	ErrStreamNotReady = errors.New("stream not ready")
	// ErrDisconnected indicates the device is gone and the session is over.
	ErrDisconnected = errors.New("device disconnected")
	// ErrFrameTooLong is returned when raw bytes exceed the frame size.
	ErrFrameTooLong = errors.New("frame too long")
)

// TransportError wraps an error from the Transport with the operation.
type TransportError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
