package ws

import "errors"

// ErrClosed reports that the peer closed the connection cleanly. Terminal
// for the connection, but expected traffic, not a fault.
var ErrClosed = errors.New("connection closed by peer")

// ConnectionError is a transport-level fault: the socket broke, a write
// timed out, the endpoint vanished. Terminal for the connection.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "connection error: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
