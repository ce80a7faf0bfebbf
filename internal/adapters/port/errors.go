package port

import "errors"

var (
	// ErrClosed is returned when sending on a closed port.
	ErrClosed = errors.New("port closed")
	// ErrSendBufferFull is returned when a slow client cannot keep up.
	ErrSendBufferFull = errors.New("send buffer full")
)
