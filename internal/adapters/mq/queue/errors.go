package queue

import "errors"

var (
	// ErrFull is reported to a job's owner when the queue had no free slot.
	ErrFull = errors.New("write queue full")

	// ErrClosed is reported for jobs offered after Close.
	ErrClosed = errors.New("write queue closed")
)
