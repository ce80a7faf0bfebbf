package seed

import "errors"

// ErrEntropyUnavailable is returned when the secure random source cannot be read.
var ErrEntropyUnavailable = errors.New("secure random source unavailable")
