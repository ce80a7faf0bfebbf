package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest         = errors.New("bad request")
	ErrOriginRejected     = errors.New("origin not allowed")
	ErrNotHijackable      = errors.New("response writer does not support hijacking")
	ErrBackendUnavailable = errors.New("leaderboard backend unavailable")
)
