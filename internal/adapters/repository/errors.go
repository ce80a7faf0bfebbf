package repository

import "errors"

// Sentinel kinds for collection errors.
var (
	ErrInvalidKey = errors.New("invalid leaderboard key")
	ErrClosed     = errors.New("collection closed")
	ErrDecode     = errors.New("malformed leaderboard entry")
)
