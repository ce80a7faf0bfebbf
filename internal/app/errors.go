package service

import "errors"

var (
	ErrNotStarted      = errors.New("service not started")
	ErrSessionNotFound = errors.New("session not found")
	ErrSeed            = errors.New("seed unavailable")
)
