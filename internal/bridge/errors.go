package bridge

import "errors"

var (
	ErrAlreadyStarted = errors.New("bridge already started")
	ErrStopped        = errors.New("bridge stopped")
	ErrUnknownPolicy  = errors.New("unknown read policy")
	ErrSubscribe      = errors.New("subscribe to leaderboard")
	ErrFetch          = errors.New("fetch leaderboard")
	ErrKeyGeneration  = errors.New("generate entry key")
	ErrDispatch       = errors.New("dispatch write")
)
