package probe

import "time"

// HTTP status code constants.
const (
	StatusOK = 200
)

// Defaults applied to zero Config fields.
const (
	DefaultSessions = 4
	DefaultScores   = 25
	DefaultTimeout  = 10 * time.Second
	DefaultSettle   = 2 * time.Second
)
