package worker

import "errors"

// ErrUnknownOp is returned for a write whose operation is not set or update.
var ErrUnknownOp = errors.New("unknown write operation")
