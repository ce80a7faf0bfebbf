package bridge

import (
	"fmt"
	"strings"
)

// ReadPolicy selects how the bridge reads the collection.
type ReadPolicy int

const (
	// ReadSubscribe forwards the initial snapshot and every later change.
	ReadSubscribe ReadPolicy = iota
	// ReadFetch forwards a single snapshot read at start and on Refresh.
	ReadFetch
)

func (p ReadPolicy) String() string {
	switch p {
	case ReadSubscribe:
		return "subscribe"
	case ReadFetch:
		return "fetch"
	default:
		return fmt.Sprintf("ReadPolicy(%d)", int(p))
	}
}

// ParseReadPolicy maps "subscribe" or "fetch" to a ReadPolicy.
func ParseReadPolicy(s string) (ReadPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "subscribe", "":
		return ReadSubscribe, nil
	case "fetch":
		return ReadFetch, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}
