package model

// WriteOp selects how a Write is applied to the backend.
type WriteOp string

// Write operations.
const (
	// WriteSet stores the full entry under Key.
	WriteSet WriteOp = "set"
	// WriteUpdate merges the entry fields into the record at Key.
	WriteUpdate WriteOp = "update"
)

// Write is one pending backend write.
type Write struct {
	Op    WriteOp
	Key   Key
	Entry ScoreEntry

	// Done, when set, is called exactly once with the write result.
	Done func(err error)
}

// Finish reports the result through Done if one is set.
func (w Write) Finish(err error) {
	if w.Done != nil {
		w.Done(err)
	}
}
