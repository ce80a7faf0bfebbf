// Package repository defines the remote leaderboard collection consumed by
// the bridge and its backend implementations.
package repository

import (
	"context"

	"github.com/okian/scorebridge/internal/domain/model"
)

// Listener receives a full snapshot of the collection. It is called once
// when the subscription attaches and again after every remote mutation.
type Listener func(model.Snapshot)

// Subscription is a scoped change listener. Release stops delivery; it is
// safe to call more than once.
type Subscription interface {
	Release() error
}

// Collection is a shared key->entry collection mutated concurrently by
// every connected client. Last write wins.
type Collection interface {
	// Subscribe registers fn for the lifetime of the returned Subscription
	// (or until ctx ends).
	Subscribe(ctx context.Context, fn Listener) (Subscription, error)

	// ReadOnce returns the current snapshot.
	ReadOnce(ctx context.Context) (model.Snapshot, error)

	// NewKey returns a fresh unique key. It does not write anything.
	NewKey() (model.Key, error)

	// Set stores entry under key, replacing any previous record.
	Set(ctx context.Context, key model.Key, entry model.ScoreEntry) error

	// Update merges fields into the record at key, creating it if absent.
	Update(ctx context.Context, key model.Key, fields model.ScoreEntry) error

	// Count returns the number of entries currently stored.
	Count(ctx context.Context) int

	// Close releases backend resources and every open subscription.
	Close() error
}
