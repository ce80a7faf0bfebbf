// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Key identifies a leaderboard entry. Keys are assigned by the backend only.
type Key string

// SentinelKey marks a submission that has no backend identity yet.
const SentinelKey Key = ""

// IsSentinel reports whether k is the "not yet assigned" marker.
func (k Key) IsSentinel() bool { return k == SentinelKey }

// ScoreEntry is an application-defined record (player name, score, ...).
// The bridge treats it as opaque except when merging fields on update.
type ScoreEntry map[string]any

// Clone returns a shallow copy of e. A nil entry clones to nil.
func (e ScoreEntry) Clone() ScoreEntry {
	if e == nil {
		return nil
	}
	return maps.Clone(e)
}

// Merge returns a copy of e with every field of fields written over it.
// Fields absent from fields are left untouched.
func (e ScoreEntry) Merge(fields ScoreEntry) ScoreEntry {
	out := make(ScoreEntry, len(e)+len(fields))
	maps.Copy(out, e)
	maps.Copy(out, fields)
	return out
}

// KeyedEntry is a (key, entry) pair. On the wire it is the two-element
// array [key, entry].
type KeyedEntry struct {
	Key   Key
	Entry ScoreEntry
}

// MarshalJSON encodes the pair as [key, entry].
func (p KeyedEntry) MarshalJSON() ([]byte, error) {
	entry := p.Entry
	if entry == nil {
		entry = ScoreEntry{}
	}
	return json.Marshal([2]any{p.Key, entry})
}

// UnmarshalJSON decodes [key, entry].
func (p *KeyedEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("keyed entry: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("keyed entry: expected 2 elements, got %d", len(raw))
	}
	var key Key
	if err := json.Unmarshal(raw[0], &key); err != nil {
		return fmt.Errorf("keyed entry key: %w", err)
	}
	var entry ScoreEntry
	if err := json.Unmarshal(raw[1], &entry); err != nil {
		return fmt.Errorf("keyed entry value: %w", err)
	}
	p.Key = key
	p.Entry = entry
	return nil
}

// Snapshot is the whole remote collection at one instant.
type Snapshot map[Key]ScoreEntry

// Entries flattens the snapshot into keyed pairs ordered by key. The result
// is never nil so an empty collection encodes as [].
func (s Snapshot) Entries() []KeyedEntry {
	keys := slices.Sorted(maps.Keys(s))
	out := make([]KeyedEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, KeyedEntry{Key: k, Entry: s[k]})
	}
	return out
}

// Clone returns a copy whose entries can be handed to another goroutine.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v.Clone()
	}
	return out
}
