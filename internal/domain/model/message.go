package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType names a message exchanged with the application.
type MessageType string

// Message types. Init, Leaderboard, ScoreAccepted and ScoreRejected flow to
// the application; SubmitScore flows from it.
const (
	MessageInit          MessageType = "init"
	MessageLeaderboard   MessageType = "leaderboard"
	MessageScoreAccepted MessageType = "score_accepted"
	MessageScoreRejected MessageType = "score_rejected"
	MessageSubmitScore   MessageType = "submit_score"
)

// ErrUnknownMessage is returned when decoding a message with an unknown type.
var ErrUnknownMessage = errors.New("unknown message type")

// Submission is a score-submission request. An empty Key asks the backend
// for a new entry; otherwise the entry at Key is updated in place.
type Submission = KeyedEntry

// Message is one application-channel message. Which payload field is
// meaningful depends on Type.
type Message struct {
	Type MessageType

	// Flags is set for MessageInit.
	Flags Flags
	// Entries is set for MessageLeaderboard.
	Entries []KeyedEntry
	// Entry is set for MessageScoreAccepted, MessageScoreRejected and MessageSubmitScore.
	Entry KeyedEntry
}

// InitMessage builds the startup message carrying the session flags.
func InitMessage(f Flags) Message { return Message{Type: MessageInit, Flags: f} }

// LeaderboardMessage builds a leaderboard update. A nil slice is sent as [].
func LeaderboardMessage(entries []KeyedEntry) Message {
	if entries == nil {
		entries = []KeyedEntry{}
	}
	return Message{Type: MessageLeaderboard, Entries: entries}
}

// ScoreAcceptedMessage builds the notification for a newly keyed entry.
func ScoreAcceptedMessage(key Key, entry ScoreEntry) Message {
	return Message{Type: MessageScoreAccepted, Entry: KeyedEntry{Key: key, Entry: entry}}
}

// ScoreRejectedMessage builds the notification for a write the backend refused.
func ScoreRejectedMessage(key Key, entry ScoreEntry) Message {
	return Message{Type: MessageScoreRejected, Entry: KeyedEntry{Key: key, Entry: entry}}
}

// SubmitScoreMessage builds an inbound submission.
func SubmitScoreMessage(key Key, entry ScoreEntry) Message {
	return Message{Type: MessageSubmitScore, Entry: KeyedEntry{Key: key, Entry: entry}}
}

type wireMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON encodes {"type": ..., "payload": ...}.
func (m Message) MarshalJSON() ([]byte, error) {
	var payload any
	switch m.Type {
	case MessageInit:
		payload = m.Flags
	case MessageLeaderboard:
		entries := m.Entries
		if entries == nil {
			entries = []KeyedEntry{}
		}
		payload = entries
	case MessageScoreAccepted, MessageScoreRejected, MessageSubmitScore:
		payload = m.Entry
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Type: m.Type, Payload: raw})
}

// UnmarshalJSON decodes {"type": ..., "payload": ...}.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Message{Type: w.Type}
	var err error
	switch w.Type {
	case MessageInit:
		err = json.Unmarshal(w.Payload, &out.Flags)
	case MessageLeaderboard:
		err = json.Unmarshal(w.Payload, &out.Entries)
		if out.Entries == nil {
			out.Entries = []KeyedEntry{}
		}
	case MessageScoreAccepted, MessageScoreRejected, MessageSubmitScore:
		err = json.Unmarshal(w.Payload, &out.Entry)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, w.Type)
	}
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", w.Type, err)
	}
	*m = out
	return nil
}
