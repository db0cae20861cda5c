package server

import (
	"time"

	"github.com/dtran2108/collabo-speak/internal/session"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type PhaseChangedEvent struct {
	Event
	Phase        string `json:"phase"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type TranscriptEntryEvent struct {
	Event
	EntryID  string `json:"entry_id"`
	Speaker  string `json:"speaker"`
	Text     string `json:"text"`
	Color    string `json:"color"`
	Avatar   string `json:"avatar,omitempty"`
	SpokenAt string `json:"spoken_at"`
}

type TimeWarningEvent struct {
	Event
}

type EvaluationReadyEvent struct {
	Event
	Feedback     any    `json:"feedback,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

type SnapshotEvent struct {
	Event
	Snapshot session.Snapshot `json:"snapshot"`
}

func snapshotEvent(snap session.Snapshot) SnapshotEvent {
	return SnapshotEvent{
		Event:    newEvent("snapshot", time.Now().UTC()),
		Snapshot: snap,
	}
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
