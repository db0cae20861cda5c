package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dtran2108/collabo-speak/internal/session"
	"github.com/dtran2108/collabo-speak/internal/transcript"
)

func TestHubBroadcastEntryResolvesPersona(t *testing.T) {
	hub := NewHub(nil)
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.BroadcastEntry(transcript.Entry{
		ID:        "e1",
		Speaker:   "Fiona",
		Text:      "What does everyone think?",
		Timestamp: time.Now().UTC(),
	})

	select {
	case msg := <-ch:
		var payload map[string]any
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if payload["type"] != "transcript_entry" {
			t.Fatalf("expected event type transcript_entry, got %#v", payload["type"])
		}
		if payload["color"] != "#e07a5f" {
			t.Fatalf("expected Fiona's roster color, got %#v", payload["color"])
		}
		if payload["version"] == nil || payload["timestamp"] == nil {
			t.Fatalf("expected version and timestamp fields: %s", string(msg))
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for hub broadcast")
	}
}

func TestHubBroadcastPhase(t *testing.T) {
	hub := NewHub(nil)
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.BroadcastPhase(session.PhaseActive, "")

	select {
	case msg := <-ch:
		var payload map[string]any
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if payload["type"] != "phase_changed" {
			t.Fatalf("expected event type phase_changed, got %#v", payload["type"])
		}
		if payload["phase"] != string(session.PhaseActive) {
			t.Fatalf("expected active phase, got %#v", payload["phase"])
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for hub broadcast")
	}
}

func TestHubSlowSubscriberDropsEvents(t *testing.T) {
	hub := NewHub(nil)
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		hub.BroadcastTimeWarning()
	}
	// The subscriber buffer is bounded; the extra events must be dropped
	// without blocking the broadcaster.
	if len(ch) != cap(ch) {
		t.Fatalf("expected full channel of %d events, got %d", cap(ch), len(ch))
	}
}
