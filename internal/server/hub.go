package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/dtran2108/collabo-speak/internal/evaluation"
	"github.com/dtran2108/collabo-speak/internal/persona"
	"github.com/dtran2108/collabo-speak/internal/session"
	"github.com/dtran2108/collabo-speak/internal/transcript"
)

// Hub fans session events out to subscribed observer connections. Slow
// subscribers drop events rather than block the session.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	roster  *persona.Roster
}

func NewHub(roster *persona.Roster) *Hub {
	if roster == nil {
		roster = persona.NewRoster(persona.Defaults())
	}
	return &Hub{
		clients: make(map[chan []byte]struct{}),
		roster:  roster,
	}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastPhase(phase session.Phase, errorMessage string) {
	h.broadcastEvent(PhaseChangedEvent{
		Event:        newEvent("phase_changed", time.Now().UTC()),
		Phase:        string(phase),
		ErrorMessage: errorMessage,
	})
}

func (h *Hub) BroadcastEntry(entry transcript.Entry) {
	p := h.roster.Resolve(entry.Speaker)
	h.broadcastEvent(TranscriptEntryEvent{
		Event:    newEvent("transcript_entry", entry.Timestamp),
		EntryID:  entry.ID,
		Speaker:  entry.Speaker,
		Text:     entry.Text,
		Color:    p.Color,
		Avatar:   p.Avatar,
		SpokenAt: entry.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

func (h *Hub) BroadcastTimeWarning() {
	h.broadcastEvent(TimeWarningEvent{
		Event: newEvent("time_warning", time.Now().UTC()),
	})
}

func (h *Hub) BroadcastEvaluation(result *evaluation.Result, errorMessage string) {
	event := EvaluationReadyEvent{
		Event:        newEvent("evaluation_ready", time.Now().UTC()),
		ErrorMessage: errorMessage,
	}
	if result != nil {
		event.Feedback = result
	}
	h.broadcastEvent(event)
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
