package transcript

import (
	"fmt"
	"strings"
	"time"
)

// SpeakerUser is the speaker label for the human participant. AI utterances
// carry the persona name instead, or SpeakerAI when no persona was resolved.
const (
	SpeakerUser = "user"
	SpeakerAI   = "ai"
)

// Entry is one utterance. Entries are immutable once created; a single
// inbound envelope may produce several of them.
type Entry struct {
	ID        string    `json:"id"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// FormatLine renders the entry as a transcript line annotated with the
// elapsed time since the session started.
func (e Entry) FormatLine(startedAt time.Time) string {
	return fmt.Sprintf("[%s] %s: %s", formatElapsed(e.Timestamp.Sub(startedAt)), e.Speaker, strings.TrimSpace(e.Text))
}

// Document renders the full session transcript as a human-readable text
// document suitable for blob upload.
func Document(entries []Entry, startedAt time.Time, sessionID string) string {
	var b strings.Builder
	b.WriteString("Conversation Transcript\n")
	b.WriteString("Session: " + sessionID + "\n")
	b.WriteString("Started: " + startedAt.UTC().Format(time.RFC3339) + "\n\n")

	for _, entry := range entries {
		b.WriteString(entry.FormatLine(startedAt))
		b.WriteString("\n")
	}
	return b.String()
}

// PlainText renders entries as "Speaker: text" lines, the form the
// evaluation service expects.
func PlainText(entries []Entry) string {
	var b strings.Builder
	for _, entry := range entries {
		b.WriteString(entry.Speaker)
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(entry.Text))
		b.WriteString("\n")
	}
	return b.String()
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
