package transcript

import (
	"strings"
	"testing"
	"time"
)

func TestFormatLineElapsed(t *testing.T) {
	startedAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	entry := Entry{
		ID:        "e1",
		Speaker:   "Fiona",
		Text:      " Hi there ",
		Timestamp: startedAt.Add(75 * time.Second),
	}

	got := entry.FormatLine(startedAt)
	want := "[01:15] Fiona: Hi there"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatLineBeforeStart(t *testing.T) {
	startedAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	entry := Entry{Speaker: SpeakerUser, Text: "hello", Timestamp: startedAt.Add(-2 * time.Second)}

	if got := entry.FormatLine(startedAt); !strings.HasPrefix(got, "[00:00]") {
		t.Errorf("expected clamped elapsed time, got %q", got)
	}
}

func TestDocument(t *testing.T) {
	startedAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Speaker: SpeakerUser, Text: "Hello", Timestamp: startedAt.Add(3 * time.Second)},
		{Speaker: "Eli", Text: "Hi!", Timestamp: startedAt.Add(5 * time.Second)},
	}

	doc := Document(entries, startedAt, "sess-1")

	if !strings.Contains(doc, "Session: sess-1") {
		t.Errorf("missing session header in document:\n%s", doc)
	}
	if !strings.Contains(doc, "[00:03] user: Hello") {
		t.Errorf("missing user line in document:\n%s", doc)
	}
	if !strings.Contains(doc, "[00:05] Eli: Hi!") {
		t.Errorf("missing persona line in document:\n%s", doc)
	}
}

func TestPlainTextOrder(t *testing.T) {
	entries := []Entry{
		{Speaker: "Fiona", Text: "first"},
		{Speaker: SpeakerUser, Text: "second"},
	}

	got := PlainText(entries)
	want := "Fiona: first\nuser: second\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
