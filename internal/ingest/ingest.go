package ingest

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtran2108/collabo-speak/internal/persona"
	"github.com/dtran2108/collabo-speak/internal/transcript"
)

// envelope is the wire shape of one inbound payload. The text of agent
// responses may contain concatenated <Name>...</Name> speaker tags.
type envelope struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// EnvelopeUserTranscript marks payloads carrying the user's own speech.
// Any other type is treated as AI output.
const EnvelopeUserTranscript = "user_transcript"

// Outcome is the result of parsing one inbound payload. Parse is total:
// it always yields at least one entry, and Fallback reports whether the
// payload had to be treated as opaque text.
type Outcome struct {
	Entries  []transcript.Entry
	Fallback bool
}

// Ingestor turns raw inbound payloads into transcript entries.
type Ingestor struct {
	roster *persona.Roster
	newID  func() string
	now    func() time.Time
}

func New(roster *persona.Roster) *Ingestor {
	if roster == nil {
		roster = persona.NewRoster(persona.Defaults())
	}
	return &Ingestor{
		roster: roster,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Parse converts one raw payload into transcript entries. Malformed input
// degrades to a single entry attributed to the AI with the raw text as
// content; it never errors and never drops a payload.
func (ing *Ingestor) Parse(raw []byte) Outcome {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Outcome{
			Entries:  []transcript.Entry{ing.entry(transcript.SpeakerAI, string(raw))},
			Fallback: true,
		}
	}

	if env.Type == EnvelopeUserTranscript {
		return Outcome{Entries: []transcript.Entry{ing.entry(transcript.SpeakerUser, env.Text)}}
	}

	segments := splitTagged(env.Text)
	if len(segments) == 0 {
		return Outcome{Entries: []transcript.Entry{ing.entry(transcript.SpeakerAI, env.Text)}}
	}

	entries := make([]transcript.Entry, 0, len(segments))
	for _, seg := range segments {
		entries = append(entries, ing.entry(seg.speaker, seg.text))
	}
	return Outcome{Entries: entries}
}

// Roster exposes the persona roster used to resolve speaker display data.
func (ing *Ingestor) Roster() *persona.Roster {
	return ing.roster
}

func (ing *Ingestor) entry(speaker, text string) transcript.Entry {
	return transcript.Entry{
		ID:        ing.newID(),
		Speaker:   speaker,
		Text:      text,
		Timestamp: ing.now().UTC(),
	}
}

type taggedSegment struct {
	speaker string
	text    string
}

var openTagPattern = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9_-]*)>`)

// splitTagged extracts <Name>...</Name> pairs in source order. Speaker
// names are matched exactly, including case. Empty utterances are kept so
// conversational timing survives even for filler turns. Unpaired open tags
// are skipped rather than swallowing the rest of the payload.
func splitTagged(content string) []taggedSegment {
	var segments []taggedSegment
	rest := content
	for {
		m := openTagPattern.FindStringSubmatchIndex(rest)
		if m == nil {
			return segments
		}

		name := rest[m[2]:m[3]]
		after := rest[m[1]:]
		closeIdx := strings.Index(after, "</"+name+">")
		if closeIdx < 0 {
			rest = after
			continue
		}

		segments = append(segments, taggedSegment{speaker: name, text: after[:closeIdx]})
		rest = after[closeIdx+len("</"+name+">"):]
	}
}
