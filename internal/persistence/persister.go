package persistence

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dtran2108/collabo-speak/internal/transcript"
)

// Uploader uploads a named transcript document.
type Uploader interface {
	Upload(ctx context.Context, fileName, content string) (BlobRef, error)
}

// RecordCreator creates the participation record referencing an uploaded
// transcript.
type RecordCreator interface {
	Create(ctx context.Context, sessionID, userID, transcriptURL string) (string, error)
}

// Mirror receives a best-effort copy of the transcript document after a
// successful upload. Mirror failures only log.
type Mirror interface {
	MirrorTranscript(ctx context.Context, fileName, content string) error
}

// MultiMirror fans a transcript out to several mirrors, keeping the first
// error after trying them all.
type MultiMirror []Mirror

func (m MultiMirror) MirrorTranscript(ctx context.Context, fileName, content string) error {
	var firstErr error
	for _, mirror := range m {
		if err := mirror.MirrorTranscript(ctx, fileName, content); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Result reports where the transcript landed.
type Result struct {
	TranscriptURL   string
	ParticipationID string
}

// Persister turns captured entries into an uploaded transcript document
// plus a participation record. Failures here are reported to the caller
// but never abort the session flow.
type Persister struct {
	blobs   Uploader
	records RecordCreator
	mirror  Mirror
	logf    func(string, ...any)
}

func NewPersister(blobs Uploader, records RecordCreator, mirror Mirror) *Persister {
	return &Persister{blobs: blobs, records: records, mirror: mirror, logf: log.Printf}
}

// Persist formats, uploads, and records the transcript. If the upload
// fails no participation record is created and the error is returned; the
// caller is expected to continue in degraded mode.
func (p *Persister) Persist(ctx context.Context, entries []transcript.Entry, startedAt time.Time, sessionID, userID string) (Result, error) {
	doc := transcript.Document(entries, startedAt, sessionID)
	fileName := fmt.Sprintf("transcript-%s.txt", sessionID)

	ref, err := p.blobs.Upload(ctx, fileName, doc)
	if err != nil {
		return Result{}, fmt.Errorf("upload transcript: %w", err)
	}

	if p.mirror != nil {
		if err := p.mirror.MirrorTranscript(ctx, fileName, doc); err != nil {
			p.logf("warning: transcript mirror failed: %v", err)
		}
	}

	recordID, err := p.records.Create(ctx, sessionID, userID, ref.URL)
	if err != nil {
		return Result{TranscriptURL: ref.URL}, fmt.Errorf("create participation record: %w", err)
	}

	return Result{TranscriptURL: ref.URL, ParticipationID: recordID}, nil
}
