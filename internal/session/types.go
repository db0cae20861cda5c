package session

import (
	"context"
	"time"

	"github.com/dtran2108/collabo-speak/internal/evaluation"
	"github.com/dtran2108/collabo-speak/internal/ingest"
	"github.com/dtran2108/collabo-speak/internal/persistence"
	"github.com/dtran2108/collabo-speak/internal/signaling"
	"github.com/dtran2108/collabo-speak/internal/transport"
	"github.com/dtran2108/collabo-speak/internal/transcript"
)

// PermissionGate reports whether microphone access was granted. The gate's
// state is owned outside the controller and survives session resets.
type PermissionGate interface {
	Granted() bool
}

// CredentialSource obtains a one-time connection credential from the
// signaling endpoint.
type CredentialSource interface {
	AcquireCredential(ctx context.Context, agentID string, mode signaling.Mode) (signaling.Credential, error)
}

// Transport opens and closes the realtime connection. Connect is
// asynchronous: the callbacks are the only way the session leaves
// Connecting.
type Transport interface {
	Connect(ctx context.Context, cred signaling.Credential, cb transport.Callbacks) error
	Close() error
}

// Ingestor parses raw inbound payloads into transcript entries.
type Ingestor interface {
	Parse(raw []byte) ingest.Outcome
}

// Persister uploads the transcript and creates the participation record.
type Persister interface {
	Persist(ctx context.Context, entries []transcript.Entry, startedAt time.Time, sessionID, userID string) (persistence.Result, error)
}

// RecordUpdater patches the participation record after it exists.
type RecordUpdater interface {
	AttachReflection(ctx context.Context, recordID, reflection string) error
	AttachEvaluation(ctx context.Context, recordID string, result *evaluation.Result) error
}

// Evaluator produces structured feedback for a transcript. One call, no
// internal retry.
type Evaluator interface {
	Evaluate(ctx context.Context, transcriptText string) (*evaluation.Result, error)
}

// ArchiveStore mirrors session data locally for the observer UI. All
// archive writes are best-effort.
type ArchiveStore interface {
	CreateSession(id, userID, agentID string, startedAt time.Time) error
	AppendEntry(sessionID string, entry transcript.Entry) error
	EndSession(id string, endedAt time.Time, transcriptURL, participationID string) error
	SaveReflection(id, reflection string) error
	SaveEvaluation(id string, result *evaluation.Result, status string) error
}

// EventBroadcaster pushes session events to connected observer UIs.
type EventBroadcaster interface {
	BroadcastPhase(phase Phase, errorMessage string)
	BroadcastEntry(entry transcript.Entry)
	BroadcastTimeWarning()
	BroadcastEvaluation(result *evaluation.Result, errorMessage string)
}
