package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtran2108/collabo-speak/internal/evaluation"
	"github.com/dtran2108/collabo-speak/internal/signaling"
	"github.com/dtran2108/collabo-speak/internal/storage"
	"github.com/dtran2108/collabo-speak/internal/transcript"
	"github.com/dtran2108/collabo-speak/internal/transport"
)

// Deps wires the controller's collaborators. Archive and Hub are optional;
// everything else is required for a functioning session.
type Deps struct {
	Gate        PermissionGate
	Credentials CredentialSource
	Transport   Transport
	Ingestor    Ingestor
	Persister   Persister
	Records     RecordUpdater
	Evaluator   Evaluator
	Archive     ArchiveStore
	Hub         EventBroadcaster

	AgentID   string
	UserID    string
	Mode      signaling.Mode
	WarnAfter time.Duration
	Logf      func(string, ...any)
}

// Controller owns the session state machine. It is the only mutator of
// session state, and every mutation happens under one mutex inside the
// triggering callback, so handler effects never interleave.
//
// Out-of-order external triggers (a second Start while connecting, a
// duplicate End while ending) are rejected as no-ops, never as errors.
type Controller struct {
	deps    Deps
	warning *WarningTimer
	logf    func(string, ...any)
	now     func() time.Time
	newID   func() string

	mu              sync.Mutex
	phase           Phase
	cancelRequested bool
	sessionID       string
	startedAt       time.Time
	entries         []transcript.Entry
	participationID string
	transcriptURL   string
	errorMessage    string
	warningFired    bool
	feedback        *evaluation.Result
	evaluationError string
}

// Snapshot is a point-in-time copy of the session state for the UI.
type Snapshot struct {
	Phase           Phase              `json:"phase"`
	SessionID       string             `json:"session_id"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	Entries         []transcript.Entry `json:"entries"`
	ParticipationID string             `json:"participation_id,omitempty"`
	ErrorMessage    string             `json:"error_message,omitempty"`
	WarningFired    bool               `json:"warning_fired"`
	Feedback        *evaluation.Result `json:"feedback,omitempty"`
	EvaluationError string             `json:"evaluation_error,omitempty"`
}

func NewController(deps Deps) *Controller {
	if deps.Logf == nil {
		deps.Logf = log.Printf
	}
	if deps.Mode == "" {
		deps.Mode = signaling.ModeWebSocket
	}
	return &Controller{
		deps:    deps,
		warning: NewWarningTimer(deps.WarnAfter),
		logf:    deps.Logf,
		now:     time.Now,
		newID:   uuid.NewString,
		phase:   PhaseIdle,
	}
}

// Start begins a new session: clears per-session state, acquires a fresh
// credential, and opens the transport. The microphone permission gate is
// checked first; a denied gate refuses the transition without changing
// phase. Start while a session is underway is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	if c.deps.Gate == nil || !c.deps.Gate.Granted() {
		return ErrPermissionDenied
	}

	c.mu.Lock()
	if !c.phase.startable() {
		c.mu.Unlock()
		return nil
	}
	c.resetLocked()
	c.phase = PhaseConnecting
	c.sessionID = c.newID()
	c.mu.Unlock()
	c.broadcastPhase()

	cred, err := c.deps.Credentials.AcquireCredential(ctx, c.deps.AgentID, c.deps.Mode)
	if err != nil {
		c.fail(err)
		return err
	}

	// A cancel that arrived during the credential fetch found nothing to
	// close; honor it here instead of opening the transport.
	if c.cancelPending() {
		c.fail(fmt.Errorf("connection attempt cancelled"))
		return nil
	}

	if err := c.deps.Transport.Connect(ctx, cred, transport.Callbacks{
		OnConnected:  c.handleConnected,
		OnMessage:    c.handleMessage,
		OnDisconnect: c.handleDisconnect,
	}); err != nil {
		c.fail(err)
		return err
	}

	if c.cancelPending() {
		_ = c.deps.Transport.Close()
	}
	return nil
}

// Cancel abandons a hung connection attempt. The transport's disconnect
// callback then drives Connecting into Error; outside Connecting this is
// a no-op. The request is also remembered, so a cancel racing the
// credential fetch still takes effect once the fetch returns.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.phase != PhaseConnecting {
		c.mu.Unlock()
		return
	}
	c.cancelRequested = true
	c.mu.Unlock()
	_ = c.deps.Transport.Close()
}

func (c *Controller) cancelPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelRequested
}

// End finishes the session: the transport closes first so audio stops
// immediately, then the transcript is persisted. Persistence failure is
// downgraded to a warning and the session still reaches ReflectionPending,
// because collecting the reflection has value without a saved transcript.
func (c *Controller) End(ctx context.Context) error {
	if !c.beginEnding() {
		return nil
	}
	_ = c.deps.Transport.Close()
	c.persistAndAdvance(ctx)
	return nil
}

// SubmitReflection attaches the reflection to the participation record
// (best-effort) and runs the evaluation. Whatever the evaluation outcome,
// the session reaches Complete: a failed evaluation means no feedback, not
// a failed session.
func (c *Controller) SubmitReflection(ctx context.Context, reflection string) error {
	c.mu.Lock()
	if c.phase != PhaseReflectionPending {
		c.mu.Unlock()
		return nil
	}
	c.phase = PhaseEvaluating
	recordID := c.participationID
	sessionID := c.sessionID
	entries := append([]transcript.Entry(nil), c.entries...)
	c.mu.Unlock()
	c.broadcastPhase()

	if recordID == "" {
		c.logf("no participation record, skipping reflection attach")
	} else if err := c.deps.Records.AttachReflection(ctx, recordID, reflection); err != nil {
		c.logf("warning: attach reflection failed: %v", err)
	}
	c.archive(func(a ArchiveStore) error { return a.SaveReflection(sessionID, reflection) })

	result, err := c.deps.Evaluator.Evaluate(ctx, transcript.PlainText(entries))

	c.mu.Lock()
	c.phase = PhaseComplete
	if err != nil {
		c.feedback = nil
		c.evaluationError = err.Error()
	} else {
		c.feedback = result
		c.evaluationError = ""
	}
	c.mu.Unlock()

	if err != nil {
		c.logf("warning: evaluation failed: %v", err)
		c.archive(func(a ArchiveStore) error { return a.SaveEvaluation(sessionID, nil, storage.EvaluationFailed) })
		c.broadcastEvaluation(nil, err.Error())
		c.broadcastPhase()
		return nil
	}

	// The result is already committed for display; persistence of it is a
	// best-effort side task.
	if recordID == "" {
		c.logf("no participation record, skipping evaluation attach")
	} else if attachErr := c.deps.Records.AttachEvaluation(ctx, recordID, result); attachErr != nil {
		c.logf("warning: attach evaluation failed: %v", attachErr)
	}
	c.archive(func(a ArchiveStore) error { return a.SaveEvaluation(sessionID, result, storage.EvaluationCompleted) })
	c.broadcastEvaluation(result, "")
	c.broadcastPhase()
	return nil
}

// Reset returns a finished or failed session to Idle with all per-session
// fields at their defaults. Permission gate state is untouched.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.phase != PhaseComplete && c.phase != PhaseError {
		c.mu.Unlock()
		return
	}
	c.resetLocked()
	c.mu.Unlock()
	c.broadcastPhase()
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Phase:           c.phase,
		SessionID:       c.sessionID,
		Entries:         append([]transcript.Entry(nil), c.entries...),
		ParticipationID: c.participationID,
		ErrorMessage:    c.errorMessage,
		WarningFired:    c.warningFired,
		Feedback:        c.feedback,
		EvaluationError: c.evaluationError,
	}
	if !c.startedAt.IsZero() {
		startedAt := c.startedAt
		snap.StartedAt = &startedAt
	}
	return snap
}

func (c *Controller) handleConnected() {
	c.mu.Lock()
	if c.phase != PhaseConnecting {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseActive
	c.startedAt = c.now().UTC()
	sessionID := c.sessionID
	startedAt := c.startedAt
	c.mu.Unlock()

	c.warning.Arm(c.handleWarning)
	c.archive(func(a ArchiveStore) error {
		return a.CreateSession(sessionID, c.deps.UserID, c.deps.AgentID, startedAt)
	})
	c.broadcastPhase()
}

func (c *Controller) handleMessage(raw []byte) {
	c.mu.Lock()
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return
	}
	out := c.deps.Ingestor.Parse(raw)
	c.entries = append(c.entries, out.Entries...)
	sessionID := c.sessionID
	c.mu.Unlock()

	if out.Fallback {
		c.logf("warning: unparseable inbound payload kept as plain text")
	}
	for _, entry := range out.Entries {
		entry := entry
		c.archive(func(a ArchiveStore) error { return a.AppendEntry(sessionID, entry) })
		if c.deps.Hub != nil {
			c.deps.Hub.BroadcastEntry(entry)
		}
	}
}

func (c *Controller) handleDisconnect(err error) {
	c.mu.Lock()
	phase := c.phase
	c.mu.Unlock()

	switch phase {
	case PhaseConnecting:
		if err == nil {
			err = fmt.Errorf("connection attempt cancelled")
		}
		c.fail(err)
	case PhaseActive:
		if err == nil {
			return
		}
		// Abnormal end: persist whatever transcript was captured.
		c.logf("warning: transport failed mid-session: %v", err)
		if c.beginEnding() {
			_ = c.deps.Transport.Close()
			c.persistAndAdvance(context.Background())
		}
	default:
		// End already closed the transport; nothing to do.
	}
}

func (c *Controller) handleWarning() {
	c.mu.Lock()
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return
	}
	c.warningFired = true
	c.mu.Unlock()

	if c.deps.Hub != nil {
		c.deps.Hub.BroadcastTimeWarning()
	}
}

// beginEnding performs the Active -> Ending transition. It reports false
// when the session is not active, which makes duplicate end triggers
// no-ops.
func (c *Controller) beginEnding() bool {
	c.mu.Lock()
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return false
	}
	c.phase = PhaseEnding
	c.mu.Unlock()

	c.warning.Disarm()
	c.broadcastPhase()
	return true
}

func (c *Controller) persistAndAdvance(ctx context.Context) {
	c.mu.Lock()
	entries := append([]transcript.Entry(nil), c.entries...)
	startedAt := c.startedAt
	sessionID := c.sessionID
	c.mu.Unlock()

	res, err := c.deps.Persister.Persist(ctx, entries, startedAt, sessionID, c.deps.UserID)
	if err != nil {
		c.logf("warning: transcript persistence failed: %v", err)
	}

	c.mu.Lock()
	c.participationID = res.ParticipationID
	c.transcriptURL = res.TranscriptURL
	c.phase = PhaseReflectionPending
	c.mu.Unlock()

	endedAt := c.now().UTC()
	c.archive(func(a ArchiveStore) error {
		return a.EndSession(sessionID, endedAt, res.TranscriptURL, res.ParticipationID)
	})
	c.broadcastPhase()
}

// fail moves the session into Error. Only Connecting, Active, and Ending
// can fail; later phases absorb their errors as warnings instead.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	switch c.phase {
	case PhaseConnecting, PhaseActive, PhaseEnding:
	default:
		c.mu.Unlock()
		return
	}
	c.phase = PhaseError
	c.errorMessage = err.Error()
	c.mu.Unlock()

	c.warning.Disarm()
	c.broadcastPhase()
}

// resetLocked restores per-session fields to their defaults. Callers hold
// the mutex.
func (c *Controller) resetLocked() {
	c.phase = PhaseIdle
	c.cancelRequested = false
	c.sessionID = ""
	c.startedAt = time.Time{}
	c.entries = nil
	c.participationID = ""
	c.transcriptURL = ""
	c.errorMessage = ""
	c.warningFired = false
	c.feedback = nil
	c.evaluationError = ""
}

func (c *Controller) archive(op func(ArchiveStore) error) {
	if c.deps.Archive == nil {
		return
	}
	if err := op(c.deps.Archive); err != nil {
		c.logf("warning: session archive write failed: %v", err)
	}
}

func (c *Controller) broadcastPhase() {
	if c.deps.Hub == nil {
		return
	}
	c.mu.Lock()
	phase := c.phase
	msg := c.errorMessage
	c.mu.Unlock()
	c.deps.Hub.BroadcastPhase(phase, msg)
}

func (c *Controller) broadcastEvaluation(result *evaluation.Result, errorMessage string) {
	if c.deps.Hub != nil {
		c.deps.Hub.BroadcastEvaluation(result, errorMessage)
	}
}
