package session

// Phase is the single tagged state of a conversation session. All session
// flags the UI cares about derive from it, so contradictory combinations
// cannot occur.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseConnecting        Phase = "connecting"
	PhaseActive            Phase = "active"
	PhaseEnding            Phase = "ending"
	PhaseReflectionPending Phase = "reflection_pending"
	PhaseEvaluating        Phase = "evaluating"
	PhaseComplete          Phase = "complete"
	PhaseError             Phase = "error"
)

// startable reports whether Start may begin a new session from this phase.
// Error is re-entrant and starting from Complete implies an implicit reset.
func (p Phase) startable() bool {
	return p == PhaseIdle || p == PhaseError || p == PhaseComplete
}
