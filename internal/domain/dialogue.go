package domain

// Phase is the dialogue engine's state for one session.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseCollecting     Phase = "collecting"
	PhaseDisambiguating Phase = "disambiguating"
	PhaseConfirming     Phase = "confirming"
)

// DialogueState is the per-session mutable record the engine advances one
// turn at a time. It is created at session start, reset to idle after every
// commit or cancellation, and discarded at session end. The struct is
// JSON-serializable so a session can be rehydrated from the session store.
type DialogueState struct {
	SessionID string `json:"session_id"`
	Phase     Phase  `json:"phase"`

	// Pending is the intent being filled, disambiguated or confirmed.
	Pending *Intent `json:"pending,omitempty"`

	// PendingField is the slot the last emitted question asked about, so the
	// next turn can be tried as an answer to exactly that question.
	PendingField Field `json:"pending_field,omitempty"`

	// LastQuestion is re-spoken when the user gives no usable value.
	LastQuestion string `json:"last_question,omitempty"`

	// Retries counts failed confirmation or disambiguation attempts; the
	// engine force-cancels when it reaches the configured bound.
	Retries int `json:"retries"`

	// SnapshotVersion is the document version the pending intent was built
	// against, used as the expected version at commit time.
	SnapshotVersion uint64 `json:"snapshot_version"`
}

// NewDialogueState returns an idle state for the session.
func NewDialogueState(sessionID string) *DialogueState {
	return &DialogueState{SessionID: sessionID, Phase: PhaseIdle}
}

// Reset clears everything back to idle, keeping the session identity.
func (s *DialogueState) Reset() {
	s.Phase = PhaseIdle
	s.Pending = nil
	s.PendingField = ""
	s.LastQuestion = ""
	s.Retries = 0
	s.SnapshotVersion = 0
}

// Idle reports whether no intent is in flight.
func (s *DialogueState) Idle() bool { return s.Phase == PhaseIdle }

// AwaitingAnswer reports whether the engine asked a question last turn.
func (s *DialogueState) AwaitingAnswer() bool {
	return s.Phase == PhaseCollecting && s.PendingField != ""
}
