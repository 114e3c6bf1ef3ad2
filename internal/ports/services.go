package ports

import (
	"context"

	"github.com/savoro/menuvoice/internal/domain"
)

// Interpreter maps one utterance to a structured intent against the current
// dialogue state and menu snapshot. Unrecognizable input yields an Unknown
// intent, never an error; only transport-level failures of the language
// capability surface as domain.ErrInterpreterUnavailable.
type Interpreter interface {
	Interpret(ctx context.Context, utterance string, state *domain.DialogueState, doc domain.MenuDocument) (*domain.Intent, error)
}

// LLMClient is the external language-understanding capability.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Reply is what the engine wants spoken back to the user after a turn, plus
// the terminal per-turn outcome when the turn committed or cancelled.
type Reply struct {
	Speech    string
	Committed *domain.ChangeEvent
	Cancelled bool
}

// DialogueEngine advances one session turn. The caller guarantees a given
// state is never handled concurrently with itself.
type DialogueEngine interface {
	HandleTurn(ctx context.Context, state *domain.DialogueState, utterance string) (Reply, error)
	Greeting(state *domain.DialogueState) string
}

// SessionManager owns session lifecycles and serializes turns per session.
type SessionManager interface {
	StartSession(ctx context.Context, sessionID string) error
	HandleUtterance(ctx context.Context, sessionID, utterance string) (Reply, error)
	EndSession(ctx context.Context, sessionID string)
}

// TokenService issues and validates session connection tokens.
type TokenService interface {
	Issue(identity, room string, ttlSeconds int) (string, error)
	Validate(token string) (identity, room, sessionID string, err error)
}
