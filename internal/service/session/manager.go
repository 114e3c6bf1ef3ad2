package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/domain"
	"github.com/savoro/menuvoice/internal/observability/telemetry"
	"github.com/savoro/menuvoice/internal/ports"
)

// ErrSessionNotFound is returned for turns on a session that was never
// started or already ended.
var ErrSessionNotFound = errors.New("session not found")

const cacheKeyPrefix = "session:"

// Manager owns dialogue session lifecycles. Turns within one session are
// serialized on a per-session mutex; different sessions run concurrently.
// State is mirrored into the cache after every turn so a reconnecting
// client can resume mid-dialogue.
type Manager struct {
	engine ports.DialogueEngine
	cache  ports.Cache
	ttl    time.Duration
	log    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	mu    sync.Mutex
	state *domain.DialogueState
}

func NewManager(engine ports.DialogueEngine, cache ports.Cache, ttl time.Duration, log *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Manager{
		engine:   engine,
		cache:    cache,
		ttl:      ttl,
		log:      log,
		sessions: make(map[string]*entry),
	}
}

// StartSession registers the session, resuming cached dialogue state from a
// previous connection when one is still live.
func (m *Manager) StartSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; exists {
		return nil
	}

	state := domain.NewDialogueState(sessionID)
	if cached, err := m.cache.Get(ctx, cacheKeyPrefix+sessionID); err == nil && cached != "" {
		var restored domain.DialogueState
		if err := json.Unmarshal([]byte(cached), &restored); err == nil && restored.SessionID == sessionID {
			state = &restored
			m.log.Info("Resumed dialogue session from cache",
				zap.String("session_id", sessionID),
				zap.String("phase", string(state.Phase)),
			)
		}
	}

	m.sessions[sessionID] = &entry{state: state}
	telemetry.ActiveSessions.Inc()
	return nil
}

// HandleUtterance runs one turn. A second call for the same session blocks
// until the first finishes, so the engine never sees a state concurrently
// with itself.
func (m *Manager) HandleUtterance(ctx context.Context, sessionID, utterance string) (ports.Reply, error) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return ports.Reply{}, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	reply, err := m.engine.HandleTurn(ctx, e.state, utterance)
	if err != nil {
		return ports.Reply{}, err
	}
	m.persist(ctx, e.state)
	return reply, nil
}

// EndSession drops the session and its cached state. Pending intents are
// discarded; nothing uncommitted survives a hangup.
func (m *Manager) EndSession(ctx context.Context, sessionID string) {
	m.mu.Lock()
	_, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return
	}

	telemetry.ActiveSessions.Dec()
	if err := m.cache.Delete(ctx, cacheKeyPrefix+sessionID); err != nil {
		m.log.Warn("Failed to delete cached session state",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
	m.log.Info("Dialogue session ended", zap.String("session_id", sessionID))
}

// Greeting returns the opening line for a freshly connected session.
func (m *Manager) Greeting(sessionID string) string {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return m.engine.Greeting(nil)
	}
	return m.engine.Greeting(e.state)
}

func (m *Manager) persist(ctx context.Context, state *domain.DialogueState) {
	encoded, err := json.Marshal(state)
	if err != nil {
		m.log.Error("Failed to encode dialogue state", zap.Error(err))
		return
	}
	if err := m.cache.Set(ctx, cacheKeyPrefix+state.SessionID, string(encoded), m.ttl); err != nil {
		m.log.Warn("Failed to persist dialogue state",
			zap.String("session_id", state.SessionID),
			zap.Error(err),
		)
	}
}
