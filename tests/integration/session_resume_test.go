package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/savoro/menuvoice/internal/adapter/cache"
	"github.com/savoro/menuvoice/internal/service/dialogue"
	"github.com/savoro/menuvoice/internal/service/interpreter"
	"github.com/savoro/menuvoice/internal/service/menustore"
	"github.com/savoro/menuvoice/internal/service/session"
)

// newManager wires a session manager against the shared Redis cache. Each
// call builds a fresh engine and store, simulating an independent process.
func newManager(t *testing.T, env *TestEnv) *session.Manager {
	t.Helper()

	redisCache, err := cache.NewRedisCache(env.RedisURL, env.Logger)
	if err != nil {
		t.Fatalf("Failed to connect cache: %v", err)
	}

	store := menustore.NewStore(nil, env.Logger)
	interp := interpreter.NewService(nil, env.Logger)
	engine := dialogue.NewEngine(store, interp, 3, env.Logger)
	return session.NewManager(engine, redisCache, time.Minute, env.Logger)
}

// TestSessionResume_AcrossManagers verifies a mid-dialogue session survives
// a reconnect to a different process: the cached state carries the pending
// question over.
func TestSessionResume_AcrossManagers(t *testing.T) {
	env := SetupTestEnvironment(t)
	FlushRedis(t, env.RedisURL)
	ctx := context.Background()

	// Arrange: start a dialogue and leave a question outstanding
	first := newManager(t, env)
	if err := first.StartSession(ctx, "sess-resume"); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}

	reply, err := first.HandleUtterance(ctx, "sess-resume", "add a new item called lemonade")
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if !strings.Contains(strings.ToLower(reply.Speech), "price") {
		t.Fatalf("Expected a price question, got %q", reply.Speech)
	}

	// Act: reconnect through a second manager sharing only the cache
	second := newManager(t, env)
	if err := second.StartSession(ctx, "sess-resume"); err != nil {
		t.Fatalf("Failed to resume session: %v", err)
	}

	reply, err = second.HandleUtterance(ctx, "sess-resume", "")
	if err != nil {
		t.Fatalf("Turn after resume failed: %v", err)
	}

	// Assert: the pending question survived the reconnect
	if !strings.Contains(strings.ToLower(reply.Speech), "price") {
		t.Errorf("Expected resumed session to repeat the price question, got %q", reply.Speech)
	}
}

// TestSessionEnd_DiscardsCachedState verifies a hung-up session does not
// leak its pending intent into a later session with the same ID.
func TestSessionEnd_DiscardsCachedState(t *testing.T) {
	env := SetupTestEnvironment(t)
	FlushRedis(t, env.RedisURL)
	ctx := context.Background()

	mgr := newManager(t, env)
	if err := mgr.StartSession(ctx, "sess-end"); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	if _, err := mgr.HandleUtterance(ctx, "sess-end", "add a new item called cold brew"); err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	mgr.EndSession(ctx, "sess-end")

	fresh := newManager(t, env)
	if err := fresh.StartSession(ctx, "sess-end"); err != nil {
		t.Fatalf("Failed to start fresh session: %v", err)
	}

	reply, err := fresh.HandleUtterance(ctx, "sess-end", "")
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if strings.Contains(strings.ToLower(reply.Speech), "price") {
		t.Errorf("Expected a fresh session, but the old question came back: %q", reply.Speech)
	}
}
