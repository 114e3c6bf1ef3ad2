package ports

import (
	"context"
	"time"

	"github.com/savoro/menuvoice/internal/domain"
)

// Cache is the generic key/value store used for session-state persistence.
// Implemented by the redis and local adapters.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}

// MenuStore owns the authoritative menu document.
type MenuStore interface {
	// Snapshot returns a consistent point-in-time copy. Always succeeds.
	Snapshot() domain.MenuDocument

	// Apply commits one mutation atomically. It fails with
	// *domain.VersionConflictError when expectedVersion is stale, with
	// domain.ErrNotFound when the target is gone, and with
	// *domain.ValidationError when the resulting item would violate an
	// invariant. On success the version has been incremented exactly once
	// and exactly one change notification has been emitted.
	Apply(ctx context.Context, m domain.Mutation, expectedVersion uint64) (domain.ChangeEvent, error)

	// ReplaceSnapshot swaps in a full document pushed from outside (the
	// dashboard or the extraction collaborator). Always succeeds, bumps the
	// version, and signals sessions that cached versions are stale.
	ReplaceSnapshot(ctx context.Context, items []domain.MenuItem) uint64
}

// ChangePublisher receives every committed change, in version order.
type ChangePublisher interface {
	Publish(event domain.ChangeEvent)
}
