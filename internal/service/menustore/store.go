package menustore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/domain"
	"github.com/savoro/menuvoice/internal/observability/telemetry"
	"github.com/savoro/menuvoice/internal/ports"
)

// StaleListener is told the new version whenever the document is swapped out
// from under the dialogue sessions by an external snapshot push.
type StaleListener func(newVersion uint64)

// Store holds the authoritative menu document: items in document order, an
// id index, and a monotonically increasing version. Every committed mutation
// increments the version exactly once and emits exactly one change event.
type Store struct {
	mu        sync.Mutex
	items     []domain.MenuItem
	index     map[string]int
	version   uint64
	publisher ports.ChangePublisher
	listeners []StaleListener
	log       *zap.Logger
}

// NewStore creates an empty store. The publisher receives committed changes
// in version order; it must not block.
func NewStore(publisher ports.ChangePublisher, log *zap.Logger) *Store {
	return &Store{
		index:     make(map[string]int),
		publisher: publisher,
		log:       log,
	}
}

// OnStale registers a listener for external snapshot replacements. Not safe
// to call after sessions start handling turns.
func (s *Store) OnStale(fn StaleListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns a deep copy of the document at its current version.
func (s *Store) Snapshot() domain.MenuDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.MenuItem, len(s.items))
	copy(items, s.items)
	return domain.MenuDocument{Items: items, Version: s.version}
}

// Apply commits a single mutation under optimistic concurrency. Only one
// Apply can succeed per version number; concurrent writers get a
// *domain.VersionConflictError and must re-fetch.
func (s *Store) Apply(ctx context.Context, m domain.Mutation, expectedVersion uint64) (domain.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expectedVersion != s.version {
		return domain.ChangeEvent{}, &domain.VersionConflictError{Expected: expectedVersion, Current: s.version}
	}

	var event domain.ChangeEvent
	switch m.Operation {
	case domain.OperationAdd:
		item := m.Item
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.Price = domain.RoundPrice(item.Price)
		if err := item.Validate(); err != nil {
			return domain.ChangeEvent{}, err
		}
		if _, exists := s.index[item.ID]; exists {
			return domain.ChangeEvent{}, &domain.ValidationError{Field: "id", Reason: "duplicate item identifier"}
		}
		s.index[item.ID] = len(s.items)
		s.items = append(s.items, item)
		event = domain.ChangeEvent{Operation: domain.OperationAdd, Item: &item, ItemID: item.ID}

	case domain.OperationUpdate:
		idx, ok := s.index[m.TargetID]
		if !ok {
			return domain.ChangeEvent{}, domain.ErrNotFound
		}
		if m.Patch.IsEmpty() {
			return domain.ChangeEvent{}, &domain.ValidationError{Field: "patch", Reason: "no fields to change"}
		}
		updated := s.items[idx]
		applyPatch(&updated, m.Patch)
		if err := updated.Validate(); err != nil {
			return domain.ChangeEvent{}, err
		}
		s.items[idx] = updated
		event = domain.ChangeEvent{Operation: domain.OperationUpdate, Item: &updated, ItemID: updated.ID}

	case domain.OperationDelete:
		idx, ok := s.index[m.TargetID]
		if !ok {
			return domain.ChangeEvent{}, domain.ErrNotFound
		}
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		delete(s.index, m.TargetID)
		for i := idx; i < len(s.items); i++ {
			s.index[s.items[i].ID] = i
		}
		event = domain.ChangeEvent{Operation: domain.OperationDelete, ItemID: m.TargetID}

	default:
		return domain.ChangeEvent{}, &domain.ValidationError{Field: "operation", Reason: "unknown operation " + string(m.Operation)}
	}

	s.version++
	event.Version = s.version
	event.Timestamp = time.Now().UTC()

	telemetry.MenuDocumentVersion.Set(float64(s.version))
	s.log.Info("menu mutation committed",
		zap.String("operation", string(event.Operation)),
		zap.String("item_id", event.ItemID),
		zap.Uint64("version", event.Version),
	)

	// Published inside the critical section so subscribers observe events in
	// version order. The publisher fan-out is non-blocking.
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
	return event, nil
}

// ReplaceSnapshot installs a full externally-sourced document. Items without
// identifiers get one assigned; items failing validation are dropped rather
// than rejecting the whole push.
func (s *Store) ReplaceSnapshot(ctx context.Context, items []domain.MenuItem) uint64 {
	s.mu.Lock()

	s.items = s.items[:0]
	s.index = make(map[string]int, len(items))
	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.Price = domain.RoundPrice(item.Price)
		if err := item.Validate(); err != nil {
			s.log.Warn("dropping invalid item from pushed snapshot",
				zap.String("item_id", item.ID),
				zap.Error(err),
			)
			continue
		}
		if _, dup := s.index[item.ID]; dup {
			s.log.Warn("dropping duplicate item from pushed snapshot", zap.String("item_id", item.ID))
			continue
		}
		s.index[item.ID] = len(s.items)
		s.items = append(s.items, item)
	}

	s.version++
	version := s.version
	count := len(s.items)
	listeners := make([]StaleListener, len(s.listeners))
	copy(listeners, s.listeners)

	telemetry.MenuDocumentVersion.Set(float64(version))

	if s.publisher != nil {
		s.publisher.Publish(domain.ChangeEvent{
			Operation: domain.OperationReplace,
			Version:   version,
			Timestamp: time.Now().UTC(),
		})
	}
	s.mu.Unlock()

	s.log.Info("menu snapshot replaced",
		zap.Int("items", count),
		zap.Uint64("version", version),
	)

	for _, fn := range listeners {
		fn(version)
	}
	return version
}

func applyPatch(item *domain.MenuItem, p domain.ItemPatch) {
	if p.Name != nil {
		item.Name = strings.TrimSpace(*p.Name)
	}
	if p.Price != nil {
		item.Price = domain.RoundPrice(*p.Price)
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Category != nil {
		item.Category = strings.TrimSpace(*p.Category)
	}
	if p.Available != nil {
		item.Available = *p.Available
	}
}
