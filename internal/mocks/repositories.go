package mocks

import (
	"context"
	"sync"

	"github.com/savoro/menuvoice/internal/domain"
)

// MockMenuStore is a mock implementation of the MenuStore port. By default
// it serves the Doc field and applies nothing; override the funcs to script
// conflict and failure behavior.
type MockMenuStore struct {
	mu  sync.Mutex
	Doc domain.MenuDocument

	SnapshotFunc        func() domain.MenuDocument
	ApplyFunc           func(ctx context.Context, m domain.Mutation, expectedVersion uint64) (domain.ChangeEvent, error)
	ReplaceSnapshotFunc func(ctx context.Context, items []domain.MenuItem) uint64

	Applied []domain.Mutation
}

func NewMockMenuStore(items ...domain.MenuItem) *MockMenuStore {
	return &MockMenuStore{Doc: domain.MenuDocument{Items: items, Version: 1}}
}

func (m *MockMenuStore) Snapshot() domain.MenuDocument {
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]domain.MenuItem, len(m.Doc.Items))
	copy(items, m.Doc.Items)
	return domain.MenuDocument{Items: items, Version: m.Doc.Version}
}

func (m *MockMenuStore) Apply(ctx context.Context, mut domain.Mutation, expectedVersion uint64) (domain.ChangeEvent, error) {
	m.mu.Lock()
	m.Applied = append(m.Applied, mut)
	m.mu.Unlock()
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, mut, expectedVersion)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if expectedVersion != m.Doc.Version {
		return domain.ChangeEvent{}, &domain.VersionConflictError{Expected: expectedVersion, Current: m.Doc.Version}
	}
	m.Doc.Version++
	return domain.ChangeEvent{Operation: mut.Operation, ItemID: mut.TargetID, Version: m.Doc.Version}, nil
}

func (m *MockMenuStore) ReplaceSnapshot(ctx context.Context, items []domain.MenuItem) uint64 {
	if m.ReplaceSnapshotFunc != nil {
		return m.ReplaceSnapshotFunc(ctx, items)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Doc.Items = items
	m.Doc.Version++
	return m.Doc.Version
}

// MockChangePublisher collects published change events.
type MockChangePublisher struct {
	mu     sync.Mutex
	Events []domain.ChangeEvent

	PublishFunc func(event domain.ChangeEvent)
}

func (m *MockChangePublisher) Publish(event domain.ChangeEvent) {
	if m.PublishFunc != nil {
		m.PublishFunc(event)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

// All returns a copy of the collected events.
func (m *MockChangePublisher) All() []domain.ChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]domain.ChangeEvent, len(m.Events))
	copy(events, m.Events)
	return events
}
