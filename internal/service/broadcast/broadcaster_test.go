package broadcast

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/domain"
	"github.com/savoro/menuvoice/internal/mocks"
)

type captureSink struct {
	frames [][]byte
}

func (s *captureSink) Broadcast(data []byte) {
	s.frames = append(s.frames, data)
}

func TestPublish_FansOutToSinkAndQueue(t *testing.T) {
	// Arrange
	sink := &captureSink{}
	queue := mocks.NewMockMessageQueue()
	b := NewBroadcaster(sink, queue, zap.NewNop())
	item := &domain.MenuItem{ID: "i1", Name: "Tiramisu", Price: 6, Category: "Desserts", Available: true}

	// Act
	b.Publish(domain.ChangeEvent{
		Operation: domain.OperationAdd,
		Item:      item,
		ItemID:    "i1",
		Version:   3,
		Timestamp: time.Now().UTC(),
	})

	// Assert
	if len(sink.frames) != 1 {
		t.Fatalf("expected one sink frame, got %d", len(sink.frames))
	}
	var envelope Envelope
	if err := json.Unmarshal(sink.frames[0], &envelope); err != nil {
		t.Fatalf("frame not decodable: %v", err)
	}
	if envelope.Type != ChannelMenuEdit {
		t.Errorf("expected type %q, got %q", ChannelMenuEdit, envelope.Type)
	}
	if envelope.Data.Version != 3 || envelope.Data.Item == nil || envelope.Data.Item.Name != "Tiramisu" {
		t.Errorf("unexpected payload: %+v", envelope.Data)
	}

	published := queue.Published(SubjectMenuEdit)
	if len(published) != 1 {
		t.Fatalf("expected one queue message, got %d", len(published))
	}
}

func TestPublish_QueueFailureDoesNotPanicOrBlock(t *testing.T) {
	sink := &captureSink{}
	queue := mocks.NewMockMessageQueue()
	queue.PublishFunc = func(subject string, data []byte) error {
		return errors.New("broker down")
	}
	b := NewBroadcaster(sink, queue, zap.NewNop())

	b.Publish(domain.ChangeEvent{Operation: domain.OperationDelete, ItemID: "i1", Version: 4})

	if len(sink.frames) != 1 {
		t.Fatal("sink must still receive the frame when the queue fails")
	}
}

func TestPublish_NilLegsAreSkipped(t *testing.T) {
	b := NewBroadcaster(nil, nil, zap.NewNop())

	// Must not panic.
	b.Publish(domain.ChangeEvent{Operation: domain.OperationUpdate, ItemID: "i1", Version: 5})
}
