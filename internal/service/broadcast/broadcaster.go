package broadcast

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/domain"
	"github.com/savoro/menuvoice/internal/observability/telemetry"
)

// SubjectMenuEdit is the queue subject committed changes are mirrored to,
// so other services can follow the menu without holding a websocket.
const SubjectMenuEdit = "menu.edit"

// ChannelMenuEdit is the websocket message type dashboards subscribe to.
const ChannelMenuEdit = "menu-edit"

// Sink receives fan-out frames for connected dashboards. Implementations
// must not block the caller.
type Sink interface {
	Broadcast(data []byte)
}

// Queue mirrors change events onto the message bus.
type Queue interface {
	Publish(subject string, data []byte) error
}

// Envelope is the wire frame sent to dashboards.
type Envelope struct {
	Type string             `json:"type"`
	Data domain.ChangeEvent `json:"data"`
}

// Broadcaster implements the ChangePublisher port. It is called from inside
// the store's commit path, so both legs are non-blocking: the sink buffers
// and drops slow clients, the queue publish is fire-and-forget.
type Broadcaster struct {
	sink  Sink
	queue Queue
	log   *zap.Logger
}

// NewBroadcaster wires the fan-out legs. Either leg may be nil when the
// deployment runs without dashboards or without a queue.
func NewBroadcaster(sink Sink, queue Queue, log *zap.Logger) *Broadcaster {
	return &Broadcaster{sink: sink, queue: queue, log: log}
}

func (b *Broadcaster) Publish(event domain.ChangeEvent) {
	data, err := json.Marshal(Envelope{Type: ChannelMenuEdit, Data: event})
	if err != nil {
		b.log.Error("Failed to encode change event", zap.Error(err))
		return
	}

	if b.sink != nil {
		b.sink.Broadcast(data)
	}
	if b.queue != nil {
		if err := b.queue.Publish(SubjectMenuEdit, data); err != nil {
			b.log.Warn("Failed to publish change event to queue",
				zap.String("subject", SubjectMenuEdit),
				zap.Error(err),
			)
		}
	}

	telemetry.ChangeEventsPublished.WithLabelValues(string(event.Operation)).Inc()
}
