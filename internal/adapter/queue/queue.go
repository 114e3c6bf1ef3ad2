package queue

import (
	"fmt"

	"go.uber.org/zap"
)

// MessageQueue is the bus the change feed is mirrored onto: every committed
// menu mutation is published so downstream services (kitchen displays,
// printers, sync jobs) can follow without a websocket.
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	Close() error
}

// New builds a queue for the configured driver.
func New(driver, url string, log *zap.Logger) (MessageQueue, error) {
	switch driver {
	case "nats":
		return NewNATSQueue(url, log)
	case "rabbitmq":
		return NewRabbitMQQueue(url, log)
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown queue driver %q", driver)
	}
}
