// Package notify publishes transfer lifecycle events to external sinks.
package notify

import (
	"context"
	"errors"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	"github.com/fd1az/torus-bridge/internal/logger"
)

// Multi fans an event out to every publisher. A failing sink is logged and
// does not stop delivery to the others.
type Multi struct {
	publishers []app.EventPublisher
	log        logger.LoggerInterface
}

var _ app.EventPublisher = (*Multi)(nil)

// NewMulti returns a fan-out over publishers. Nil entries are skipped.
func NewMulti(log logger.LoggerInterface, publishers ...app.EventPublisher) *Multi {
	m := &Multi{log: log}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.publishers) }

// Publish implements app.EventPublisher. The returned error joins every
// sink failure.
func (m *Multi) Publish(ctx context.Context, event app.Event) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil {
			m.log.Warn(ctx, "event delivery failed", "type", event.Type, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes events to the logger. It is always present so
// events are visible without any sink configured.
type LogPublisher struct {
	log logger.LoggerInterface
}

// NewLogPublisher returns a publisher logging at info level.
func NewLogPublisher(log logger.LoggerInterface) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish implements app.EventPublisher.
func (p *LogPublisher) Publish(ctx context.Context, event app.Event) error {
	p.log.Info(ctx, "transfer event",
		"type", event.Type,
		"transaction_id", event.TransactionID,
		"direction", event.Direction,
		"step", event.Step,
		"tx_hash", event.TxHash,
	)
	return nil
}
