package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/logger"
)

const flushTimeout = 5 * time.Second

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	URL     string
	Subject string
	Name    string
	Timeout time.Duration
}

// NATSPublisher publishes events as JSON on "<subject>.<event type>".
type NATSPublisher struct {
	conn    Conn
	subject string
	log     logger.LoggerInterface
}

var _ app.EventPublisher = (*NATSPublisher)(nil)

// DialNATS connects to cfg.URL with unlimited reconnects.
func DialNATS(cfg NATSConfig, log logger.LoggerInterface) (*NATSPublisher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(timeout),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn(context.Background(), "nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info(context.Background(), "nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("connect nats "+cfg.URL))
	}
	return NewNATSPublisher(conn, cfg.Subject, log), nil
}

// NewNATSPublisher publishes over an existing connection.
func NewNATSPublisher(conn Conn, subject string, log logger.LoggerInterface) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject, log: log}
}

// Subject returns the subject event is published on.
func (p *NATSPublisher) Subject(event app.Event) string {
	return fmt.Sprintf("%s.%s", p.subject, event.Type)
}

// Publish implements app.EventPublisher.
func (p *NATSPublisher) Publish(ctx context.Context, event app.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := nats.NewMsg(p.Subject(event))
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	if event.TransactionID != "" {
		msg.Header.Set(nats.MsgIdHdr, event.TransactionID+":"+string(event.Type)+":"+string(event.Step))
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	// FlushWithContext rejects contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", msg.Subject, err)
	}
	p.log.Debug(ctx, "event published", "subject", msg.Subject)
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
