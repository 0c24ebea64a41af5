package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher writes events to NATS core subjects.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewNATSPublisher connects to url. The connection reconnects indefinitely; publishes
// made while disconnected are buffered by the client.
func NewNATSPublisher(url, name string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{conn: nc, logger: logger}, nil
}

// Publish encodes the event as JSON and publishes it on its subject. The event id
// is sent as Nats-Msg-Id so JetStream-backed subjects de-duplicate retries.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Subject, err)
	}
	msg := nats.NewMsg(event.Subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Subject, err)
	}
	p.logger.Debug("event published", zap.String("subject", event.Subject), zap.String("event_id", event.ID))
	return nil
}

// Connected reports whether the connection is currently usable.
func (p *NATSPublisher) Connected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.FlushTimeout(2 * time.Second); err != nil {
		p.logger.Warn("nats flush failed", zap.Error(err))
	}
	p.conn.Close()
	return nil
}
