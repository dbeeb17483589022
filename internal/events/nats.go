package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const natsConnectTimeout = 10 * time.Second

type natsPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

func NewNATS(natsURL, prefix string, logger *zap.Logger) (Publisher, error) {
	opts := []nats.Option{
		nats.Name("job-radar"),
		nats.Timeout(natsConnectTimeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}

	conn, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	return &natsPublisher{conn: conn, prefix: prefix, logger: logger}, nil
}

func (p *natsPublisher) Publish(_ context.Context, event Event) error {
	data, err := encode(event)
	if err != nil {
		return err
	}

	subject := Subject(p.prefix, event)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}

	p.logger.Debug("published event", zap.String("subject", subject), zap.String("posting_id", event.PostingID))
	return nil
}

func (p *natsPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
