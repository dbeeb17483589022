// Package events publishes domain events after records are written. Publishing is
// always best effort: callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	TypePostingCreated     = "posting.created"
	TypeApplicationApplied = "application.applied"
)

type Event struct {
	Type        string    `json:"type"`
	PostingID   string    `json:"posting_id"`
	CandidateID string    `json:"candidate_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	URL         string    `json:"url,omitempty"`
	Score       int       `json:"score,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Subject is the channel, subject or routing key an event is sent to.
func Subject(prefix string, event Event) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return event.Type
	}
	return prefix + "." + event.Type
}

func encode(event Event) ([]byte, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

type nopPublisher struct{}

// Nop drops every event.
func Nop() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, Event) error { return nil }
func (nopPublisher) Close() error                         { return nil }

// Config selects the broker events go to.
type Config struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

// New connects the publisher named by cfg.Driver. An empty driver or "none" returns Nop.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return Nop(), nil
	case "redis":
		return NewRedis(ctx, cfg.URL, cfg.Prefix, logger)
	case "nats":
		return NewNATS(cfg.URL, cfg.Prefix, logger)
	case "rabbitmq", "amqp":
		return NewRabbitMQ(cfg.URL, cfg.Prefix, logger)
	default:
		return nil, fmt.Errorf("unsupported events driver %q", cfg.Driver)
	}
}
