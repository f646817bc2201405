package nats

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
)

const (
	// SubjectPrefix is the prefix for all dashboard event subjects.
	SubjectPrefix = "dashboard.events"

	// DefaultSubject matches every dashboard event.
	DefaultSubject = SubjectPrefix + ".>"
)

// EventSubject returns the subject an event type is published on.
func EventSubject(eventType model.EventType) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, eventType)
}

// EventTypeFromSubject recovers the event type from a subject produced by
// EventSubject. It returns false for subjects outside the prefix.
func EventTypeFromSubject(subject string) (model.EventType, bool) {
	rest, ok := strings.CutPrefix(subject, SubjectPrefix+".")
	if !ok || rest == "" {
		return "", false
	}
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		rest = rest[:i]
	}
	return model.EventType(rest), true
}

// Handler receives the subject and payload of one event message.
type Handler func(subject string, data []byte)

// Subscription stops a running subscription.
type Subscription interface {
	Stop()
}

type coreSubscription struct {
	sub    *nats.Subscription
	client *Client
}

func (s *coreSubscription) Stop() {
	if err := s.sub.Unsubscribe(); err != nil {
		s.client.logger.Debug("unsubscribe failed", zap.Error(err))
	}
}

// Subscribe delivers core NATS messages on subject. Messages published while
// the connection is down are lost.
func (c *Client) Subscribe(subject string, handle Handler) (Subscription, error) {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handle(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return &coreSubscription{sub: sub, client: c}, nil
}

// ConsumeStream delivers new messages on subject from a JetStream stream
// through an ordered consumer, which survives reconnects without losing
// stream order.
func (c *Client) ConsumeStream(ctx context.Context, stream, subject string, handle Handler) (Subscription, error) {
	consumer, err := c.js.OrderedConsumer(ctx, stream, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer on %s: %w", stream, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		handle(msg.Subject(), msg.Data())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", stream, err)
	}
	return cc, nil
}
