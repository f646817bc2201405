package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
	natsclient "github.com/capitalize-ai/conversation-dashboard/internal/nats"
	"github.com/capitalize-ai/conversation-dashboard/pkg/logger"
)

// NATSConfig selects where events are read from. With Stream set, events are
// consumed from that JetStream stream; otherwise a core subscription is used.
type NATSConfig struct {
	Subject string
	Stream  string
}

// NATSSource feeds events published on NATS to a Bridge. Connection
// lifecycle is reported through the natsclient.Config callbacks, which should
// be wired to Bridge.OnDisconnected and Bridge.OnConnected.
type NATSSource struct {
	client *natsclient.Client
	cfg    NATSConfig
	bridge *Bridge
	logger *logger.Logger
}

// NewNATSSource creates a source over an established connection.
func NewNATSSource(client *natsclient.Client, cfg NATSConfig, bridge *Bridge, log *logger.Logger) *NATSSource {
	if cfg.Subject == "" {
		cfg.Subject = natsclient.DefaultSubject
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &NATSSource{
		client: client,
		cfg:    cfg,
		bridge: bridge,
		logger: log.Named("nats_source"),
	}
}

// Run subscribes and blocks until ctx is cancelled.
func (s *NATSSource) Run(ctx context.Context) error {
	handle := func(subject string, data []byte) {
		ev, err := decodeNATSEvent(subject, data)
		if err != nil {
			s.logger.Warn("dropping malformed event", zap.String("subject", subject), zap.Error(err))
			return
		}
		if err := s.bridge.Handle(ctx, ev); err != nil && ctx.Err() == nil {
			s.logger.Warn("failed to apply event",
				zap.String("subject", subject),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		}
	}

	var (
		sub natsclient.Subscription
		err error
	)
	if s.cfg.Stream != "" {
		sub, err = s.client.ConsumeStream(ctx, s.cfg.Stream, s.cfg.Subject, handle)
	} else {
		sub, err = s.client.Subscribe(s.cfg.Subject, handle)
	}
	if err != nil {
		return err
	}
	defer sub.Stop()

	s.logger.Info("subscribed to events",
		zap.String("subject", s.cfg.Subject),
		zap.String("stream", s.cfg.Stream),
	)
	if s.client.IsConnected() {
		if err := s.bridge.OnConnected(ctx); err != nil {
			return fmt.Errorf("enable realtime: %w", err)
		}
	}

	<-ctx.Done()
	return nil
}

// decodeNATSEvent accepts either a full event envelope or a bare payload
// whose type is carried in the subject.
func decodeNATSEvent(subject string, data []byte) (model.Event, error) {
	var ev model.Event
	if err := json.Unmarshal(data, &ev); err == nil && ev.Type != "" {
		return ev, nil
	}

	eventType, ok := natsclient.EventTypeFromSubject(subject)
	if !ok {
		return model.Event{}, fmt.Errorf("cannot determine event type for subject %q", subject)
	}
	if len(data) > 0 && !json.Valid(data) {
		return model.Event{}, fmt.Errorf("invalid JSON payload on %q", subject)
	}
	return model.Event{Type: eventType, Data: json.RawMessage(data)}, nil
}
