package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
	"github.com/capitalize-ai/conversation-dashboard/pkg/logger"
)

const (
	defaultChannel      = "conversations"
	defaultPingInterval = 30 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultWriteWait    = 5 * time.Second
	defaultMaxBackoff   = 30 * time.Second

	maxEventBytes = 4 << 20
)

var errConnectionClosed = errors.New("websocket closed by server")

// WebSocketConfig configures the WebSocket push source.
type WebSocketConfig struct {
	URL          string
	Channel      string
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	MaxBackoff   time.Duration
}

type subscribeMessage struct {
	Type     string `json:"type"`
	Channel  string `json:"channel"`
	ClientID string `json:"clientId"`
}

// WebSocketSource reads push events from the backend's WebSocket endpoint
// and feeds them to a Bridge, reconnecting with exponential backoff.
type WebSocketSource struct {
	cfg      WebSocketConfig
	bridge   *Bridge
	dialer   *websocket.Dialer
	clientID string
	logger   *logger.Logger
}

// NewWebSocketSource validates cfg and creates a source. Call Run to connect.
func NewWebSocketSource(cfg WebSocketConfig, bridge *Bridge, log *logger.Logger) (*WebSocketSource, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid websocket URL scheme %q", u.Scheme)
	}

	if cfg.Channel == "" {
		cfg.Channel = defaultChannel
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = 2 * cfg.PingInterval
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if log == nil {
		log = logger.NewNop()
	}

	clientID := uuid.NewString()
	return &WebSocketSource{
		cfg:      cfg,
		bridge:   bridge,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		clientID: clientID,
		logger:   log.Named("websocket").With(zap.String("client_id", clientID)),
	}, nil
}

// Run connects and reads events until ctx is cancelled.
func (s *WebSocketSource) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = s.cfg.MaxBackoff
	bo.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if connected {
			bo.Reset()
		}
		if err == nil {
			err = errConnectionClosed
		}
		return err
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		s.logger.Warn("websocket connection lost, retrying",
			zap.Error(err),
			zap.Duration("retry_in", wait),
		)
	})

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// session runs one connection. It reports whether the connection was
// established, so the caller can reset its backoff.
func (s *WebSocketSource) session(ctx context.Context) (bool, error) {
	header := http.Header{}
	header.Set("X-Client-ID", s.clientID)

	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
	if err := conn.WriteJSON(subscribeMessage{
		Type:     "subscribe",
		Channel:  s.cfg.Channel,
		ClientID: s.clientID,
	}); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	if err := s.bridge.OnConnected(ctx); err != nil {
		return false, fmt.Errorf("enable realtime: %w", err)
	}
	defer func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.bridge.OnDisconnected(ctx); err != nil {
			s.logger.Warn("failed to switch to polling", zap.Error(err))
		}
	}()

	conn.SetReadLimit(maxEventBytes)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.keepalive(ctx, conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, nil
			}
			return true, fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))

		var ev model.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Warn("dropping malformed event", zap.Error(err))
			continue
		}
		if err := s.bridge.Handle(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			s.logger.Warn("failed to apply event",
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		}
	}
}

// keepalive pings the server and closes the connection when ctx ends, which
// unblocks the reader.
func (s *WebSocketSource) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.cfg.WriteWait))
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteWait)); err != nil {
				s.logger.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}
