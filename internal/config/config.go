// Package config provides environment configuration for the dashboard service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Realtime transports.
const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
	TransportNone      = "none"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Backend settings
	BackendURL   string
	FetchTimeout time.Duration

	// Pagination
	ConversationsPageSize int
	MessagesPageSize      int

	// Realtime settings
	RealtimeTransport string
	RealtimeWSURL     string
	PollInterval      time.Duration

	// NATS settings
	NATSURL      string
	NATSSubject  string
	NATSStream   string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Cache freshness
	CacheTTLRealtime time.Duration
	CacheTTLPolling  time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// CORS
	AllowedOrigins []string

	// Logging
	Environment string
	LogLevel    string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	backendURL := getEnv("BACKEND_URL", "http://localhost:3333")

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0),

		// Backend
		BackendURL:   backendURL,
		FetchTimeout: getDurationEnv("FETCH_TIMEOUT", 15*time.Second),

		// Pagination
		ConversationsPageSize: getIntEnv("CONVERSATIONS_PAGE_SIZE", 10),
		MessagesPageSize:      getIntEnv("MESSAGES_PAGE_SIZE", 50),

		// Realtime
		RealtimeTransport: strings.ToLower(getEnv("REALTIME_TRANSPORT", TransportWebSocket)),
		RealtimeWSURL:     getEnv("REALTIME_WS_URL", defaultWebSocketURL(backendURL)),
		PollInterval:      getDurationEnv("POLL_INTERVAL", 5*time.Second),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject:  getEnv("NATS_SUBJECT", "dashboard.events.>"),
		NATSStream:   getEnv("NATS_STREAM", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Cache
		CacheTTLRealtime: getDurationEnv("CACHE_TTL_REALTIME", 30*time.Second),
		CacheTTLPolling:  getDurationEnv("CACHE_TTL_POLLING", 5*time.Second),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// CORS
		AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"https://*", "http://*"}),

		// Logging
		Environment: getEnv("ENV", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if c.BackendURL == "" {
		errs = append(errs, errors.New("BACKEND_URL is required"))
	}
	if c.ConversationsPageSize <= 0 {
		errs = append(errs, fmt.Errorf("CONVERSATIONS_PAGE_SIZE must be positive, got %d", c.ConversationsPageSize))
	}
	if c.MessagesPageSize <= 0 {
		errs = append(errs, fmt.Errorf("MESSAGES_PAGE_SIZE must be positive, got %d", c.MessagesPageSize))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval))
	}
	if c.RateLimitRequests <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.RateLimitRequests))
	}

	switch c.RealtimeTransport {
	case TransportWebSocket:
		if c.RealtimeWSURL == "" {
			errs = append(errs, errors.New("REALTIME_WS_URL is required for the websocket transport"))
		}
	case TransportNATS:
		if c.NATSURL == "" {
			errs = append(errs, errors.New("NATS_URL is required for the nats transport"))
		}
	case TransportNone:
	default:
		errs = append(errs, fmt.Errorf("unknown REALTIME_TRANSPORT %q", c.RealtimeTransport))
	}

	return errors.Join(errs...)
}

// defaultWebSocketURL derives the push endpoint from the backend URL.
func defaultWebSocketURL(backendURL string) string {
	switch {
	case strings.HasPrefix(backendURL, "https://"):
		return "wss://" + strings.TrimSuffix(strings.TrimPrefix(backendURL, "https://"), "/") + "/ws"
	case strings.HasPrefix(backendURL, "http://"):
		return "ws://" + strings.TrimSuffix(strings.TrimPrefix(backendURL, "http://"), "/") + "/ws"
	default:
		return ""
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
