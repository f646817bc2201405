package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-dashboard/internal/model"
	"github.com/capitalize-ai/conversation-dashboard/pkg/logger"
	"github.com/capitalize-ai/conversation-dashboard/pkg/metrics"
	"github.com/capitalize-ai/conversation-dashboard/pkg/tracing"
)

const (
	opConversations = "conversations"
	opStates        = "conversation_states"
	opMessages      = "messages"

	maxBodyBytes = 16 << 20
)

// Config holds backend client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is the HTTP implementation of Fetcher.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *logger.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL scheme %q", u.Scheme)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     tracing.Tracer("fetch"),
		logger:     log.Named("fetch"),
	}, nil
}

type paginationWire struct {
	CurrentPage *int `json:"currentPage"`
	Page        *int `json:"page"`
	HasMore     bool `json:"hasMore"`
	TotalCount  int  `json:"totalCount"`
}

func (p *paginationWire) page(fallback int) int {
	switch {
	case p.CurrentPage != nil:
		return *p.CurrentPage
	case p.Page != nil:
		return *p.Page
	default:
		return fallback
	}
}

// FetchConversationsPage implements Fetcher.
func (c *Client) FetchConversationsPage(ctx context.Context, page, limit int) (*model.ConversationsPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Conversations []model.Conversation `json:"conversations"`
		Pagination    *paginationWire      `json:"pagination"`
	}
	if err := c.getJSON(ctx, opConversations, "/api/conversations", q, &resp); err != nil {
		return nil, err
	}

	out := &model.ConversationsPage{
		Items:      resp.Conversations,
		Page:       page,
		TotalCount: len(resp.Conversations),
	}
	if resp.Pagination != nil {
		out.Page = resp.Pagination.page(page)
		out.HasMore = resp.Pagination.HasMore
		out.TotalCount = resp.Pagination.TotalCount
	}
	return out, nil
}

// FetchConversationStates implements Fetcher.
func (c *Client) FetchConversationStates(ctx context.Context) (map[string]model.ConversationState, error) {
	var resp struct {
		ActiveStates map[string]model.ConversationState `json:"activeStates"`
	}
	if err := c.getJSON(ctx, opStates, "/api/conversation-state", nil, &resp); err != nil {
		return nil, err
	}
	if resp.ActiveStates == nil {
		resp.ActiveStates = make(map[string]model.ConversationState)
	}
	return resp.ActiveStates, nil
}

// FetchMessagesPage implements Fetcher.
func (c *Client) FetchMessagesPage(ctx context.Context, conversationID string, page, limit int) (*model.MessagesPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Messages   []model.Message `json:"messages"`
		Pagination *paginationWire `json:"pagination"`
	}
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.getJSON(ctx, opMessages, path, q, &resp); err != nil {
		return nil, err
	}

	out := &model.MessagesPage{Messages: resp.Messages}
	if resp.Pagination != nil {
		out.Pagination = &model.PageInfo{
			Page:    resp.Pagination.page(page),
			HasMore: resp.Pagination.HasMore,
		}
	}
	return out, nil
}

// getJSON issues a GET for an already-escaped path.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, v any) (err error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "fetch."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.RecordFetch(op, status, time.Since(start).Seconds())
		span.End()
	}()

	target := c.baseURL.String() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	span.SetAttributes(attribute.String("http.url", target))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &model.NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", zap.String("op", op), zap.Error(err))
		return &model.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		c.logger.Warn("backend returned error status",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return &model.NetworkError{Op: op, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return &model.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
