package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/flightdesk/config"
	"github.com/Domenick1991/flightdesk/internal/domain"
	"go.uber.org/zap"
)

const maxResponseBytes = 8 << 20

// Rejection codes the orchestration reacts to.
const (
	CodeAlreadyIssued   = "already_issued"
	CodeFareUnavailable = "fare_unavailable"
	CodeNotVoidable     = "not_voidable"
)

type Timeouts struct {
	Search time.Duration
	Fare   time.Duration
	Order  time.Duration
	Ticket time.Duration
	Lookup time.Duration
}

func TimeoutsFromConfig(cfg config.SupplierConfig) Timeouts {
	return Timeouts{
		Search: time.Duration(cfg.SearchTimeout) * time.Second,
		Fare:   time.Duration(cfg.FareTimeout) * time.Second,
		Order:  time.Duration(cfg.OrderTimeout) * time.Second,
		Ticket: time.Duration(cfg.TicketTimeout) * time.Second,
		Lookup: time.Duration(cfg.LookupTimeout) * time.Second,
	}
}

// Client talks to the inventory provider. It never retries; callers own retry policy.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	limiter  *rateLimiter
	timeouts Timeouts
	log      *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTimeouts(t Timeouts) Option {
	return func(c *Client) { c.timeouts = t }
}

func WithRateLimit(interval time.Duration) Option {
	return func(c *Client) { c.limiter = newRateLimiter(interval) }
}

func NewClient(baseURL, token string, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
		limiter: newRateLimiter(0),
		timeouts: Timeouts{
			Search: 10 * time.Second,
			Fare:   15 * time.Second,
			Order:  30 * time.Second,
			Ticket: 20 * time.Second,
			Lookup: 10 * time.Second,
		},
		log: log.With(zap.String("component", "supplier")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) InitiateSearch(ctx context.Context, q SearchQuery) (SearchSession, error) {
	var out SearchSession
	err := c.do(ctx, "initiate_search", http.MethodPost, "/v1/search", c.timeouts.Search, q, &out)
	if err == nil && out.SessionID == "" {
		err = &domain.TransportError{Op: "initiate_search", Err: errors.New("empty session id")}
	}
	return out, err
}

func (c *Client) PollResults(ctx context.Context, sessionID string, after int) (PollResponse, error) {
	var out PollResponse
	path := fmt.Sprintf("/v1/search/%s/results?after=%d", url.PathEscape(sessionID), after)
	err := c.do(ctx, "poll_results", http.MethodGet, path, c.timeouts.Search, nil, &out)
	for _, offer := range out.Offers {
		if raw := offer.UnparsedTimes(); len(raw) > 0 {
			c.log.Warn("offer has dates in unknown layout",
				zap.String("session_id", sessionID),
				zap.String("offer_id", offer.ID),
				zap.Strings("values", raw),
			)
		}
	}
	return out, err
}

func (c *Client) CheckFare(ctx context.Context, req FareCheckRequest) (FareCheckResult, error) {
	var out FareCheckResult
	err := c.do(ctx, "check_fare", http.MethodPost, "/v1/fares/check", c.timeouts.Fare, req, &out)
	return out, err
}

func (c *Client) SaveOrder(ctx context.Context, req SaveOrderRequest) (Order, error) {
	var out Order
	err := c.do(ctx, "save_order", http.MethodPost, "/v1/orders", c.timeouts.Order, req, &out)
	return out, err
}

func (c *Client) IssueOrder(ctx context.Context, orderID string) (Order, error) {
	var out Order
	err := c.do(ctx, "issue_order", http.MethodPost, "/v1/orders/"+url.PathEscape(orderID)+"/issue", c.timeouts.Order, struct{}{}, &out)
	return out, err
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) (Order, error) {
	var out Order
	err := c.do(ctx, "cancel_order", http.MethodPost, "/v1/orders/"+url.PathEscape(orderID)+"/cancel", c.timeouts.Ticket, struct{}{}, &out)
	return out, err
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var out Order
	err := c.do(ctx, "get_order", http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), c.timeouts.Lookup, nil, &out)
	return out, err
}

func (c *Client) GetTicket(ctx context.Context, number string) (TicketInfo, error) {
	var out TicketInfo
	err := c.do(ctx, "get_ticket", http.MethodGet, "/v1/tickets/"+url.PathEscape(number), c.timeouts.Lookup, nil, &out)
	return out, err
}

func (c *Client) RefundTicket(ctx context.Context, number string) (TicketOperation, error) {
	return c.ticketOperation(ctx, "refund", number, struct{}{})
}

func (c *Client) VoidTicket(ctx context.Context, number string) (TicketOperation, error) {
	return c.ticketOperation(ctx, "void", number, struct{}{})
}

func (c *Client) ExchangeTicket(ctx context.Context, number string, req ExchangeRequest) (TicketOperation, error) {
	return c.ticketOperation(ctx, "exchange", number, req)
}

func (c *Client) ticketOperation(ctx context.Context, action, number string, body any) (TicketOperation, error) {
	var out TicketOperation
	path := "/v1/tickets/" + url.PathEscape(number) + "/" + action
	err := c.do(ctx, action+"_ticket", http.MethodPost, path, c.timeouts.Ticket, body, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path string, timeout time.Duration, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return classify(op, err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("supplier %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("supplier %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("supplier call failed", zap.String("op", op), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return classify(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classify(op, err)
	}
	c.log.Debug("supplier call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("supplier %s: %w", op, domain.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &domain.TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(snippet(data))}
	case resp.StatusCode >= 400:
		return rejection(op, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func classify(op string, err error) error {
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
	return &domain.TransportError{Op: op, Timeout: timeout, Err: err}
}

func rejection(op string, status int, data []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Error.Code != "" {
		return &domain.RejectedError{Op: op, Code: env.Error.Code, Message: env.Error.Message}
	}
	return &domain.RejectedError{Op: op, Code: "http_" + strconv.Itoa(status), Message: snippet(data)}
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
