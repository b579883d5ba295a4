package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/park285/Cheese-Xiangqi/pkg/xiangqidto"
	"github.com/valyala/fasthttp"
)

// Client calls the local control API.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the dialer, e.g. for an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateGame(ctx context.Context, req xiangqidto.CreateGameRequest) (*xiangqidto.GameState, error) {
	var out xiangqidto.GameState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Game(ctx context.Context, id string) (*xiangqidto.GameState, error) {
	var out xiangqidto.GameState
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/games/"+url.PathEscape(id), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LegalMoves(ctx context.Context, id, from string) ([]string, error) {
	var out xiangqidto.LegalMoves
	path := "/games/" + url.PathEscape(id) + "/moves?from=" + url.QueryEscape(from)
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Destinations, nil
}

// Move plays a move token. An illegal move is returned as a response whose
// result kind is "invalid", not as an error.
func (c *Client) Move(ctx context.Context, id, move string) (*xiangqidto.MoveResponse, error) {
	var out xiangqidto.MoveResponse
	err := c.doJSON(ctx, fasthttp.MethodPost, "/games/"+url.PathEscape(id)+"/move", xiangqidto.MoveRequest{Move: move}, &out, false)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == fasthttp.StatusUnprocessableEntity {
		if jerr := json.Unmarshal(apiErr.Body, &out); jerr == nil {
			return &out, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Undo(ctx context.Context, id string) (*xiangqidto.UndoResponse, error) {
	var out xiangqidto.UndoResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games/"+url.PathEscape(id)+"/undo", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Poll(ctx context.Context, id string) (*xiangqidto.MoveResponse, error) {
	var out xiangqidto.MoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games/"+url.PathEscape(id)+"/poll", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) NewGame(ctx context.Context, id string) (*xiangqidto.GameState, error) {
	var out xiangqidto.GameState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games/"+url.PathEscape(id)+"/new", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetMode(ctx context.Context, id string, req xiangqidto.ModeRequest) (*xiangqidto.GameState, error) {
	var out xiangqidto.GameState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games/"+url.PathEscape(id)+"/mode", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, fasthttp.MethodDelete, "/games/"+url.PathEscape(id), nil, nil, false)
}

func (c *Client) ListGames(ctx context.Context, limit int) ([]*xiangqidto.GameSummary, error) {
	var out xiangqidto.GameListResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/games?limit="+strconv.Itoa(limit), nil, &out, true); err != nil {
		return nil, err
	}
	return out.Games, nil
}

func (c *Client) History(ctx context.Context, limit int) ([]*xiangqidto.GameRecord, error) {
	var out xiangqidto.HistoryResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/history?limit="+strconv.Itoa(limit), nil, &out, true); err != nil {
		return nil, err
	}
	return out.Games, nil
}

// APIError is a non-2xx response. Domain carries the decoded error body.
type APIError struct {
	Status int
	Domain xiangqidto.DomainError
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("xiangqi api error: status=%d code=%s message=%s", e.Status, e.Domain.Code, e.Domain.Message)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts {
				return lastErr
			}
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			apiErr := &APIError{Status: status, Body: append([]byte(nil), resp.Body()...)}
			_ = json.Unmarshal(apiErr.Body, &apiErr.Domain)
			if attempt == attempts || !shouldRetryStatus(status) {
				return apiErr
			}
			lastErr = apiErr
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil && len(resp.Body()) > 0 {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
