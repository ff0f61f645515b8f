package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

var ErrNotConfigured = errors.New("video provider not configured")

// Client provisions third-party conferencing rooms keyed by session id.
// Every call is best-effort from the orchestrator's point of view: callers
// log failures and move on.
type Client struct {
	baseURL string
	apiKey  string
	http    *fasthttp.Client

	defaultTimeout time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:         strings.TrimSpace(apiKey),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createRoomRequest struct {
	Name string `json:"name"`
}

type roomResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CreateRoom creates a room named after the session id and returns its URL.
func (c *Client) CreateRoom(ctx context.Context, sessionID string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", ErrNotConfigured
	}
	var out roomResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/rooms", createRoomRequest{Name: sessionID}, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("provider returned no room url")
	}
	return out.URL, nil
}

// DeleteRoom tears down the session's room.
func (c *Client) DeleteRoom(ctx context.Context, sessionID string) error {
	if c == nil || c.baseURL == "" {
		return ErrNotConfigured
	}
	return c.doJSON(ctx, fasthttp.MethodDelete, "/rooms/"+sessionID, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return fmt.Errorf("video api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
