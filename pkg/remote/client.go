package remote

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
	"strings"
	"time"

	"github.com/samber/lo"
)

const DefaultTimeout = 15 * time.Second

// TokenSource returns the bearer token for the next request. An empty token
// sends the request without credentials.
type TokenSource func(ctx context.Context) (string, error)

// HTTPClient talks to a remote Server. Every request is bounded by the
// client timeout.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	token   TokenSource
}

type ClientOption func(*HTTPClient)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTokenSource(ts TokenSource) ClientOption {
	return func(c *HTTPClient) {
		c.token = ts
	}
}

func WithStaticToken(token string) ClientOption {
	return WithTokenSource(func(context.Context) (string, error) { return token, nil })
}

func NewHTTPClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote base url %q", baseURL)
	}
	c := &HTTPClient{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ping checks that the remote store answers its health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *HTTPClient) Fetch(ctx context.Context, coll Collection, userID string) ([]Row, error) {
	if !coll.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, coll)
	}
	var rows []Row
	if err := c.do(ctx, http.MethodGet, collectionPath(userID, coll), nil, &rows); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", coll, err)
	}
	return rows, nil
}

// Upsert posts rows grouped by their user, one request per user.
func (c *HTTPClient) Upsert(ctx context.Context, coll Collection, rows []Row) error {
	if !coll.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, coll)
	}
	if len(rows) == 0 {
		return nil
	}
	byUser := lo.GroupBy(rows, func(r Row) string { return r.UserID })
	for _, userID := range lo.Uniq(lo.Map(rows, func(r Row, _ int) string { return r.UserID })) {
		if userID == "" {
			return fmt.Errorf("upsert %s: %w: missing user_id", coll, ErrInvalidRow)
		}
		body, err := json.Marshal(byUser[userID])
		if err != nil {
			return fmt.Errorf("encode %s rows: %w", coll, err)
		}
		if err := c.do(ctx, http.MethodPost, collectionPath(userID, coll), body, nil); err != nil {
			return fmt.Errorf("upsert %s: %w", coll, err)
		}
	}
	return nil
}

func collectionPath(userID string, coll Collection) string {
	return "/v1/users/" + url.PathEscape(userID) + "/" + string(coll)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("resolve token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, reqCtx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, readMessage(resp.Body))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, readMessage(resp.Body))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// transportError separates a caller cancellation from the request timing
// out and from the remote being unreachable.
func transportError(parent, reqCtx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrOffline, err)
}

func readMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(data))
}
