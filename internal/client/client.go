// Package client talks to a blockplan server over its REST API. It is the
// persistence service the editor engine uses in the terminal UI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"blockplan/internal/api"
	appLog "blockplan/internal/log"
	"blockplan/internal/model"
)

var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx reply.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client calls the blockplan REST API.
type Client struct {
	base     string
	http     *http.Client
	user     string
	password string
}

// Option configures a Client.
type Option func(*Client)

// WithBasicAuth sends credentials on every request.
func WithBasicAuth(user, password string) Option {
	return func(c *Client) {
		c.user = user
		c.password = password
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New creates a client for baseURL. timeout bounds each request.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListEvents returns events starting in [start, end).
func (c *Client) ListEvents(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	q := url.Values{}
	if !start.IsZero() {
		q.Set("start", start.Format(time.DateOnly))
	}
	if !end.IsZero() {
		q.Set("end", end.Format(time.DateOnly))
	}
	var resp api.EventsResponse
	if err := c.do(ctx, http.MethodGet, "/api/events", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// CreateEvent posts a new event.
func (c *Client) CreateEvent(ctx context.Context, in model.EventInput) (model.Event, error) {
	var resp api.EventResponse
	if err := c.do(ctx, http.MethodPost, "/api/events", nil, in, &resp); err != nil {
		return model.Event{}, err
	}
	return resp.Event, nil
}

// UpdateEvent patches an event.
func (c *Client) UpdateEvent(ctx context.Context, id string, in model.EventInput) (model.Event, error) {
	var resp api.EventResponse
	if err := c.do(ctx, http.MethodPatch, "/api/events/"+url.PathEscape(id), nil, in, &resp); err != nil {
		return model.Event{}, err
	}
	return resp.Event, nil
}

// DeleteEvent deletes an event.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	var resp api.DeletedResponse
	if err := c.do(ctx, http.MethodDelete, "/api/events/"+url.PathEscape(id), nil, nil, &resp); err != nil {
		return err
	}
	if resp.DeletedEventID != id {
		return fmt.Errorf("delete %s: server confirmed %q", id, resp.DeletedEventID)
	}
	return nil
}

// ListTasks returns the server's task snapshot.
func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	var resp api.TasksResponse
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// Week returns the server-side render model of the week containing start.
func (c *Client) Week(ctx context.Context, start time.Time) (api.WeekResponse, error) {
	q := url.Values{}
	if !start.IsZero() {
		q.Set("start", start.Format(time.DateOnly))
	}
	var resp api.WeekResponse
	err := c.do(ctx, http.MethodGet, "/api/week", q, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	target := c.base + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		appLog.Error("api request failed", err, "method", method, "url", redactURL(target))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e api.ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}

	appLog.Debug("api request", "method", method, "url", redactURL(target), "status", resp.StatusCode)
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// redactURL keeps scheme, host and path but drops the query string.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return "...(redacted)"
	}
	parsed.User = nil
	parsed.RawQuery = ""
	return parsed.String()
}
