// Package client is the Go client for a running daemon's control API.
// The CLI and the dashboard both talk to the daemon through it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/umbradim/umbra/internal/dimmer"
	"github.com/umbradim/umbra/internal/errors"
	"github.com/umbradim/umbra/internal/history"
	"github.com/umbradim/umbra/internal/trace"
)

// Client configuration defaults
const (
	DefaultTimeout = 10 * time.Second

	// WatchBuffer is the watch channel depth; a stalled consumer loses
	// batches rather than blocking the read loop.
	WatchBuffer = 16
)

// Monitors is the /api/monitors response.
type Monitors struct {
	Displays int   `json:"displays"`
	Active   []int `json:"active"`
}

type statusMessage struct {
	Type  string        `json:"type"`
	Batch history.Batch `json:"batch"`
}

// Client talks to the daemon over its HTTP and websocket API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the daemon at baseURL, e.g. "http://localhost:8686".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CodeClientFailed, "encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrapf(err, errors.CodeClientFailed, "build %s %s", method, path)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	trace.InjectHeaders(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, errors.CodeUnavailable, "daemon unreachable at %s", c.baseURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, errors.CodeClientFailed, "decode %s response", path)
	}
	return nil
}

// decodeError maps the daemon's {error, code} body back to an AppError.
func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Code == "" {
		return errors.Newf(errors.CodeClientFailed, "daemon returned status %d", resp.StatusCode)
	}
	return errors.New(errors.ErrorCode(body.Code), body.Error)
}

// Status fetches the daemon snapshot.
func (c *Client) Status(ctx context.Context) (dimmer.Status, error) {
	var st dimmer.Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &st)
	return st, err
}

// Monitors lists attached displays and the active set.
func (c *Client) Monitors(ctx context.Context) (Monitors, error) {
	var m Monitors
	err := c.do(ctx, http.MethodGet, "/api/monitors", nil, &m)
	return m, err
}

// SetMonitors replaces the active monitor set.
func (c *Client) SetMonitors(ctx context.Context, ids []int) (Monitors, error) {
	var m Monitors
	err := c.do(ctx, http.MethodPut, "/api/monitors", map[string][]int{"monitors": ids}, &m)
	return m, err
}

// Pause clears all overlays and holds dimming off.
func (c *Client) Pause(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/pause", nil, nil)
}

// Resume re-enables dimming.
func (c *Client) Resume(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/resume", nil, nil)
}

// SetStrength sets the dim-intensity multiplier in [0,1].
func (c *Client) SetStrength(ctx context.Context, v float64) error {
	return c.do(ctx, http.MethodPut, "/api/strength", map[string]float64{"strength": v}, nil)
}

// History queries persisted samples. monitor 0 means all monitors.
func (c *Client) History(ctx context.Context, monitor int, since time.Duration, limit int) ([]history.Sample, error) {
	path := fmt.Sprintf("/api/history?since=%s&limit=%d", since, limit)
	if monitor > 0 {
		path += "&monitor=" + strconv.Itoa(monitor)
	}
	var samples []history.Sample
	err := c.do(ctx, http.MethodGet, path, nil, &samples)
	return samples, err
}

// WatchStatus subscribes to the daemon's status stream. The returned
// channel closes when the context ends or the connection drops.
func (c *Client) WatchStatus(ctx context.Context) (<-chan history.Batch, error) {
	wsURL := "ws" + c.baseURL[len("http"):] + "/ws/status"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeUnavailable, "dial status stream at %s", wsURL)
	}

	ch := make(chan history.Batch, WatchBuffer)
	go func() {
		defer close(ch)
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

		for {
			var msg statusMessage
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				return
			}
			if msg.Type != "status" {
				continue
			}
			select {
			case ch <- msg.Batch:
			default:
			}
		}
	}()
	return ch, nil
}
