package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client talks to the control server of a running instance.
type Client struct {
	addr string
	http *http.Client
}

func NewClient(addr string) *Client { return &Client{addr: addr, http: &http.Client{}} }

func (c *Client) Status(ctx context.Context) (StatusReport, error) {
	var r StatusReport
	err := c.do(ctx, http.MethodGet, "/status", nil, &r)
	return r, err
}

// Trigger asks the running instance for an immediate run and waits for it.
func (c *Client) Trigger(ctx context.Context) (RunReport, error) {
	var r RunReport
	err := c.do(ctx, http.MethodPost, "/trigger", nil, &r)
	return r, err
}

// SetSchedule replaces the cron expression and returns the previous one.
func (c *Client) SetSchedule(ctx context.Context, spec string) (string, error) {
	body, _ := json.Marshal(map[string]interface{}{"schedule": spec})
	var r struct {
		Old string `json:"old"`
		New string `json:"new"`
	}
	if err := c.do(ctx, http.MethodPost, "/set-schedule", body, &r); err != nil {
		return "", err
	}
	return r.Old, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://"+c.addr+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server error: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
