// Package legacy mirrors writes to the secondary spreadsheet-style backend.
// The mirror is strictly best-effort: sends are fire-and-forget, failures
// are logged only, and nothing in this package may fail or block the
// primary write path that triggered it.
package legacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"casesync/internal/logging"
)

// Envelope is the single write-endpoint action format.
type Envelope struct {
	Target string `json:"target"`
	Action string `json:"action"`
	Data   any    `json:"data"`
}

// Client posts envelopes to the legacy write endpoint and polls the read
// endpoint on demand. A zero endpoint disables the client entirely.
type Client struct {
	endpoint string
	http     *http.Client
	log      logging.Logger
	wg       sync.WaitGroup
}

func NewClient(endpoint string, log logging.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// Send mirrors env to the legacy backend without awaiting the result. The
// caller returns immediately; a failed send is logged and forgotten.
func (c *Client) Send(env Envelope) {
	if c.endpoint == "" {
		return
	}
	c.dispatch(func() error { return c.post(env) })
}

// dispatch runs fn on a background goroutine whose result is intentionally
// discarded except for logging.
func (c *Client) dispatch(fn func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := fn(); err != nil {
			c.log.Warn(context.Background(), "legacy mirror send failed", "error", err)
		}
	}()
}

// Wait blocks until all in-flight sends finished. Used on shutdown and in
// tests; the write path never calls it.
func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) post(env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("legacy backend returned %s", resp.Status)
	}
	return nil
}

// Fetch polls the legacy read endpoint for the collection identified by
// typ ("cases" or a settings group) and returns the raw blob. Unlike Send
// this is a synchronous read used only when the primary store is not an
// option.
func (c *Client) Fetch(ctx context.Context, typ string) (json.RawMessage, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("legacy backend not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?type="+url.QueryEscape(typ), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("legacy backend returned %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}
