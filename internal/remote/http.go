package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"casesync/internal/common"
	"casesync/internal/model"
	"casesync/internal/normalize"
)

// HTTPClient implements Client against the JSON-over-HTTP API of the
// primary store.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	session *session
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		session: newSession(token),
	}
}

// SignIn exchanges credentials for a session token and stores it for
// subsequent calls.
func (c *HTTPClient) SignIn(ctx context.Context, email, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return err
	}
	if resp.Token == "" {
		return common.ErrUnauthorized
	}
	c.session.SetToken(resp.Token)
	return nil
}

func (c *HTTPClient) SetToken(token string) { c.session.SetToken(token) }

// Token returns the current session token; used by the realtime listener to
// authenticate the push subscription.
func (c *HTTPClient) Token() string { return c.session.Token() }

func (c *HTTPClient) SessionActive() bool { return c.session.Active() }

func (c *HTTPClient) FetchAll(ctx context.Context) ([]normalize.Payload, error) {
	var rows []normalize.Payload
	if err := c.do(ctx, http.MethodGet, "/cases", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *HTTPClient) FetchOne(ctx context.Context, id string) (normalize.Payload, error) {
	var row normalize.Payload
	if err := c.do(ctx, http.MethodGet, "/cases/"+id, nil, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func (c *HTTPClient) Create(ctx context.Context, cs model.Case) error {
	return c.do(ctx, http.MethodPost, "/cases", cs, nil)
}

func (c *HTTPClient) Update(ctx context.Context, id string, patch normalize.Payload) error {
	return c.do(ctx, http.MethodPatch, "/cases/"+id, patch, nil)
}

func (c *HTTPClient) SoftDelete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/cases/"+id+"/trash", nil, nil)
}

func (c *HTTPClient) Restore(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/cases/"+id+"/restore", nil, nil)
}

func (c *HTTPClient) HardDelete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/cases/"+id, nil, nil)
}

func (c *HTTPClient) BulkInsert(ctx context.Context, cases []model.Case) error {
	return c.do(ctx, http.MethodPost, "/cases/bulk", cases, nil)
}

func (c *HTTPClient) FetchSettings(ctx context.Context) (model.Settings, error) {
	var st model.Settings
	if err := c.do(ctx, http.MethodGet, "/settings", nil, &st); err != nil {
		return model.Settings{}, err
	}
	return st, nil
}

func (c *HTTPClient) PutSettings(ctx context.Context, st model.Settings) error {
	return c.do(ctx, http.MethodPut, "/settings", st, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return common.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return common.ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: %s", common.ErrUnavailable, resp.Status, string(b))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", common.ErrUnavailable, err)
		}
	}
	return nil
}
