package legacy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"casesync/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSend_MirrorsEnvelope(t *testing.T) {
	var mu sync.Mutex
	var got []Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env Envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		mu.Lock()
		got = append(got, env)
		mu.Unlock()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	c.Send(Envelope{Target: "cases", Action: "trash", Data: map[string]string{"id": "a"}})
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	require.Equal(t, "cases", got[0].Target)
	require.Equal(t, "trash", got[0].Action)
}

func TestSend_FailureIsContained(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	require.NotPanics(t, func() {
		c.Send(Envelope{Target: "cases", Action: "delete"})
		c.Wait()
	})
}

func TestSend_DisabledWithoutEndpoint(t *testing.T) {
	c := NewClient("", testLogger())
	c.Send(Envelope{Target: "cases", Action: "trash"})
	c.Wait() // nothing dispatched, returns immediately
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "cases", r.URL.Query().Get("type"))
		_, _ = w.Write([]byte(`[{"id":"a"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	raw, err := c.Fetch(context.Background(), "cases")
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":"a"}]`, string(raw))
}

func TestFetch_RequiresEndpoint(t *testing.T) {
	c := NewClient("", testLogger())
	_, err := c.Fetch(context.Background(), "cases")
	require.Error(t, err)
}
