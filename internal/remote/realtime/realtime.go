// Package realtime consumes the push channel of the primary store. The
// transport guarantees at-least-once delivery but neither ordering nor
// dedup; the engine applies every event through the same convergence rule
// as the merge engine, so duplicates and reordering are harmless.
package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"casesync/internal/logging"
	"casesync/internal/normalize"
)

// Kind is the event type carried on the channel.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
	// KindInvalidate carries no record and asks the client to refetch the
	// settings-class collections out of band.
	KindInvalidate Kind = "invalidate"
)

// Event is one push notification. Row is present for insert/update, ID for
// delete; invalidate carries neither.
type Event struct {
	Kind Kind              `json:"kind"`
	ID   string            `json:"id,omitempty"`
	Row  normalize.Payload `json:"row,omitempty"`
}

// Listener maintains the websocket subscription, reconnecting with capped
// fibonacci backoff for as long as the context lives.
type Listener struct {
	url   string
	token func() string
	log   logging.Logger
}

// NewListener builds a listener for the given websocket URL. token is
// consulted on every (re)connect so a refreshed session is picked up.
func NewListener(url string, token func() string, log logging.Logger) *Listener {
	return &Listener{url: url, token: token, log: log}
}

// Listen pumps events into out until ctx is cancelled. It never returns an
// error: connection failures are logged and retried, since the poll-based
// revalidation path keeps the store converging meanwhile.
func (l *Listener) Listen(ctx context.Context, out chan<- Event) {
	for ctx.Err() == nil {
		conn, err := l.connect(ctx)
		if err != nil {
			// Only a cancelled context stops the dial retries.
			return
		}
		l.pump(ctx, conn, out)
		if ctx.Err() == nil {
			l.log.Warn(ctx, "realtime channel dropped, reconnecting")
		}
	}
}

func (l *Listener) connect(ctx context.Context) (*websocket.Conn, error) {
	backoff := retry.WithCappedDuration(15*time.Second, retry.NewFibonacci(500*time.Millisecond))

	var conn *websocket.Conn
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		header := http.Header{}
		if t := l.token(); t != "" {
			header.Set("Authorization", "Bearer "+t)
		}
		c, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, header)
		if err != nil {
			l.log.Warn(ctx, "realtime dial failed", "error", err)
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	return conn, err
}

func (l *Listener) pump(ctx context.Context, conn *websocket.Conn, out chan<- Event) {
	defer conn.Close()

	// Unblock ReadJSON when the context is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		switch ev.Kind {
		case KindInsert, KindUpdate, KindDelete, KindInvalidate:
		case "generic":
			// Older backend builds emit "generic" for invalidation.
			ev.Kind = KindInvalidate
		default:
			l.log.Warn(ctx, "skipping unknown realtime event", "kind", string(ev.Kind))
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}
