// Package engine wires the local store, the remote sync client, the legacy
// mirror and the realtime channel into one constructed service with an
// explicit Init/Shutdown lifecycle. All reads are served synchronously from
// the local store; writes land locally first (optimistic), then go to the
// remote store, whose failure propagates to the caller, and finally to the
// legacy mirror best-effort.
package engine

import (
	"context"
	"time"

	"casesync/internal/legacy"
	"casesync/internal/lifecycle"
	"casesync/internal/logging"
	"casesync/internal/model"
	"casesync/internal/normalize"
	"casesync/internal/remote"
	"casesync/internal/remote/realtime"
	"casesync/internal/store"
)

// EventSource produces realtime events; satisfied by realtime.Listener.
type EventSource interface {
	Listen(ctx context.Context, out chan<- realtime.Event)
}

// Options carries the injected collaborators and tuning knobs.
type Options struct {
	Store  *store.Store
	Remote remote.Client
	Legacy *legacy.Client
	Events EventSource
	Logger logging.Logger

	RevalidateInterval time.Duration
	GraceWindow        time.Duration
	Retention          time.Duration
}

type Engine struct {
	store  *store.Store
	remote remote.Client
	legacy *legacy.Client
	events EventSource
	bin    *lifecycle.Manager
	log    logging.Logger

	revalidateInterval time.Duration
	grace              time.Duration

	cancel context.CancelFunc
	done   chan struct{}

	// Now is a test seam for the clock.
	Now func() time.Time
}

func New(opts Options) *Engine {
	if opts.RevalidateInterval <= 0 {
		opts.RevalidateInterval = 60 * time.Second
	}
	return &Engine{
		store:              opts.Store,
		remote:             opts.Remote,
		legacy:             opts.Legacy,
		events:             opts.Events,
		bin:                lifecycle.NewManager(opts.Store, opts.Remote, opts.Legacy, opts.Logger, opts.Retention),
		log:                opts.Logger,
		revalidateInterval: opts.RevalidateInterval,
		grace:              opts.GraceWindow,
		Now:                time.Now,
	}
}

// Init hydrates the store from the last durable snapshot, runs one
// revalidation cycle and the startup purge, and starts the background
// producers (revalidation ticker and realtime consumer). The initial
// revalidation has background semantics: a failure is logged and the
// hydrated snapshot stays in place.
func (e *Engine) Init(ctx context.Context) error {
	if err := e.store.Hydrate(ctx); err != nil {
		return err
	}
	if err := e.revalidate(ctx); err != nil {
		e.log.Warn(ctx, "initial revalidation failed, serving hydrated snapshot", "error", err)
	}
	if err := e.refreshSettings(ctx); err != nil {
		e.log.Warn(ctx, "settings refresh failed", "error", err)
	}
	e.bin.PurgeExpired(ctx)

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.run(runCtx)
	return nil
}

// Shutdown stops the background producers and drains in-flight legacy
// sends.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	e.legacy.Wait()
	return nil
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	events := make(chan realtime.Event, 16)
	if e.events != nil {
		go e.events.Listen(ctx, events)
	}

	ticker := time.NewTicker(e.revalidateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.revalidate(ctx); err != nil {
				// Background semantics: keep the last good snapshot.
				e.log.Warn(ctx, "background revalidation failed", "error", err)
			}
			e.bin.PurgeExpired(ctx)
		case ev := <-events:
			e.applyEvent(ctx, ev)
		}
	}
}

// GetAll returns the current canonical collection, newest first.
func (e *Engine) GetAll() []model.Case {
	return e.store.GetAll()
}

// Get serves a case from the local store, falling back to an on-demand
// remote fetch on a miss; the fetched record is inserted locally.
func (e *Engine) Get(ctx context.Context, id string) (model.Case, error) {
	if c, ok := e.store.Get(id); ok {
		return c, nil
	}

	row, err := e.remote.FetchOne(ctx, id)
	if err != nil {
		return model.Case{}, err
	}
	c, err := normalize.Case(row, e.store.FindByContact, e.Now())
	if err != nil {
		return model.Case{}, err
	}
	if err := e.store.ApplyCreate(ctx, c); err != nil {
		return model.Case{}, err
	}
	return c, nil
}

// Settings returns the current settings collections.
func (e *Engine) Settings() model.Settings {
	return e.store.Settings()
}

// Subscribe registers a change callback fired after every successful local
// mutation or merge. The returned function unsubscribes.
func (e *Engine) Subscribe(cb func()) func() {
	return e.store.Subscribe(cb)
}

// UpdateSettings replaces the settings collections locally and pushes them
// to the remote store, following the same optimistic order as case writes.
func (e *Engine) UpdateSettings(ctx context.Context, st model.Settings) error {
	e.store.ReplaceSettings(ctx, st)
	if err := e.remote.PutSettings(ctx, st); err != nil {
		return err
	}
	e.legacy.Send(legacy.Envelope{Target: "settings", Action: "update", Data: st})
	return nil
}

// Create normalizes p into a new case and applies it optimistically. The
// remote write failure is returned to the caller; the local record stays
// and will be confirmed (or dropped as a zombie) by later merges.
func (e *Engine) Create(ctx context.Context, p normalize.Payload) (model.Case, error) {
	c, err := normalize.Case(p, e.store.FindByContact, e.Now())
	if err != nil {
		return model.Case{}, err
	}
	if err := e.store.ApplyCreate(ctx, c); err != nil {
		return model.Case{}, err
	}

	if err := e.remote.Create(ctx, c); err != nil {
		return c, err
	}
	e.legacy.Send(legacy.Envelope{Target: "cases", Action: "create", Data: c})
	return c, nil
}

// Update overlays the patch onto the identified case and refreshes
// UpdatedAt, making this edit the winner against any older remote copy.
func (e *Engine) Update(ctx context.Context, id string, p normalize.Payload) error {
	now := e.Now()
	err := e.store.ApplyUpdate(ctx, id, func(c *model.Case) {
		normalize.Apply(c, p)
		c.UpdatedAt = now
	})
	if err != nil {
		return err
	}

	patch := make(normalize.Payload, len(p)+1)
	for k, v := range p {
		patch[k] = v
	}
	patch["updatedAt"] = now.UTC().Format(time.RFC3339Nano)
	if err := e.remote.Update(ctx, id, patch); err != nil {
		return err
	}

	if c, ok := e.store.Get(id); ok {
		e.legacy.Send(legacy.Envelope{Target: "cases", Action: "update", Data: c})
	}
	return nil
}

// MarkViewed records that the case was opened, which retires its derived
// isNew flag.
func (e *Engine) MarkViewed(ctx context.Context, id string) error {
	return e.Update(ctx, id, normalize.Payload{"viewed": true})
}

// Delete soft-deletes into the recycle bin or hard-deletes outright.
func (e *Engine) Delete(ctx context.Context, id string, mode store.DeleteMode) error {
	if mode == store.SoftDelete {
		return e.bin.SoftDelete(ctx, id)
	}
	return e.bin.HardDelete(ctx, id)
}

// Restore brings a case back out of the recycle bin.
func (e *Engine) Restore(ctx context.Context, id string) error {
	return e.bin.Restore(ctx, id)
}

// PurgeExpired runs the retention scan immediately.
func (e *Engine) PurgeExpired(ctx context.Context) int {
	return e.bin.PurgeExpired(ctx)
}

// Import normalizes a batch of rows (legacy spreadsheet migration path),
// inserts them locally and pushes them through the bulk endpoint. Ghost
// rows are dropped and counted out.
func (e *Engine) Import(ctx context.Context, rows []normalize.Payload) (int, error) {
	now := e.Now()
	cases := make([]model.Case, 0, len(rows))
	for _, row := range rows {
		c, err := normalize.Case(row, e.store.FindByContact, now)
		if err != nil {
			e.log.Warn(ctx, "dropping unimportable row", "error", err)
			continue
		}
		cases = append(cases, c)
	}

	for _, c := range cases {
		if err := e.store.ApplyCreate(ctx, c); err != nil {
			return 0, err
		}
	}
	if len(cases) == 0 {
		return 0, nil
	}
	if err := e.remote.BulkInsert(ctx, cases); err != nil {
		return len(cases), err
	}
	return len(cases), nil
}

// Refresh runs one revalidation cycle on demand. Unlike the background
// cycle its failure is surfaced to the caller.
func (e *Engine) Refresh(ctx context.Context) error {
	if err := e.revalidate(ctx); err != nil {
		return err
	}
	return e.refreshSettings(ctx)
}
