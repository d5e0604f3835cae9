// Package remote is the typed client for the authoritative case store: CRUD
// keyed by identity, bulk insert, settings get/set, and the session check
// that decides whether a fetch may be trusted as authoritative.
package remote

import (
	"context"

	"casesync/internal/model"
	"casesync/internal/normalize"
)

// Client is the surface the engine depends on. Every call may fail with
// common.ErrUnavailable; callers treat that as "state not yet confirmed
// remotely", never as data loss.
type Client interface {
	// FetchAll returns the full remote snapshot as raw rows; the engine
	// runs them through the normalizer.
	FetchAll(ctx context.Context) ([]normalize.Payload, error)

	// FetchOne returns a single row by identity, common.ErrNotFound when
	// the identity is unknown remotely.
	FetchOne(ctx context.Context, id string) (normalize.Payload, error)

	Create(ctx context.Context, c model.Case) error
	Update(ctx context.Context, id string, patch normalize.Payload) error
	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	HardDelete(ctx context.Context, id string) error
	BulkInsert(ctx context.Context, cases []model.Case) error

	FetchSettings(ctx context.Context) (model.Settings, error)
	PutSettings(ctx context.Context, st model.Settings) error

	// SessionActive reports whether the held session token is usable. An
	// empty FetchAll result is only trusted as "no data" when this is
	// true, guarding against an unauthenticated call masquerading as a
	// wiped collection.
	SessionActive() bool
}
