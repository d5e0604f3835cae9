package engine

import (
	"context"
	"encoding/json"

	"casesync/internal/merge"
	"casesync/internal/model"
	"casesync/internal/normalize"
)

// revalidate pulls a full remote snapshot and merges it with the local
// collection. A fetch failure leaves the existing snapshot untouched; a
// partial result never overwrites good cached data because the error path
// returns before Replace.
func (e *Engine) revalidate(ctx context.Context) error {
	rows, err := e.remote.FetchAll(ctx)
	if err != nil {
		return err
	}

	// An empty snapshot from an unauthenticated call must not be read as
	// "all records deleted".
	if len(rows) == 0 && !e.remote.SessionActive() {
		e.log.Warn(ctx, "ignoring empty snapshot without an active session")
		return nil
	}

	now := e.Now()
	remoteCases := make([]model.Case, 0, len(rows))
	for _, row := range rows {
		c, err := normalize.Case(row, e.store.FindByContact, now)
		if err != nil {
			// Ghost row: skip it, keep processing the rest.
			e.log.Warn(ctx, "dropping ghost row from snapshot", "error", err)
			continue
		}
		remoteCases = append(remoteCases, c)
	}

	// The merge runs under the store's write lock: a write landing while the
	// snapshot was in flight is either part of the merged input or applied
	// after the swap, never silently overwritten.
	e.store.Merge(ctx, func(current []model.Case) []model.Case {
		return merge.Cases(current, remoteCases, now, e.grace)
	})
	return nil
}

// refreshSettings refetches the settings-class collections and merges them
// remote-wins, since they carry no per-record timestamps. When the primary
// store is unreachable the legacy backend is polled as a fallback source.
func (e *Engine) refreshSettings(ctx context.Context) error {
	st, err := e.remote.FetchSettings(ctx)
	if err != nil {
		if raw, lerr := e.legacy.Fetch(ctx, "settings"); lerr == nil {
			var fallback model.Settings
			if json.Unmarshal(raw, &fallback) == nil {
				e.store.ReplaceSettings(ctx, merge.Settings(e.store.Settings(), fallback))
				return nil
			}
		}
		return err
	}
	e.store.ReplaceSettings(ctx, merge.Settings(e.store.Settings(), st))
	return nil
}
