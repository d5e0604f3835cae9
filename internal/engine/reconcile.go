package engine

import (
	"context"
	"errors"

	"casesync/internal/common"
	"casesync/internal/merge"
	"casesync/internal/model"
	"casesync/internal/normalize"
	"casesync/internal/remote/realtime"
	"casesync/internal/store"
)

// applyEvent applies one push event to the local store using the same
// convergence rule as the merge engine. The channel delivers at least once
// without ordering, so every branch must be idempotent and safe under
// reordering.
func (e *Engine) applyEvent(ctx context.Context, ev realtime.Event) {
	switch ev.Kind {
	case realtime.KindInsert, realtime.KindUpdate:
		c, err := normalize.Case(ev.Row, e.store.FindByContact, e.Now())
		if err != nil {
			e.log.Warn(ctx, "dropping ghost realtime event", "kind", string(ev.Kind), "error", err)
			return
		}
		e.adopt(ctx, c)

	case realtime.KindDelete:
		id := ev.ID
		if id == "" && ev.Row != nil {
			if c, err := normalize.Case(ev.Row, normalize.NoLookup, e.Now()); err == nil {
				id = c.ID
			}
		}
		if id == "" {
			return
		}
		// Removal is unconditional; deleting an unknown identity is a no-op.
		if err := e.store.ApplyDelete(ctx, id, store.HardDelete); err != nil && !errors.Is(err, common.ErrNotFound) {
			e.log.Warn(ctx, "realtime delete failed", "id", id, "error", err)
		}

	case realtime.KindInvalidate:
		// Carries no record: refetch the settings-class collections.
		if err := e.refreshSettings(ctx); err != nil {
			e.log.Warn(ctx, "invalidate refetch failed", "error", err)
		}
	}
}

// adopt inserts or overwrites the incoming copy unless the local copy is
// strictly newer. An update for an unknown identity is treated as an
// insert, recovering from a missed insert event.
func (e *Engine) adopt(ctx context.Context, incoming model.Case) {
	local, ok := e.store.Get(incoming.ID)
	if !ok {
		if err := e.store.ApplyCreate(ctx, incoming); err != nil {
			e.log.Warn(ctx, "realtime insert failed", "id", incoming.ID, "error", err)
		}
		return
	}

	if merge.LocalWins(local, incoming) {
		// Local edit not yet acknowledged remotely; keep it.
		return
	}
	err := e.store.ApplyUpdate(ctx, incoming.ID, func(c *model.Case) {
		*c = incoming
	})
	if err != nil {
		e.log.Warn(ctx, "realtime update failed", "id", incoming.ID, "error", err)
	}
}
