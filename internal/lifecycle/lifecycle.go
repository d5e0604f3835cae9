// Package lifecycle owns the recycle-bin state machine: soft delete,
// restore, and the timed purge that hard-deletes records once their
// retention window elapsed.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"casesync/internal/common"
	"casesync/internal/legacy"
	"casesync/internal/logging"
	"casesync/internal/model"
	"casesync/internal/remote"
	"casesync/internal/store"
)

// DefaultRetention is how long a soft-deleted case stays recoverable.
const DefaultRetention = 30 * 24 * time.Hour

type Manager struct {
	store     *store.Store
	remote    remote.Client
	legacy    *legacy.Client
	log       logging.Logger
	retention time.Duration

	// Now is a test seam for the clock.
	Now func() time.Time
}

func NewManager(st *store.Store, rc remote.Client, lc *legacy.Client, log logging.Logger, retention time.Duration) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{
		store:     st,
		remote:    rc,
		legacy:    lc,
		log:       log,
		retention: retention,
		Now:       time.Now,
	}
}

// SoftDelete moves the case into the recycle bin: optimistic local flip
// first, then the remote write, whose failure propagates to the caller
// while the local state stays in effect.
func (m *Manager) SoftDelete(ctx context.Context, id string) error {
	if err := m.store.ApplyDelete(ctx, id, store.SoftDelete); err != nil {
		return err
	}
	if err := m.remote.SoftDelete(ctx, id); err != nil {
		return err
	}
	m.legacy.Send(legacy.Envelope{Target: "cases", Action: "trash", Data: map[string]string{"id": id}})
	return nil
}

// Restore brings a binned case back to the intake status and clears its
// deletion marker.
func (m *Manager) Restore(ctx context.Context, id string) error {
	if err := m.store.ApplyRestore(ctx, id); err != nil {
		return err
	}
	if err := m.remote.Restore(ctx, id); err != nil {
		return err
	}
	m.legacy.Send(legacy.Envelope{Target: "cases", Action: "restore", Data: map[string]string{"id": id}})
	return nil
}

// HardDelete removes the case for good, locally and remotely.
func (m *Manager) HardDelete(ctx context.Context, id string) error {
	if err := m.store.ApplyDelete(ctx, id, store.HardDelete); err != nil {
		return err
	}
	if err := m.remote.HardDelete(ctx, id); err != nil {
		return err
	}
	m.legacy.Send(legacy.Envelope{Target: "cases", Action: "delete", Data: map[string]string{"id": id}})
	return nil
}

// Expired returns common.ErrRetentionExpired when c is a purge candidate:
// in the bin and soft-deleted longer than the retention window ago.
func (m *Manager) Expired(c model.Case, now time.Time) error {
	if !c.InBin() {
		return nil
	}
	if now.Sub(c.DeletedSince()) > m.retention {
		return common.ErrRetentionExpired
	}
	return nil
}

// PurgeExpired scans the bin and hard-deletes every case whose retention
// window elapsed. It runs on startup and periodically. A failure on one
// record is logged and the scan continues; the remote delete goes first so
// a failed record stays in the bin and is retried on the next scan.
func (m *Manager) PurgeExpired(ctx context.Context) int {
	now := m.Now()
	purged := 0

	for _, c := range m.store.GetAll() {
		if !errors.Is(m.Expired(c, now), common.ErrRetentionExpired) {
			continue
		}

		if err := m.remote.HardDelete(ctx, c.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			m.log.Warn(ctx, "purge failed, keeping case in bin", "id", c.ID, "error", err)
			continue
		}
		if err := m.store.ApplyDelete(ctx, c.ID, store.HardDelete); err != nil {
			m.log.Warn(ctx, "purge failed locally", "id", c.ID, "error", err)
			continue
		}
		m.legacy.Send(legacy.Envelope{Target: "cases", Action: "delete", Data: map[string]string{"id": c.ID}})
		purged++
	}

	if purged > 0 {
		m.log.Info(ctx, "recycle bin purged", "count", purged)
	}
	return purged
}
