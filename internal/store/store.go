// Package store holds the canonical in-memory case collection and mirrors
// it to durable local storage. It is the single source of truth for
// synchronous reads; every mutation funnels through its Apply operations,
// which persist a snapshot and fire the change notifier.
package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"casesync/internal/common"
	"casesync/internal/logging"
	"casesync/internal/model"
)

// Snapshot keys: one serialized blob per logical collection.
const (
	KeyCases    = "cases"
	KeySettings = "settings"
)

// SnapshotRepo persists serialized collection blobs under fixed keys.
// A Get miss returns (nil, nil).
type SnapshotRepo interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
}

// DeleteMode selects between moving a case to the recycle bin and removing
// it outright.
type DeleteMode int

const (
	SoftDelete DeleteMode = iota
	HardDelete
)

// Store is the local store. In-memory state is authoritative for the
// running session; persistence is best-effort and a failed write is logged
// without rolling the mutation back. Snapshots are written while the write
// lock is held, so the durable blob sequence matches the mutation order.
type Store struct {
	mu       sync.RWMutex
	cases    []model.Case
	settings model.Settings

	repo     SnapshotRepo
	notifier *Notifier
	log      logging.Logger

	// Now is a test seam for the clock.
	Now func() time.Time
}

func New(repo SnapshotRepo, log logging.Logger) *Store {
	return &Store{
		repo:     repo,
		notifier: NewNotifier(),
		log:      log,
		Now:      time.Now,
	}
}

// Hydrate loads the last persisted snapshots into memory. It runs before any
// network activity so readers have data before the first round trip
// completes. A missing snapshot is not an error. Blobs under keys no longer
// in use (collections retired by an older build) are deleted.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.repo.Get(ctx, KeyCases)
	if err != nil {
		return err
	}
	if raw != nil {
		var cases []model.Case
		if err := json.Unmarshal(raw, &cases); err != nil {
			s.log.Warn(ctx, "discarding unreadable case snapshot", "error", err)
		} else {
			s.cases = cases
			sortCases(s.cases)
		}
	}

	raw, err = s.repo.Get(ctx, KeySettings)
	if err != nil {
		return err
	}
	if raw != nil {
		var st model.Settings
		if err := json.Unmarshal(raw, &st); err != nil {
			s.log.Warn(ctx, "discarding unreadable settings snapshot", "error", err)
		} else {
			s.settings = st
		}
	}

	s.sweepRetiredLocked(ctx)
	return nil
}

// sweepRetiredLocked removes blobs whose keys no collection uses anymore.
// Best-effort: a failure here never blocks startup.
func (s *Store) sweepRetiredLocked(ctx context.Context) {
	all, err := s.repo.List(ctx)
	if err != nil {
		s.log.Warn(ctx, "cannot list snapshots", "error", err)
		return
	}
	for key := range all {
		if key == KeyCases || key == KeySettings {
			continue
		}
		if err := s.repo.Delete(ctx, key); err != nil {
			s.log.Warn(ctx, "cannot remove retired snapshot", "key", key, "error", err)
			continue
		}
		s.log.Info(ctx, "removed retired snapshot", "key", key)
	}
}

// GetAll returns a deep copy of the current collection, newest first.
func (s *Store) GetAll() []model.Case {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Get returns a copy of the case with the given identity.
func (s *Store) Get(id string) (model.Case, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.cases[i].Clone(), true
	}
	return model.Case{}, false
}

// FindByContact resolves an identity by (phone, name). Used by the
// normalizer to dedup records echoing back from a backend without their
// identifier.
func (s *Store) FindByContact(phone, name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cases {
		if c.Phone == phone && c.Name == name {
			return c.ID, true
		}
	}
	return "", false
}

// Settings returns a copy of the current settings collections.
func (s *Store) Settings() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// Subscribe registers a change callback; the returned function removes it.
func (s *Store) Subscribe(cb func()) func() {
	return s.notifier.Subscribe(cb)
}

// ApplyCreate inserts c, replacing any record already holding the same
// identity so the one-record-per-identity invariant holds.
func (s *Store) ApplyCreate(ctx context.Context, c model.Case) error {
	s.mu.Lock()
	s.upsertLocked(c)
	s.persistCasesLocked(ctx)
	s.mu.Unlock()

	s.notifier.Notify()
	return nil
}

// ApplyUpdate mutates the case with the given identity through mutate.
// Returns common.ErrNotFound when the identity is absent. The caller owns
// timestamp handling: optimistic edits refresh UpdatedAt, adoption of a
// remote copy keeps the remote timestamps.
func (s *Store) ApplyUpdate(ctx context.Context, id string, mutate func(*model.Case)) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return common.ErrNotFound
	}
	mutate(&s.cases[i])
	s.cases[i].ID = id // identity is immutable
	sortCases(s.cases)
	s.persistCasesLocked(ctx)
	s.mu.Unlock()

	s.notifier.Notify()
	return nil
}

// ApplyDelete soft-deletes (bin status, deletion marker, fresh UpdatedAt) or
// hard-deletes (removes) the case with the given identity.
func (s *Store) ApplyDelete(ctx context.Context, id string, mode DeleteMode) error {
	if mode == SoftDelete {
		now := s.Now()
		return s.ApplyUpdate(ctx, id, func(c *model.Case) {
			c.Status = model.StatusBin
			c.DeletedAt = &now
			c.UpdatedAt = now
		})
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return common.ErrNotFound
	}
	s.cases = append(s.cases[:i], s.cases[i+1:]...)
	s.persistCasesLocked(ctx)
	s.mu.Unlock()

	s.notifier.Notify()
	return nil
}

// ApplyRestore moves a case out of the recycle bin back to the intake
// status and clears the deletion marker.
func (s *Store) ApplyRestore(ctx context.Context, id string) error {
	now := s.Now()
	return s.ApplyUpdate(ctx, id, func(c *model.Case) {
		c.Status = model.StatusIntake
		c.DeletedAt = nil
		c.UpdatedAt = now
	})
}

// Merge computes the next canonical collection from the current one and
// swaps it in. fn runs while the write lock is held, so no concurrent
// mutation can land between the read and the swap; fn receives a deep copy
// and must not call back into the store.
func (s *Store) Merge(ctx context.Context, fn func(current []model.Case) []model.Case) {
	s.mu.Lock()
	next := fn(s.snapshotLocked())
	sortCases(next)
	s.cases = next
	s.persistCasesLocked(ctx)
	s.mu.Unlock()

	s.notifier.Notify()
}

// Replace swaps in the given collection wholesale, then persists and
// notifies once.
func (s *Store) Replace(ctx context.Context, cases []model.Case) {
	s.Merge(ctx, func([]model.Case) []model.Case { return cases })
}

// ReplaceSettings swaps in the merged settings collections.
func (s *Store) ReplaceSettings(ctx context.Context, st model.Settings) {
	s.mu.Lock()
	s.settings = st
	s.persistLocked(ctx, KeySettings, st)
	s.mu.Unlock()

	s.notifier.Notify()
}

func (s *Store) indexLocked(id string) int {
	for i := range s.cases {
		if s.cases[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) upsertLocked(c model.Case) {
	if i := s.indexLocked(c.ID); i >= 0 {
		s.cases[i] = c
	} else {
		s.cases = append(s.cases, c)
	}
	sortCases(s.cases)
}

func (s *Store) snapshotLocked() []model.Case {
	out := make([]model.Case, len(s.cases))
	for i, c := range s.cases {
		out[i] = c.Clone()
	}
	return out
}

func (s *Store) persistCasesLocked(ctx context.Context) {
	s.persistLocked(ctx, KeyCases, s.cases)
}

func (s *Store) persistLocked(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Error(ctx, "snapshot marshal failed", "key", key, "error", err)
		return
	}
	if err := s.repo.Set(ctx, key, raw); err != nil {
		// In-memory state stays authoritative for the running session.
		s.log.Error(ctx, "snapshot write failed", "key", key, "error", err)
	}
}

func sortCases(cases []model.Case) {
	sort.SliceStable(cases, func(i, j int) bool {
		if !cases[i].CreatedAt.Equal(cases[j].CreatedAt) {
			return cases[i].CreatedAt.After(cases[j].CreatedAt)
		}
		return cases[i].ID < cases[j].ID
	})
}
