package engine

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"casesync/internal/common"
	"casesync/internal/legacy"
	"casesync/internal/logging"
	"casesync/internal/model"
	"casesync/internal/normalize"
	"casesync/internal/remote"
	"casesync/internal/remote/realtime"
	"casesync/internal/store"
)

var now = time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

// fakeRemote embeds the interface; tests override only what they exercise.
type fakeRemote struct {
	remote.Client

	rows     []normalize.Payload
	fetchErr error
	one      map[string]normalize.Payload
	session  bool

	createErr error
	created   []model.Case
	updates   []normalize.Payload
	bulked    [][]model.Case

	settings    model.Settings
	settingsErr error
	settingsHit int
	putSettings []model.Settings
	putErr      error
}

func (f *fakeRemote) FetchAll(ctx context.Context) ([]normalize.Payload, error) {
	return f.rows, f.fetchErr
}

func (f *fakeRemote) FetchOne(ctx context.Context, id string) (normalize.Payload, error) {
	if row, ok := f.one[id]; ok {
		return row, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeRemote) SessionActive() bool { return f.session }

func (f *fakeRemote) Create(ctx context.Context, c model.Case) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, c)
	return nil
}

func (f *fakeRemote) Update(ctx context.Context, id string, patch normalize.Payload) error {
	f.updates = append(f.updates, patch)
	return nil
}

func (f *fakeRemote) BulkInsert(ctx context.Context, cases []model.Case) error {
	f.bulked = append(f.bulked, cases)
	return nil
}

func (f *fakeRemote) FetchSettings(ctx context.Context) (model.Settings, error) {
	f.settingsHit++
	return f.settings, f.settingsErr
}

func (f *fakeRemote) PutSettings(ctx context.Context, st model.Settings) error {
	f.putSettings = append(f.putSettings, st)
	return f.putErr
}

type memRepo struct{ blobs map[string][]byte }

func (r *memRepo) Get(ctx context.Context, key string) ([]byte, error) { return r.blobs[key], nil }
func (r *memRepo) Set(ctx context.Context, key string, value []byte) error {
	r.blobs[key] = value
	return nil
}
func (r *memRepo) Delete(ctx context.Context, key string) error {
	delete(r.blobs, key)
	return nil
}
func (r *memRepo) List(ctx context.Context) (map[string][]byte, error) { return r.blobs, nil }

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newEngine(t *testing.T, rc *fakeRemote) (*Engine, *store.Store) {
	t.Helper()
	st := store.New(&memRepo{blobs: map[string][]byte{}}, testLogger())
	st.Now = func() time.Time { return now }

	e := New(Options{
		Store:  st,
		Remote: rc,
		Legacy: legacy.NewClient("", testLogger()),
		Logger: testLogger(),
	})
	e.Now = func() time.Time { return now }
	e.bin.Now = func() time.Time { return now }
	return e, st
}

func seed(t *testing.T, st *store.Store, id string, updatedAgo time.Duration) {
	t.Helper()
	err := st.ApplyCreate(context.Background(), model.Case{
		ID:        id,
		Status:    model.StatusIntake,
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now.Add(-updatedAgo),
	})
	require.NoError(t, err)
}

func TestCreate_OptimisticOnRemoteFailure(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{createErr: common.ErrUnavailable}
	e, st := newEngine(t, rc)

	c, err := e.Create(ctx, normalize.Payload{"name": "김철수", "phone": "010-1234-5678"})
	require.ErrorIs(t, err, common.ErrUnavailable)
	require.NotEmpty(t, c.ID)

	// The record is usable locally despite the failed remote write.
	got, ok := st.Get(c.ID)
	require.True(t, ok)
	require.Equal(t, "김철수", got.Name)
}

func TestCreate_GhostRejected(t *testing.T) {
	rc := &fakeRemote{}
	e, st := newEngine(t, rc)

	_, err := e.Create(context.Background(), normalize.Payload{"memo": "identity-free"})
	require.ErrorIs(t, err, common.ErrGhostPayload)
	require.Empty(t, st.GetAll())
}

func TestUpdate_RefreshesTimestampAndPatchesRemote(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{}
	e, st := newEngine(t, rc)
	seed(t, st, "a", 30*time.Minute)

	require.NoError(t, e.Update(ctx, "a", normalize.Payload{"memo": "상담 완료"}))

	got, _ := st.Get("a")
	require.Equal(t, "상담 완료", got.Memo)
	require.Equal(t, now, got.UpdatedAt)

	require.Len(t, rc.updates, 1)
	require.Equal(t, "상담 완료", rc.updates[0]["memo"])
	require.Equal(t, now.UTC().Format(time.RFC3339Nano), rc.updates[0]["updatedAt"])
}

func TestMarkViewed(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{}
	e, st := newEngine(t, rc)
	seed(t, st, "a", time.Hour)

	before, _ := st.Get("a")
	require.True(t, before.IsNew())

	require.NoError(t, e.MarkViewed(ctx, "a"))
	after, _ := st.Get("a")
	require.True(t, after.Viewed)
	require.False(t, after.IsNew())
}

func TestRevalidate_FailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{fetchErr: common.ErrUnavailable, session: true}
	e, st := newEngine(t, rc)
	seed(t, st, "cached", time.Hour)

	require.ErrorIs(t, e.revalidate(ctx), common.ErrUnavailable)
	require.Len(t, st.GetAll(), 1)
}

func TestRevalidate_EmptySnapshotWithoutSessionIgnored(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{rows: nil, session: false}
	e, st := newEngine(t, rc)
	seed(t, st, "cached", time.Hour)

	require.NoError(t, e.revalidate(ctx))
	require.Len(t, st.GetAll(), 1, "unauthenticated empty snapshot must not wipe the cache")

	// With an active session the same snapshot is authoritative, and the
	// stale record (past the grace window) goes away.
	rc.session = true
	require.NoError(t, e.revalidate(ctx))
	require.Empty(t, st.GetAll())
}

func TestRevalidate_KeepsFreshCreateAgainstEmptySnapshot(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{createErr: common.ErrUnavailable, session: true}
	e, st := newEngine(t, rc)

	// The remote write failed, so the record exists only locally.
	c, err := e.Create(ctx, normalize.Payload{"name": "김철수", "phone": "010-1234-5678"})
	require.ErrorIs(t, err, common.ErrUnavailable)

	// A revalidation against an empty authoritative snapshot must keep the
	// seconds-old pending create.
	require.NoError(t, e.revalidate(ctx))
	_, ok := st.Get(c.ID)
	require.True(t, ok, "pending create inside the grace window must survive revalidation")
}

func TestRevalidate_MergesRemoteSnapshot(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{
		session: true,
		rows: []normalize.Payload{
			{"id": "a", "memo": "remote", "updatedAt": now.Add(-time.Minute).Format(time.RFC3339)},
			{"id": "b", "name": "박영희"},
			{"memo": "ghost row"},
		},
	}
	e, st := newEngine(t, rc)
	seed(t, st, "a", 30*time.Minute)

	require.NoError(t, e.revalidate(ctx))

	all := st.GetAll()
	require.Len(t, all, 2, "ghost row skipped, rest merged")
	got, _ := st.Get("a")
	require.Equal(t, "remote", got.Memo, "newer remote copy adopted")
}

func TestGet_MissFallsBackToRemote(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{one: map[string]normalize.Payload{
		"far": {"id": "far", "name": "이민호"},
	}}
	e, st := newEngine(t, rc)

	c, err := e.Get(ctx, "far")
	require.NoError(t, err)
	require.Equal(t, "이민호", c.Name)

	// Inserted locally; the second read does not hit the remote.
	_, ok := st.Get("far")
	require.True(t, ok)

	_, err = e.Get(ctx, "nowhere")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestApplyEvent_InsertAndDuplicateIdempotent(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{}
	e, st := newEngine(t, rc)

	ev := realtime.Event{Kind: realtime.KindInsert, Row: normalize.Payload{"id": "a", "name": "김철수"}}
	e.applyEvent(ctx, ev)
	e.applyEvent(ctx, ev) // at-least-once delivery

	all := st.GetAll()
	require.Len(t, all, 1)
	require.Equal(t, "김철수", all[0].Name)
}

func TestApplyEvent_UpdateKeepsNewerLocalEdit(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{}
	e, st := newEngine(t, rc)
	seed(t, st, "a", 0) // local edited right now

	stale := now.Add(-10 * time.Minute).Format(time.RFC3339)
	e.applyEvent(ctx, realtime.Event{
		Kind: realtime.KindUpdate,
		Row:  normalize.Payload{"id": "a", "memo": "stale remote", "updatedAt": stale, "createdAt": now.Add(-time.Hour).Format(time.RFC3339)},
	})

	got, _ := st.Get("a")
	require.Empty(t, got.Memo, "older remote copy must not clobber the local edit")

	fresh := now.Add(time.Minute).Format(time.RFC3339)
	e.applyEvent(ctx, realtime.Event{
		Kind: realtime.KindUpdate,
		Row:  normalize.Payload{"id": "a", "memo": "fresh remote", "updatedAt": fresh, "createdAt": now.Add(-time.Hour).Format(time.RFC3339)},
	})

	got, _ = st.Get("a")
	require.Equal(t, "fresh remote", got.Memo)
}

func TestApplyEvent_UpdateBeforeInsertRecovers(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{}
	e, st := newEngine(t, rc)

	// The update arrives before (or instead of) the insert event.
	e.applyEvent(ctx, realtime.Event{
		Kind: realtime.KindUpdate,
		Row:  normalize.Payload{"id": "a", "name": "박영희"},
	})

	got, ok := st.Get("a")
	require.True(t, ok)
	require.Equal(t, "박영희", got.Name)
}

func TestApplyEvent_Delete(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{}
	e, st := newEngine(t, rc)
	seed(t, st, "a", time.Hour)

	e.applyEvent(ctx, realtime.Event{Kind: realtime.KindDelete, ID: "a"})
	_, ok := st.Get("a")
	require.False(t, ok)

	// Redelivery of the same delete is harmless.
	require.NotPanics(t, func() {
		e.applyEvent(ctx, realtime.Event{Kind: realtime.KindDelete, ID: "a"})
	})
}

func TestApplyEvent_InvalidateRefetchesSettings(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{settings: model.Settings{Managers: []string{"김관리"}}}
	e, st := newEngine(t, rc)

	e.applyEvent(ctx, realtime.Event{Kind: realtime.KindInvalidate})
	require.Equal(t, 1, rc.settingsHit)
	require.Equal(t, []string{"김관리"}, st.Settings().Managers)
}

func TestImport_SkipsGhostsAndBulkInserts(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{}
	e, st := newEngine(t, rc)

	n, err := e.Import(ctx, []normalize.Payload{
		{"name": "김철수", "phone": "010-1111-2222"},
		{"memo": "no identity at all"},
		{"name": "박영희"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, st.GetAll(), 2)
	require.Len(t, rc.bulked, 1)
	require.Len(t, rc.bulked[0], 2)
}

func TestImport_EmptyBatchSkipsRemote(t *testing.T) {
	rc := &fakeRemote{}
	e, _ := newEngine(t, rc)

	n, err := e.Import(context.Background(), []normalize.Payload{{"memo": "ghost"}})
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, rc.bulked)
}

func TestRefresh_SurfacesErrors(t *testing.T) {
	rc := &fakeRemote{fetchErr: common.ErrUnavailable}
	e, _ := newEngine(t, rc)
	require.ErrorIs(t, e.Refresh(context.Background()), common.ErrUnavailable)
}

func TestInitAndShutdown(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{session: true, rows: []normalize.Payload{{"id": "a", "name": "김철수"}}}
	e, st := newEngine(t, rc)

	require.NoError(t, e.Init(ctx))
	require.Len(t, st.GetAll(), 1)

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, e.Shutdown(shutdownCtx))
}

func TestRefreshSettings_LegacyFallback(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "settings", r.URL.Query().Get("type"))
		_, _ = w.Write([]byte(`{"managers":["김관리"]}`))
	}))
	defer srv.Close()

	rc := &fakeRemote{settingsErr: common.ErrUnavailable}
	st := store.New(&memRepo{blobs: map[string][]byte{}}, testLogger())
	e := New(Options{
		Store:  st,
		Remote: rc,
		Legacy: legacy.NewClient(srv.URL, testLogger()),
		Logger: testLogger(),
	})

	require.NoError(t, e.refreshSettings(ctx))
	require.Equal(t, []string{"김관리"}, st.Settings().Managers)
}

func TestUpdateSettings_OptimisticOnRemoteFailure(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{putErr: common.ErrUnavailable}
	e, st := newEngine(t, rc)

	next := model.Settings{Managers: []string{"이실장"}}
	require.ErrorIs(t, e.UpdateSettings(ctx, next), common.ErrUnavailable)
	require.Equal(t, []string{"이실장"}, st.Settings().Managers)

	rc.putErr = nil
	require.NoError(t, e.UpdateSettings(ctx, next))
	require.Len(t, rc.putSettings, 2)
}

func TestSubscribe_FiresOnEngineWrites(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRemote{}
	e, _ := newEngine(t, rc)

	var fired int
	unsub := e.Subscribe(func() { fired++ })
	defer unsub()

	_, err := e.Create(ctx, normalize.Payload{"name": "김철수"})
	require.NoError(t, err)
	require.Equal(t, 1, fired)
}
