package snapshots

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository_GetMissReturnsNil(t *testing.T) {
	repo := setupRepo(t)

	value, err := repo.Get(context.Background(), "cases")
	require.NoError(t, err)
	require.Nil(t, value)
}

func TestRepository_SetGetOverwrite(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	require.NoError(t, repo.Set(ctx, "cases", []byte(`[{"id":"a"}]`)))
	value, err := repo.Get(ctx, "cases")
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":"a"}]`, string(value))

	require.NoError(t, repo.Set(ctx, "cases", []byte(`[]`)))
	value, err = repo.Get(ctx, "cases")
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(value))
}

func TestRepository_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	require.NoError(t, repo.Set(ctx, "cases", []byte(`[]`)))
	require.NoError(t, repo.Set(ctx, "settings", []byte(`{}`)))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, repo.Delete(ctx, "cases"))
	value, err := repo.Get(ctx, "cases")
	require.NoError(t, err)
	require.Nil(t, value)
}
