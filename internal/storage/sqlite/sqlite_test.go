package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ageniuscoder/mmchat/widget/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Sqlite, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "widget.db")
	s, err := New("file:" + path)
	require.NoError(t, err)
	return s, path
}

func TestSqlite_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close()

	require.NoError(t, s.Ping(ctx))

	_, err := s.Get(ctx, storage.KeyLatestReadTs)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, storage.KeyLatestReadTs, "10"))
	require.NoError(t, s.Set(ctx, storage.KeyLatestReadTs, "15"))

	v, err := s.Get(ctx, storage.KeyLatestReadTs)
	require.NoError(t, err)
	assert.Equal(t, "15", v)

	require.NoError(t, s.Delete(ctx, storage.KeyLatestReadTs))
	_, err = s.Get(ctx, storage.KeyLatestReadTs)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSqlite_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)

	d := storage.NewDeviceStore(s)
	id, err := d.DeviceID(ctx)
	require.NoError(t, err)
	require.NoError(t, d.SetLatestReadTs(ctx, 42))
	require.NoError(t, s.Close())

	reopened, err := New("file:" + path)
	require.NoError(t, err)
	defer reopened.Close()

	d = storage.NewDeviceStore(reopened)
	again, err := d.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	ts, err := d.LatestReadTs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), ts)
}
