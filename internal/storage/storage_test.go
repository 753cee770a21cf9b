package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceStore_DeviceIDIsStable(t *testing.T) {
	ctx := context.Background()
	d := NewDeviceStore(NewMemoryStorage())

	id, err := d.DeviceID(ctx)
	require.NoError(t, err)
	assert.Len(t, id, 32)
	assert.NotContains(t, id, "-")

	again, err := d.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestDeviceStore_LatestReadTs(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStorage()
	d := NewDeviceStore(mem)

	ts, err := d.LatestReadTs(ctx)
	require.NoError(t, err)
	assert.Zero(t, ts)

	require.NoError(t, d.SetLatestReadTs(ctx, 15))
	v, err := mem.Get(ctx, KeyLatestReadTs)
	require.NoError(t, err)
	assert.Equal(t, "15", v)

	ts, err = d.LatestReadTs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(15), ts)
}

func TestDeviceStore_LatestReadTsGarbage(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStorage()
	require.NoError(t, mem.Set(ctx, KeyLatestReadTs, "soon"))

	_, err := NewDeviceStore(mem).LatestReadTs(ctx)
	assert.Error(t, err)
}
