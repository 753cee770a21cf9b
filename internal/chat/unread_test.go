package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ageniuscoder/mmchat/widget/internal/models"
	"github.com/ageniuscoder/mmchat/widget/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conversationWith(msgs ...models.Message) *models.Conversation {
	conv := models.ConversationFromDTO(models.ConversationDTO{ID: "c1", AppUserID: "u1", Messages: msgs})
	conv.AddAppUser("u1")
	return conv
}

func markersAt(t *testing.T, ts int64) *storage.DeviceStore {
	t.Helper()
	m := storage.NewDeviceStore(storage.NewMemoryStorage())
	require.NoError(t, m.SetLatestReadTs(context.Background(), ts))
	return m
}

func TestUnread_RecomputeAndMarkAllRead(t *testing.T) {
	ctx := context.Background()
	conv := conversationWith(agentMessage("a", 10.2), agentMessage("b", 15.9))
	markers := markersAt(t, 9)

	u := NewUnread(conv, markers, nil)
	u.Attach(ctx)
	defer u.Dispose()
	assert.Equal(t, 2, conv.Unread())

	require.NoError(t, u.MarkAllRead(ctx))
	ts, err := markers.LatestReadTs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(15), ts)
	assert.Equal(t, 0, conv.Unread())
	assert.Equal(t, 0, u.Recompute(ctx))
}

func TestUnread_FloorComparison(t *testing.T) {
	ctx := context.Background()
	// floor(10.2) is 10, which is not after a marker of 10
	conv := conversationWith(agentMessage("a", 10.2), agentMessage("b", 15.9))

	u := NewUnread(conv, markersAt(t, 10), nil)
	assert.Equal(t, 1, u.Recompute(ctx))

	conv.AddMessage(agentMessage("c", 10.9))
	assert.Equal(t, 1, u.Recompute(ctx), "same whole second as the marker")
}

func TestUnread_OwnMessagesNeverCount(t *testing.T) {
	ctx := context.Background()
	conv := conversationWith(
		models.Message{ID: "mine", AuthorID: "u1", Role: models.RoleAppUser, Received: 99},
		agentMessage("theirs", 99),
	)

	u := NewUnread(conv, markersAt(t, 0), nil)
	assert.Equal(t, 1, u.Recompute(ctx))
}

func TestUnread_TracksAdds(t *testing.T) {
	ctx := context.Background()
	conv := conversationWith()

	var notified []int
	conv.On(models.TopicChangeUnread, func(p any) { notified = append(notified, p.(int)) })

	u := NewUnread(conv, markersAt(t, 5), nil)
	u.Attach(ctx)

	conv.AddMessage(agentMessage("old", 4))
	conv.AddMessage(agentMessage("new", 6))
	conv.AddMessage(agentMessage("new", 6))
	conv.AddMessage(agentMessage("newer", 7))
	assert.Equal(t, 2, conv.Unread())
	assert.Equal(t, []int{1, 2}, notified, "only changes are announced")

	u.Dispose()
	conv.AddMessage(agentMessage("detached", 8))
	assert.Equal(t, 2, conv.Unread())
}

func TestUnread_MarkAllReadEmptyConversation(t *testing.T) {
	ctx := context.Background()
	markers := storage.NewDeviceStore(storage.NewMemoryStorage())

	u := NewUnread(conversationWith(), markers, nil)
	require.NoError(t, u.MarkAllRead(ctx))

	ts, err := markers.LatestReadTs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)
}

func TestUnread_MarkerNeverMovesBack(t *testing.T) {
	ctx := context.Background()
	markers := markersAt(t, 50)

	u := NewUnread(conversationWith(agentMessage("a", 20.5)), markers, nil)
	require.NoError(t, u.MarkAllRead(ctx))

	ts, err := markers.LatestReadTs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), ts)
	assert.Equal(t, int64(50), u.LatestReadTs(ctx))
}

type brokenMarkers struct{ err error }

func (b brokenMarkers) LatestReadTs(context.Context) (int64, error) { return 0, b.err }
func (b brokenMarkers) SetLatestReadTs(context.Context, int64) error { return b.err }

func TestUnread_MarkerStoreFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	conv := conversationWith(agentMessage("a", 3))

	u := NewUnread(conv, brokenMarkers{err: boom}, nil)
	assert.Equal(t, 1, u.Recompute(ctx), "unreadable marker counts as nothing read")
	assert.ErrorIs(t, u.MarkAllRead(ctx), boom)
	assert.Equal(t, 1, conv.Unread())
}

func TestUnread_ConcurrentAddsAndMarkAllRead(t *testing.T) {
	ctx := context.Background()

	for trial := 0; trial < 200; trial++ {
		conv := conversationWith()
		u := NewUnread(conv, markersAt(t, 0), nil)
		u.Attach(ctx)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				conv.AddMessage(agentMessage(fmt.Sprintf("m%d", i), float64(100+i)))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, u.MarkAllRead(ctx))
			}
		}()
		wg.Wait()

		require.Equal(t, conv.CountUnread(u.LatestReadTs(ctx)), conv.Unread(), "trial %d", trial)
		u.Dispose()
	}
}

func TestUnread_ListenerMayMarkAllRead(t *testing.T) {
	ctx := context.Background()
	conv := conversationWith()
	u := NewUnread(conv, markersAt(t, 0), nil)
	u.Attach(ctx)
	defer u.Dispose()

	conv.On(models.TopicChangeUnread, func(p any) {
		if p.(int) > 0 {
			assert.NoError(t, u.MarkAllRead(ctx))
		}
	})

	conv.AddMessage(agentMessage("a", 12.5))
	assert.Equal(t, 0, conv.Unread())
	assert.Equal(t, int64(12), u.LatestReadTs(ctx))
}
