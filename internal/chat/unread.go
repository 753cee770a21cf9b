package chat

import (
	"context"
	"math"
	"sync"

	"github.com/ageniuscoder/mmchat/widget/internal/models"
	"github.com/ageniuscoder/mmchat/widget/internal/vent"
	"go.uber.org/zap"
)

// Unread keeps the unread counter of a conversation in line with the
// persisted last-read marker. The marker is whole seconds; a message is
// unread when it was not written by an app user and floor(received) is
// strictly greater than the marker.
type Unread struct {
	conv    *models.Conversation
	markers MarkerStore
	log     *zap.Logger

	mu     sync.Mutex
	latest int64
	loaded bool
	handle vent.Handle
	// one goroutine at a time publishes the counter; dirty asks it for
	// another pass
	flushing bool
	dirty    bool
}

func NewUnread(conv *models.Conversation, markers MarkerStore, log *zap.Logger) *Unread {
	if log == nil {
		log = zap.NewNop()
	}
	return &Unread{conv: conv, markers: markers, log: log}
}

// Attach computes the counter once and keeps it current on every add.
func (u *Unread) Attach(ctx context.Context) {
	u.Recompute(ctx)

	h := u.conv.On(models.TopicAdd, func(any) { u.Recompute(ctx) })

	u.mu.Lock()
	prev := u.handle
	u.handle = h
	u.mu.Unlock()
	if prev != nil {
		prev.Dispose()
	}
}

func (u *Unread) Dispose() {
	u.mu.Lock()
	h := u.handle
	u.handle = nil
	u.mu.Unlock()
	if h != nil {
		h.Dispose()
	}
}

// LatestReadTs returns the cached marker, loading it on first use. A store
// failure is logged and treated as "nothing read".
func (u *Unread) LatestReadTs(ctx context.Context) int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.latestLocked(ctx)
}

func (u *Unread) latestLocked(ctx context.Context) int64 {
	if u.loaded || u.markers == nil {
		return u.latest
	}
	ts, err := u.markers.LatestReadTs(ctx)
	if err != nil {
		u.log.Warn("read marker unavailable", zap.Error(err))
		return 0
	}
	u.latest = ts
	u.loaded = true
	return ts
}

// Recompute stores and returns the current unread count. Concurrent callers
// are coalesced: the last value stored always reflects the newest marker and
// message set.
func (u *Unread) Recompute(ctx context.Context) int {
	u.mu.Lock()
	n := u.conv.CountUnread(u.latestLocked(ctx))
	u.dirty = true
	if u.flushing {
		u.mu.Unlock()
		return n
	}
	u.flushing = true
	u.mu.Unlock()

	u.flush(ctx)
	return n
}

func (u *Unread) flush(ctx context.Context) {
	for {
		u.mu.Lock()
		if !u.dirty {
			u.flushing = false
			u.mu.Unlock()
			return
		}
		u.dirty = false
		n := u.conv.CountUnread(u.latestLocked(ctx))
		u.mu.Unlock()

		u.conv.SetUnread(n)
	}
}

// MarkAllRead moves the marker up to the whole second of the newest message
// and zeroes the counter. The marker never moves backwards.
func (u *Unread) MarkAllRead(ctx context.Context) error {
	u.mu.Lock()
	var ts int64
	if latest, ok := u.conv.LatestReceived(); ok {
		ts = int64(math.Floor(latest))
	}
	if cur := u.latestLocked(ctx); cur > ts {
		ts = cur
	}
	if u.markers != nil {
		if err := u.markers.SetLatestReadTs(ctx, ts); err != nil {
			u.mu.Unlock()
			return err
		}
	}
	u.latest = ts
	u.loaded = true
	u.mu.Unlock()

	u.Recompute(ctx)
	return nil
}
