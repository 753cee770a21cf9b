package chat

import (
	"context"

	"github.com/ageniuscoder/mmchat/widget/internal/models"
	"go.uber.org/zap"
)

// initFaye makes sure the session holds exactly one real-time subscription,
// on conv. Unsaved conversations have nothing to subscribe to. A subscribe
// failure is logged and swallowed: the session keeps working without live
// updates and the next bootstrap or send tries again.
func (c *Controller) initFaye(ctx context.Context, conv *models.Conversation) {
	if c.realtime == nil || conv.IsNew() {
		return
	}
	id := conv.ID()

	c.mu.Lock()
	if c.destroyed || (c.sub != nil && c.subConversationID == id) {
		c.mu.Unlock()
		return
	}
	prev := c.sub
	c.sub = nil
	c.subConversationID = ""
	c.mu.Unlock()

	if prev != nil {
		prev.Disconnect()
	}

	if c.opts.SubscribeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.SubscribeTimeout)
		defer cancel()
	}

	sub, err := c.realtime.Subscribe(ctx, id)
	if err != nil {
		c.log.Warn("real-time subscription failed, continuing without live updates",
			zap.String("conversation_id", id), zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.destroyed || c.sub != nil {
		// torn down meanwhile, or a concurrent caller won
		c.mu.Unlock()
		sub.Disconnect()
		return
	}
	c.sub = sub
	c.subConversationID = id
	c.mu.Unlock()
}
