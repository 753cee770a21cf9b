package chat

import (
	"context"
	"errors"

	"github.com/ageniuscoder/mmchat/widget/internal/models"
	"go.uber.org/zap"
)

// InitConversation establishes the canonical conversation of the session.
//
// The remote store is queried until a persisted conversation has been found
// once; after that the in-memory conversation is returned directly. A local
// unsaved conversation that already has listeners is never replaced: remote
// state is merged onto it. While the conversation stays unsaved, a one-shot
// observer on the user's conversationStarted flag re-runs the bootstrap.
func (c *Controller) InitConversation(ctx context.Context) (*models.Conversation, error) {
	c.bootMu.Lock()
	defer c.bootMu.Unlock()

	if err := c.alive(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	initiated := c.conversationInitiated
	c.mu.Unlock()
	if initiated {
		return c.getConversation(nil)
	}

	remote, err := c.store.FetchConversations(ctx, c.user.ID())
	if err != nil {
		return nil, err
	}

	conv, err := c.getConversation(remote)
	if err != nil {
		return nil, err
	}

	c.initFaye(ctx, conv)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, ErrDestroyed
	}
	c.conversationInitiated = !conv.IsNew()
	if !c.conversationInitiated && c.startedHandle == nil {
		c.startedHandle = c.user.On(models.TopicConversationStarted, c.onConversationStarted)
		c.teardown.Add(c.startedHandle)
	}
	return conv, nil
}

func (c *Controller) getConversation(remote []models.ConversationDTO) (*models.Conversation, error) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil, ErrDestroyed
	}

	conv := c.conversation
	switch {
	case conv != nil:
		c.mu.Unlock()
		// we created an unsaved conversation but a remote one exists: merge
		// it onto the local object so nothing bound to it has to rebind
		if conv.IsNew() && len(remote) > 0 {
			models.MergeInto(conv, remote[0])
			c.log.Debug("merged remote conversation", zap.String("conversation_id", conv.ID()))
		}
	case len(remote) > 0:
		conv = models.ConversationFromDTO(remote[0])
		c.conversation = conv
		c.mu.Unlock()
	default:
		conv = models.NewConversation(c.user.ID())
		c.conversation = conv
		c.mu.Unlock()
	}

	conv.AddAppUser(c.user.ID())
	return conv, nil
}

func (c *Controller) onConversationStarted(p any) {
	if started, _ := p.(bool); !started {
		return
	}

	c.mu.Lock()
	h := c.startedHandle
	c.startedHandle = nil
	destroyed := c.destroyed
	c.mu.Unlock()

	if h != nil {
		h.Dispose()
	}
	if destroyed {
		return
	}

	go func() {
		if _, err := c.InitConversation(c.ctx); err != nil && !errors.Is(err, ErrDestroyed) {
			c.log.Warn("conversation bootstrap after start", zap.Error(err))
		}
	}()
}
