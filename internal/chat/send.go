package chat

import (
	"context"

	"github.com/ageniuscoder/mmchat/widget/internal/models"
	"github.com/ageniuscoder/mmchat/widget/internal/vent"
	"go.uber.org/zap"
)

// SendMessage posts text on behalf of the app user.
//
// An unsaved conversation is created first and merged onto the local one,
// then the real-time channel is (re)established, pending user attributes are
// flushed and the message is created. The message is added to the collection
// only once the server confirmed it. Any failing step aborts the pipeline
// and its error is returned unchanged. If the controller is destroyed while a
// request is in flight, the confirmed message is returned without touching
// the session.
func (c *Controller) SendMessage(ctx context.Context, text string) (*models.Message, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	conv := c.Conversation()
	if conv == nil {
		return nil, ErrNoConversation
	}

	if conv.IsNew() {
		created, err := c.store.CreateConversation(ctx, models.ConversationDTO{AppUserID: c.user.ID()})
		if err != nil {
			return nil, err
		}
		if err := c.alive(); err != nil {
			return nil, err
		}
		models.MergeInto(conv, created)
		conv.AddAppUser(c.user.ID())
		c.log.Info("conversation created", zap.String("conversation_id", conv.ID()))
	}

	c.initFaye(ctx, conv)

	if pending := c.user.Pending(); len(pending) > 0 {
		dto, err := c.store.UpdateAppUser(ctx, c.user.ID(), pending)
		if err != nil {
			return nil, err
		}
		if err := c.alive(); err != nil {
			return nil, err
		}
		c.user.Apply(dto)
	}

	msg, err := c.store.CreateMessage(ctx, conv.ID(), models.MessageDraft{
		AuthorID: c.user.ID(),
		Role:     models.RoleAppUser,
		Text:     text,
	})
	if err != nil {
		return nil, err
	}
	if c.alive() != nil {
		return &msg, nil
	}

	conv.AddMessage(msg)

	if c.promptsForEmail() && conv.CountAuthoredBy(c.user.ID()) == 1 {
		c.prompter.ShowEmailCapture()
	}

	c.events.Publish(vent.MessageSent, msg)
	return &msg, nil
}

// promptsForEmail reports whether the email capture prompt may be shown. An
// email set by the host is read-only and never asked for.
func (c *Controller) promptsForEmail() bool {
	return c.opts.EmailCaptureEnabled && !c.opts.ReadOnlyEmail && c.user.Email() == ""
}
