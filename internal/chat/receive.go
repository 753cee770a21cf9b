package chat

import (
	"github.com/ageniuscoder/mmchat/widget/internal/models"
	"github.com/ageniuscoder/mmchat/widget/internal/vent"
	"go.uber.org/zap"
)

// receiveMessage handles one inbound message from the real-time bus. Unknown
// authors that are not app users are registered as app makers first, so the
// message renders with a name. Echoes of our own sends are dropped by the
// idempotent add.
func (c *Controller) receiveMessage(p any) {
	var msg models.Message
	switch v := p.(type) {
	case models.Message:
		msg = v
	case *models.Message:
		if v == nil {
			return
		}
		msg = *v
	default:
		c.log.Warn("unexpected real-time payload")
		return
	}

	c.mu.Lock()
	conv := c.conversation
	destroyed := c.destroyed
	c.mu.Unlock()
	if destroyed || conv == nil {
		return
	}

	fromAppUser := conv.IsAppUser(msg.AuthorID)
	if !fromAppUser && msg.AuthorID != "" {
		if conv.AddAppMaker(models.AppMaker{ID: msg.AuthorID, Name: msg.Name, AvatarURL: msg.AvatarURL}) {
			c.log.Debug("new app maker", zap.String("app_maker_id", msg.AuthorID))
		}
	}

	if !conv.AddMessage(msg) {
		return
	}
	if !fromAppUser {
		c.events.Publish(vent.MessageReceived, msg)
	}
}
