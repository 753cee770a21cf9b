package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ageniuscoder/mmchat/widget/internal/models"
	"go.uber.org/zap"
)

// FetchConversations lists the conversations of an app user. At most one is
// expected.
func (c *Client) FetchConversations(ctx context.Context, appUserID string) ([]models.ConversationDTO, error) {
	var out struct {
		Conversations []models.ConversationDTO `json:"conversations"`
	}
	path := "v1/appusers/" + url.PathEscape(appUserID) + "/conversations"
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (c *Client) CreateConversation(ctx context.Context, dto models.ConversationDTO) (models.ConversationDTO, error) {
	var out struct {
		Conversation models.ConversationDTO `json:"conversation"`
	}
	req := struct {
		AppUserID string `json:"appUserId"`
	}{AppUserID: dto.AppUserID}
	if err := c.call(ctx, http.MethodPost, "v1/conversations", req, &out); err != nil {
		return models.ConversationDTO{}, err
	}
	c.log.Debug("conversation created", zap.String("conversation_id", out.Conversation.ID))
	return out.Conversation, nil
}

func (c *Client) CreateMessage(ctx context.Context, conversationID string, draft models.MessageDraft) (models.Message, error) {
	var out struct {
		Message models.Message `json:"message"`
	}
	path := "v1/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.call(ctx, http.MethodPost, path, draft, &out); err != nil {
		return models.Message{}, err
	}
	return out.Message, nil
}
