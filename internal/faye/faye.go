package faye

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/ageniuscoder/mmchat/widget/internal/models"
	"github.com/ageniuscoder/mmchat/widget/internal/vent"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Options struct {
	// ServiceURL is the REST root; the websocket lives at <root>/faye.
	ServiceURL string
	AppToken   string
	AppUserID  string
	Dialer     *websocket.Dialer
	Logger     *zap.Logger
}

// ConversationChannel is the channel carrying new messages of a conversation.
func ConversationChannel(conversationID string) string {
	return "/conversations/" + conversationID
}

// WebsocketURL maps an http(s) service root to its faye websocket endpoint.
func WebsocketURL(serviceURL string) (string, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return "", errors.Wrap(err, "faye: bad service url")
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", errors.Errorf("faye: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/faye"
	return u.String(), nil
}

// Init connects, subscribes to the conversation channel and republishes every
// inbound message on bus under vent.ReceiveMessage. It never touches the data
// model itself. On failure the connection is closed and the error returned.
func Init(ctx context.Context, opts Options, conversationID string, bus *vent.Bus) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("conversation_id", conversationID))

	wsURL, err := WebsocketURL(opts.ServiceURL)
	if err != nil {
		return nil, err
	}

	client, err := Dial(ctx, wsURL, opts.Dialer, log, subscribeAuth{
		appToken:  opts.AppToken,
		appUserID: opts.AppUserID,
	})
	if err != nil {
		log.Error("faye subscription error", zap.Error(err))
		return nil, err
	}

	if err := client.Handshake(ctx); err != nil {
		log.Error("faye subscription error", zap.Error(err))
		client.close()
		return nil, err
	}

	err = client.Subscribe(ctx, ConversationChannel(conversationID), func(data json.RawMessage) {
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn("faye bad message payload", zap.Error(err))
			return
		}
		bus.Publish(vent.ReceiveMessage, msg)
	})
	if err != nil {
		log.Error("faye subscription error", zap.Error(err))
		client.close()
		return nil, err
	}

	log.Debug("faye subscribed")
	return client, nil
}
