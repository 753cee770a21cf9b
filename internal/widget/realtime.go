package widget

import (
	"context"

	"github.com/ageniuscoder/mmchat/widget/internal/api"
	"github.com/ageniuscoder/mmchat/widget/internal/chat"
	"github.com/ageniuscoder/mmchat/widget/internal/faye"
	"github.com/ageniuscoder/mmchat/widget/internal/vent"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// FayeSubscriber opens conversation channels on the faye endpoint of the
// current service, authenticated with the endpoint's credentials.
type FayeSubscriber struct {
	Endpoint *api.Endpoint
	Bus      *vent.Bus
	Dialer   *websocket.Dialer
	Logger   *zap.Logger
}

func (f *FayeSubscriber) Subscribe(ctx context.Context, conversationID string) (chat.Subscription, error) {
	client, err := faye.Init(ctx, faye.Options{
		ServiceURL: f.Endpoint.RootURL(),
		AppToken:   f.Endpoint.AppToken(),
		AppUserID:  f.Endpoint.AppUserID(),
		Dialer:     f.Dialer,
		Logger:     f.Logger,
	}, conversationID, f.Bus)
	if err != nil {
		return nil, err
	}
	return client, nil
}
