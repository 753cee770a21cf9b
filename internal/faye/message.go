package faye

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	ChannelHandshake   = "/meta/handshake"
	ChannelConnect     = "/meta/connect"
	ChannelSubscribe   = "/meta/subscribe"
	ChannelUnsubscribe = "/meta/unsubscribe"
	ChannelDisconnect  = "/meta/disconnect"

	bayeuxVersion = "1.0"
)

// Advice is the server's reconnect advice.
type Advice struct {
	Reconnect string `json:"reconnect,omitempty"`
	Interval  int    `json:"interval,omitempty"`
	Timeout   int    `json:"timeout,omitempty"`
}

// Message is a single Bayeux frame.
type Message struct {
	Channel                  string          `json:"channel"`
	ID                       string          `json:"id,omitempty"`
	ClientID                 string          `json:"clientId,omitempty"`
	Version                  string          `json:"version,omitempty"`
	SupportedConnectionTypes []string        `json:"supportedConnectionTypes,omitempty"`
	ConnectionType           string          `json:"connectionType,omitempty"`
	Subscription             string          `json:"subscription,omitempty"`
	Successful               bool            `json:"successful,omitempty"`
	Error                    string          `json:"error,omitempty"`
	Advice                   *Advice         `json:"advice,omitempty"`
	Data                     json.RawMessage `json:"data,omitempty"`
	Ext                      map[string]any  `json:"ext,omitempty"`

	// Set on subscribe frames only, see subscribeAuth.
	AppToken  string `json:"appToken,omitempty"`
	AppUserID string `json:"appUserId,omitempty"`
}

func (m *Message) IsMeta() bool {
	return strings.HasPrefix(m.Channel, "/meta/")
}

// decodeFrame accepts either a JSON array of messages or a single message.
func decodeFrame(b []byte) ([]Message, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var ms []Message
		err := json.Unmarshal(b, &ms)
		return ms, err
	}
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return []Message{m}, nil
}

// Extension may rewrite outgoing frames before they are written.
type Extension interface {
	Outgoing(m *Message)
}

// subscribeAuth attaches transport authentication to subscribe frames only.
type subscribeAuth struct {
	appToken  string
	appUserID string
}

func (a subscribeAuth) Outgoing(m *Message) {
	if m.Channel == ChannelSubscribe {
		m.AppToken = a.appToken
		m.AppUserID = a.appUserID
	}
}
