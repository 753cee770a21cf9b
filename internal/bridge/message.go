package bridge

import "github.com/ageniuscoder/mmchat/widget/internal/models"

// EventEmailCapture asks the host to show its email capture prompt.
const EventEmailCapture = "prompt:email"

// WireEvent is pushed to every connected host client.
type WireEvent struct {
	Type    string          `json:"type"` // "message:received", "message:sent", "unread" or "prompt:email"
	Message *models.Message `json:"message,omitempty"`
	Unread  *int            `json:"unread,omitempty"`
}

// command is what a host client may send over the stream.
type command struct {
	Type string `json:"type"` // "read", "focus", "open", "close"
}
