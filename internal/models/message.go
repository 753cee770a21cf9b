package models

import "math"

const (
	RoleAppUser  = "appUser"
	RoleAppMaker = "appMaker"
)

// Action is an optional structured action (link, postback...) attached to a message.
type Action struct {
	ID   string `json:"_id,omitempty"`
	Type string `json:"type"`
	Text string `json:"text"`
	URI  string `json:"uri,omitempty"`
}

// Message is a single conversation entry. Received is the server receipt time
// in fractional epoch seconds.
type Message struct {
	ID        string   `json:"_id"`
	AuthorID  string   `json:"authorId"`
	Role      string   `json:"role"`
	Name      string   `json:"name,omitempty"`
	AvatarURL string   `json:"avatarUrl,omitempty"`
	Text      string   `json:"text"`
	Actions   []Action `json:"actions,omitempty"`
	Received  float64  `json:"received"`
}

// ReceivedSecond is the integer floor of Received. Unread accounting works at
// whole-second granularity only.
func (m *Message) ReceivedSecond() int64 {
	return int64(math.Floor(m.Received))
}

func (m *Message) FromAppUser() bool {
	return m.Role == RoleAppUser
}

// MessageDraft is the payload submitted to create a message.
type MessageDraft struct {
	AuthorID string `json:"authorId"`
	Role     string `json:"role"`
	Text     string `json:"text"`
}

// AppMaker is an app-side participant (agent or bot).
type AppMaker struct {
	ID        string `json:"_id"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}
