package models

import (
	"sync"

	"github.com/ageniuscoder/mmchat/widget/internal/vent"
)

const TopicConversationStarted = "change:conversationStarted"

// EditableProperties are the user attributes a host application may change.
var EditableProperties = []string{"givenName", "surname", "email", "signedUpAt", "properties"}

// AppUserDTO is the wire form of the end user.
type AppUserDTO struct {
	ID                  string         `json:"_id"`
	UserID              string         `json:"userId,omitempty"`
	GivenName           string         `json:"givenName,omitempty"`
	Surname             string         `json:"surname,omitempty"`
	Email               string         `json:"email,omitempty"`
	SignedUpAt          string         `json:"signedUpAt,omitempty"`
	Properties          map[string]any `json:"properties,omitempty"`
	ConversationStarted bool           `json:"conversationStarted"`
}

// PickEditable keeps only the editable keys of attrs.
func PickEditable(attrs map[string]any) map[string]any {
	out := make(map[string]any)
	for _, k := range EditableProperties {
		if v, ok := attrs[k]; ok {
			out[k] = v
		}
	}
	return out
}

// AppUser is the local end user. Attribute changes made with Set stay pending
// until a server response is applied.
type AppUser struct {
	mu      sync.RWMutex
	data    AppUserDTO
	pending map[string]any
	events  *vent.Bus
}

func NewAppUser() *AppUser {
	return &AppUser{
		pending: make(map[string]any),
		events:  vent.New(),
	}
}

func (u *AppUser) ID() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.data.ID
}

func (u *AppUser) IsNew() bool {
	return u.ID() == ""
}

func (u *AppUser) UserID() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.data.UserID
}

func (u *AppUser) Email() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.data.Email
}

func (u *AppUser) ConversationStarted() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.data.ConversationStarted
}

func (u *AppUser) Snapshot() AppUserDTO {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.data
}

// Set applies the editable subset of attrs locally and marks it pending.
func (u *AppUser) Set(attrs map[string]any) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for k, v := range PickEditable(attrs) {
		u.pending[k] = v
		switch k {
		case "givenName":
			u.data.GivenName, _ = v.(string)
		case "surname":
			u.data.Surname, _ = v.(string)
		case "email":
			u.data.Email, _ = v.(string)
		case "signedUpAt":
			u.data.SignedUpAt, _ = v.(string)
		case "properties":
			u.data.Properties, _ = v.(map[string]any)
		}
	}
}

// Pending returns a copy of the attributes not yet confirmed by the server.
func (u *AppUser) Pending() map[string]any {
	u.mu.RLock()
	defer u.mu.RUnlock()

	out := make(map[string]any, len(u.pending))
	for k, v := range u.pending {
		out[k] = v
	}
	return out
}

// Apply replaces the user with the server representation and clears pending
// changes. Listeners of TopicConversationStarted fire when the flag flips.
func (u *AppUser) Apply(dto AppUserDTO) {
	u.mu.Lock()
	prev := u.data.ConversationStarted
	u.data = dto
	u.pending = make(map[string]any)
	u.mu.Unlock()

	if dto.ConversationStarted != prev {
		u.events.Publish(TopicConversationStarted, dto.ConversationStarted)
	}
}

// Clear resets the user to an anonymous, unsaved state without notifying.
func (u *AppUser) Clear() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.data = AppUserDTO{}
	u.pending = make(map[string]any)
}

func (u *AppUser) On(topic string, fn vent.Handler) vent.Handle {
	return u.events.Subscribe(topic, fn)
}

func (u *AppUser) Once(topic string, fn vent.Handler) vent.Handle {
	return u.events.Once(topic, fn)
}
