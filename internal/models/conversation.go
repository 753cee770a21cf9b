package models

import (
	"sync"

	"github.com/ageniuscoder/mmchat/widget/internal/vent"
)

// Conversation topics.
const (
	TopicAdd          = "add"
	TopicChangeUnread = "change:unread"
	TopicChangeID     = "change:id"
)

// ConversationDTO is the wire form of a conversation.
type ConversationDTO struct {
	ID        string    `json:"_id,omitempty"`
	AppUserID string    `json:"appUserId,omitempty"`
	AppUsers  []string  `json:"appUsers,omitempty"`
	AppMakers []string  `json:"appMakers,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
	Unread    int       `json:"unread"`
}

// Conversation is the single live thread of a widget session. The pointer is
// stable for the whole session: remote state is merged onto it with MergeInto
// so listeners bound early stay valid.
//
// The message list is append-only and keyed by message id; adding an id that
// is already present is a no-op.
type Conversation struct {
	mu        sync.RWMutex
	id        string
	appUserID string
	messages  []*Message
	seen      map[string]struct{}
	appMakers []*AppMaker
	makers    map[string]*AppMaker
	appUsers  map[string]struct{}
	unread    int

	events *vent.Bus
}

func newConversation() *Conversation {
	return &Conversation{
		seen:     make(map[string]struct{}),
		makers:   make(map[string]*AppMaker),
		appUsers: make(map[string]struct{}),
		events:   vent.New(),
	}
}

// NewConversation returns an unsaved conversation scoped to appUserID.
func NewConversation(appUserID string) *Conversation {
	c := newConversation()
	c.appUserID = appUserID
	if appUserID != "" {
		c.appUsers[appUserID] = struct{}{}
	}
	return c
}

func ConversationFromDTO(dto ConversationDTO) *Conversation {
	c := newConversation()
	c.merge(dto)
	return c
}

// MergeInto copies the recognised fields of incoming onto existing and returns
// existing. The identity of existing never changes; messages already present
// are kept and new ones are appended in incoming order.
func MergeInto(existing *Conversation, incoming ConversationDTO) *Conversation {
	prevID, added := existing.merge(incoming)

	if id := existing.ID(); id != prevID {
		existing.events.Publish(TopicChangeID, id)
	}
	for _, m := range added {
		existing.events.Publish(TopicAdd, m)
	}
	return existing
}

func (c *Conversation) merge(dto ConversationDTO) (string, []*Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prevID := c.id
	if dto.ID != "" {
		c.id = dto.ID
	}
	if dto.AppUserID != "" {
		c.appUserID = dto.AppUserID
		c.appUsers[dto.AppUserID] = struct{}{}
	}
	for _, id := range dto.AppUsers {
		c.appUsers[id] = struct{}{}
	}
	for _, id := range dto.AppMakers {
		c.addAppMakerLocked(AppMaker{ID: id})
	}

	var added []*Message
	for i := range dto.Messages {
		if m, ok := c.addLocked(dto.Messages[i]); ok {
			added = append(added, m)
		}
	}
	return prevID, added
}

func (c *Conversation) addLocked(m Message) (*Message, bool) {
	if m.ID != "" {
		if _, dup := c.seen[m.ID]; dup {
			return nil, false
		}
		c.seen[m.ID] = struct{}{}
	}
	msg := m
	c.messages = append(c.messages, &msg)
	return &msg, true
}

// AddMessage appends m unless a message with the same id is already present.
// It reports whether the collection changed.
func (c *Conversation) AddMessage(m Message) bool {
	c.mu.Lock()
	msg, ok := c.addLocked(m)
	c.mu.Unlock()

	if ok {
		c.events.Publish(TopicAdd, msg)
	}
	return ok
}

func (c *Conversation) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// IsNew reports whether the conversation has no server-assigned id yet.
func (c *Conversation) IsNew() bool {
	return c.ID() == ""
}

func (c *Conversation) AppUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.appUserID
}

// Messages returns a copy of the collection in arrival order.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = *m
	}
	return out
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

func (c *Conversation) HasMessage(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.seen[id]
	return ok
}

// CountAuthoredBy returns how many messages in the collection authorID wrote.
func (c *Conversation) CountAuthoredBy(authorID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, m := range c.messages {
		if m.AuthorID == authorID {
			n++
		}
	}
	return n
}

// LatestReceived returns the greatest receipt time in the collection, or
// false when the collection is empty.
func (c *Conversation) LatestReceived() (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.messages) == 0 {
		return 0, false
	}
	latest := c.messages[0].Received
	for _, m := range c.messages[1:] {
		if m.Received > latest {
			latest = m.Received
		}
	}
	return latest, true
}

// CountUnread counts messages not written by a tracked app user and received
// strictly after the whole second latestRead.
func (c *Conversation) CountUnread(latestRead int64) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, m := range c.messages {
		if _, own := c.appUsers[m.AuthorID]; own {
			continue
		}
		if m.ReceivedSecond() > latestRead {
			n++
		}
	}
	return n
}

func (c *Conversation) IsAppUser(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.appUsers[id]
	return ok
}

// AddAppUser tracks id as an end-user participant.
func (c *Conversation) AddAppUser(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appUsers[id] = struct{}{}
}

func (c *Conversation) AppMaker(id string) (AppMaker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if am, ok := c.makers[id]; ok {
		return *am, true
	}
	return AppMaker{}, false
}

func (c *Conversation) AppMakers() []AppMaker {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]AppMaker, len(c.appMakers))
	for i, am := range c.appMakers {
		out[i] = *am
	}
	return out
}

// AddAppMaker registers an app-side author. It reports false when the id is
// already known.
func (c *Conversation) AddAppMaker(am AppMaker) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addAppMakerLocked(am)
}

func (c *Conversation) addAppMakerLocked(am AppMaker) bool {
	if am.ID == "" {
		return false
	}
	if _, ok := c.makers[am.ID]; ok {
		return false
	}
	p := am
	c.appMakers = append(c.appMakers, &p)
	c.makers[am.ID] = &p
	return true
}

func (c *Conversation) Unread() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unread
}

// SetUnread stores n and notifies listeners only when the value changed.
func (c *Conversation) SetUnread(n int) bool {
	c.mu.Lock()
	if c.unread == n {
		c.mu.Unlock()
		return false
	}
	c.unread = n
	c.mu.Unlock()

	c.events.Publish(TopicChangeUnread, n)
	return true
}

// On attaches fn to one of the conversation topics.
func (c *Conversation) On(topic string, fn vent.Handler) vent.Handle {
	return c.events.Subscribe(topic, fn)
}

func (c *Conversation) DTO() ConversationDTO {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dto := ConversationDTO{
		ID:        c.id,
		AppUserID: c.appUserID,
		Unread:    c.unread,
		Messages:  make([]Message, len(c.messages)),
	}
	for id := range c.appUsers {
		dto.AppUsers = append(dto.AppUsers, id)
	}
	for _, am := range c.appMakers {
		dto.AppMakers = append(dto.AppMakers, am.ID)
	}
	for i, m := range c.messages {
		dto.Messages[i] = *m
	}
	return dto
}
