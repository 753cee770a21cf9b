package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func maker(id, authorID string, received float64) Message {
	return Message{ID: id, AuthorID: authorID, Role: RoleAppMaker, Text: id, Received: received}
}

func TestConversation_AddMessageIsIdempotent(t *testing.T) {
	c := NewConversation("u1")

	var added []string
	c.On(TopicAdd, func(p any) { added = append(added, p.(*Message).ID) })

	ids := []string{"m1", "m2", "m1", "m3", "m2", "m3"}
	for _, id := range ids {
		c.AddMessage(maker(id, "agent", 1))
	}

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"m1", "m2", "m3"}, added)
	assert.False(t, c.AddMessage(maker("m1", "agent", 1)))
}

func TestConversation_ArrivalOrderKept(t *testing.T) {
	c := NewConversation("u1")
	c.AddMessage(maker("late", "agent", 20))
	c.AddMessage(maker("early", "agent", 5))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "late", msgs[0].ID)
	assert.Equal(t, "early", msgs[1].ID)
}

func TestMergeInto_PreservesIdentity(t *testing.T) {
	local := NewConversation("u1")
	require.True(t, local.IsNew())

	var changedTo string
	var adds int
	local.On(TopicChangeID, func(p any) { changedTo = p.(string) })
	local.On(TopicAdd, func(any) { adds++ })

	remote := ConversationDTO{
		ID:        "c1",
		AppUsers:  []string{"u1"},
		AppMakers: []string{"agent"},
		Messages:  []Message{maker("m1", "agent", 10.2), maker("m2", "agent", 15.9)},
	}

	got := MergeInto(local, remote)
	assert.Same(t, local, got)
	assert.Equal(t, "c1", local.ID())
	assert.False(t, local.IsNew())
	assert.Equal(t, "c1", changedTo)
	assert.Equal(t, 2, adds)
	assert.Equal(t, 2, local.Len())

	_, ok := local.AppMaker("agent")
	assert.True(t, ok)

	// merging the same remote again adds nothing
	MergeInto(local, remote)
	assert.Equal(t, 2, local.Len())
	assert.Equal(t, 2, adds)
}

func TestConversation_CountUnread(t *testing.T) {
	c := ConversationFromDTO(ConversationDTO{ID: "c1", AppUsers: []string{"u1"}})
	c.AddMessage(maker("a", "agent", 10.2))
	c.AddMessage(maker("b", "agent", 15.9))
	c.AddMessage(Message{ID: "own", AuthorID: "u1", Role: RoleAppUser, Received: 99})

	assert.Equal(t, 2, c.CountUnread(10-1))
	// 10.2 floors to 10 which is not after 10
	assert.Equal(t, 1, c.CountUnread(10))
	assert.Equal(t, 0, c.CountUnread(15))
}

func TestConversation_SetUnreadNotifiesOnChange(t *testing.T) {
	c := NewConversation("u1")

	var notes []int
	c.On(TopicChangeUnread, func(p any) { notes = append(notes, p.(int)) })

	assert.False(t, c.SetUnread(0))
	assert.True(t, c.SetUnread(2))
	assert.False(t, c.SetUnread(2))
	assert.True(t, c.SetUnread(0))
	assert.Equal(t, []int{2, 0}, notes)
}

func TestConversation_LatestReceived(t *testing.T) {
	c := NewConversation("u1")
	_, ok := c.LatestReceived()
	assert.False(t, ok)

	c.AddMessage(maker("a", "agent", 15.9))
	c.AddMessage(maker("b", "agent", 10.2))
	latest, ok := c.LatestReceived()
	require.True(t, ok)
	assert.Equal(t, 15.9, latest)
}

func TestConversation_NewTracksOwner(t *testing.T) {
	c := NewConversation("u1")
	assert.True(t, c.IsAppUser("u1"))
	assert.False(t, c.AddAppMaker(AppMaker{}))
	assert.True(t, c.AddAppMaker(AppMaker{ID: "agent"}))
	assert.False(t, c.AddAppMaker(AppMaker{ID: "agent"}))
	assert.Len(t, c.AppMakers(), 1)
}
