package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppUser_SetTracksEditableOnly(t *testing.T) {
	u := NewAppUser()
	u.Set(map[string]any{"email": "a@example.com", "_id": "hack", "givenName": "Ada"})

	assert.Equal(t, "a@example.com", u.Email())
	assert.Equal(t, "", u.ID())
	assert.Equal(t, map[string]any{"email": "a@example.com", "givenName": "Ada"}, u.Pending())
}

func TestAppUser_ApplyFiresConversationStarted(t *testing.T) {
	u := NewAppUser()
	u.Set(map[string]any{"email": "a@example.com"})

	var fired []bool
	u.On(TopicConversationStarted, func(p any) { fired = append(fired, p.(bool)) })

	u.Apply(AppUserDTO{ID: "u1", Email: "a@example.com"})
	assert.Empty(t, fired)
	assert.Empty(t, u.Pending())

	u.Apply(AppUserDTO{ID: "u1", ConversationStarted: true})
	u.Apply(AppUserDTO{ID: "u1", ConversationStarted: true})
	assert.Equal(t, []bool{true}, fired)
}
