package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderedPair(t *testing.T) {
	a, b := OrderedPair("u2", "u1")
	assert.Equal(t, "u1", a)
	assert.Equal(t, "u2", b)

	a, b = OrderedPair("u1", "u2")
	assert.Equal(t, "u1", a)
	assert.Equal(t, "u2", b)
}

func TestDirectConversationOther(t *testing.T) {
	conv := DirectConversation{UserAID: "a", UserBID: "b"}
	assert.Equal(t, "b", conv.Other("a"))
	assert.Equal(t, "a", conv.Other("b"))
	assert.True(t, conv.Participant("a"))
	assert.False(t, conv.Participant("c"))
}

func TestPreferencesAllows(t *testing.T) {
	prefs := DefaultPreferences("u1")
	assert.True(t, prefs.Allows(NotificationTypeMessage))

	prefs.NotificationMessages = false
	assert.False(t, prefs.Allows(NotificationTypeMessage))
	assert.False(t, prefs.Allows(NotificationTypeGroupMessage))
	assert.True(t, prefs.Allows(NotificationTypeFollow))
	assert.True(t, prefs.Allows(NotificationTypeSystem))
}

func TestPreferencesWantsSport(t *testing.T) {
	prefs := DefaultPreferences("u1")
	assert.True(t, prefs.WantsSport("tennis"))

	prefs.PreferredSports = []string{"Football", "Valorant"}
	assert.True(t, prefs.WantsSport("football"))
	assert.False(t, prefs.WantsSport("tennis"))
}

func TestValidRating(t *testing.T) {
	assert.False(t, ValidRating(0))
	assert.True(t, ValidRating(1))
	assert.True(t, ValidRating(5))
	assert.False(t, ValidRating(6))
}
