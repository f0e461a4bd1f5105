// Package realtime names the events pushed to connected clients and the
// interface services use to push them.
package realtime

// Server to client events.
const (
	EventNewDirectMessage = "newDirectMessage"
	EventNewGroupMessage  = "newGroupMessage"
	EventMessageDelivered = "messageDelivered"
	EventMessageError     = "messageError"
	EventNotification     = "notification"
	EventUserTyping       = "userTyping"
	EventSystem           = "system"
	EventPong             = "pong"
)

// Publisher delivers an event to every socket in a room. Delivery is best
// effort: a slow or missing client just misses the event.
type Publisher interface {
	PublishToUser(userID, event string, payload any)
	PublishToGroup(groupChatID, event string, payload any)
	// EvictFromGroup drops every socket of userID from the group chat room.
	EvictFromGroup(groupChatID, userID string)
}

// NopPublisher drops every event. Used when no realtime server runs, such
// as in the admin CLI and in service tests.
type NopPublisher struct{}

func (NopPublisher) PublishToUser(string, string, any)  {}
func (NopPublisher) PublishToGroup(string, string, any) {}
func (NopPublisher) EvictFromGroup(string, string)      {}
