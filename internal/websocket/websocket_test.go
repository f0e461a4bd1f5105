package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/auth"
	"github.com/sportsocial/backend/internal/messaging"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	users map[string]*models.User
}

func (f *fakeAuth) ValidateToken(_ context.Context, token string) (*models.User, error) {
	if u, ok := f.users[token]; ok {
		return u, nil
	}
	return nil, auth.ErrInvalidToken
}

// fakeSender mimics messaging.Service: it publishes through the hub.
type fakeSender struct {
	hub     *Hub
	members map[string][]string
	fail    error
}

func (f *fakeSender) SendDirect(_ context.Context, senderID, recipientID, content string) (*models.Message, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	if senderID == recipientID {
		return nil, messaging.ErrSelfMessage
	}
	msg := &models.Message{ID: "m-1", SenderID: senderID, Content: content, MessageType: models.MessageTypeDirect}
	f.hub.PublishToUser(recipientID, realtime.EventNewDirectMessage, messaging.MessageEvent{Message: msg})
	return msg, nil
}

func (f *fakeSender) SendGroup(_ context.Context, senderID, groupChatID, content string) (*models.Message, error) {
	ok, _ := f.CanJoinGroup(context.Background(), groupChatID, senderID)
	if !ok {
		return nil, messaging.ErrNotMember
	}
	msg := &models.Message{ID: "m-2", SenderID: senderID, Content: content, MessageType: models.MessageTypeGroup}
	f.hub.PublishToGroup(groupChatID, realtime.EventNewGroupMessage, messaging.MessageEvent{Message: msg})
	return msg, nil
}

func (f *fakeSender) CanJoinGroup(_ context.Context, groupChatID, userID string) (bool, error) {
	for _, id := range f.members[groupChatID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return hub
}

// registered returns a pump-less client already known to the hub.
func registered(t *testing.T, hub *Hub, userID string) *Client {
	t.Helper()
	client := NewClient(hub, nil, userID, userID)
	require.True(t, hub.Register(client))
	return client
}

func connections(hub *Hub, userID string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients[userID])
}

func next(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case data := <-client.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(5, 10)

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow(), "Request %d should be allowed", i+1)
	}
	assert.False(t, rl.Allow(), "Request 11 should be denied")

	time.Sleep(300 * time.Millisecond)
	assert.True(t, rl.Allow(), "Request after wait should be allowed")
}

func TestFlexibleTimeAcceptsMillisAndRFC3339(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"type":"ping","timestamp":1700000000000}`), &msg))
	assert.Equal(t, int64(1700000000000), msg.Timestamp.UnixMilli())

	require.NoError(t, json.Unmarshal([]byte(`{"type":"ping","timestamp":"2024-05-01T10:00:00Z"}`), &msg))
	assert.Equal(t, 2024, msg.Timestamp.Year())

	assert.Error(t, json.Unmarshal([]byte(`{"type":"ping","timestamp":true}`), &msg))
}

func TestNewReplyEchoesID(t *testing.T) {
	original := &Message{Type: MessageTypePing, ID: "original-id"}
	reply := NewReply(original, MessageTypePong, nil)

	assert.Equal(t, MessageTypePong, reply.Type)
	assert.Equal(t, "original-id", reply.ReplyTo)
	assert.False(t, reply.Timestamp.IsZero())
}

func TestParsePayload(t *testing.T) {
	msg := Message{Payload: map[string]interface{}{"recipientId": "u-2", "content": "hi"}}
	var req SendDirectMessagePayload
	require.NoError(t, msg.ParsePayload(&req))
	assert.Equal(t, "u-2", req.RecipientID)
	assert.Equal(t, "hi", req.Content)
}

func TestHubPublishesToUserRoom(t *testing.T) {
	hub := startHub(t)
	a1 := registered(t, hub, "alice")
	a2 := NewClient(hub, nil, "alice", "alice")
	require.True(t, hub.Register(a2))
	bob := registered(t, hub, "bob")
	require.Equal(t, 2, connections(hub, "alice"))

	hub.PublishToUser("alice", realtime.EventNotification, map[string]string{"title": "hello"})

	assert.Equal(t, MessageTypeNotification, next(t, a1).Type)
	assert.Equal(t, MessageTypeNotification, next(t, a2).Type)
	assert.Empty(t, bob.send)
}

func TestHubGroupRooms(t *testing.T) {
	hub := startHub(t)
	alice := registered(t, hub, "alice")
	bob := registered(t, hub, "bob")

	require.True(t, hub.JoinGroup(alice, "chat-1"))
	assert.True(t, hub.InGroup(alice, "chat-1"))
	assert.False(t, hub.InGroup(bob, "chat-1"))

	hub.PublishToGroup("chat-1", realtime.EventNewGroupMessage, map[string]string{"content": "hi"})
	assert.Equal(t, MessageTypeNewGroupMessage, next(t, alice).Type)
	assert.Empty(t, bob.send)

	hub.LeaveGroup(alice, "chat-1")
	assert.Equal(t, 0, hub.GroupSize("chat-1"))
}

func TestHubEvictFromGroupStopsDelivery(t *testing.T) {
	hub := startHub(t)
	alice := registered(t, hub, "alice")
	bob := registered(t, hub, "bob")
	bobTablet := registered(t, hub, "bob")
	require.True(t, hub.JoinGroup(alice, "chat-1"))
	require.True(t, hub.JoinGroup(bob, "chat-1"))
	require.True(t, hub.JoinGroup(bobTablet, "chat-1"))
	require.True(t, hub.JoinGroup(bob, "chat-2"))

	hub.EvictFromGroup("chat-1", "bob")
	assert.False(t, hub.InGroup(bob, "chat-1"))
	assert.False(t, hub.InGroup(bobTablet, "chat-1"))
	assert.True(t, hub.InGroup(bob, "chat-2"))
	assert.Equal(t, 1, hub.GroupSize("chat-1"))

	hub.PublishToGroup("chat-1", realtime.EventNewGroupMessage, map[string]string{"content": "bob left"})
	assert.Equal(t, MessageTypeNewGroupMessage, next(t, alice).Type)
	assert.Empty(t, bob.send)
	assert.Empty(t, bobTablet.send)
}

func TestHubUnregisterLeavesRooms(t *testing.T) {
	hub := startHub(t)
	alice := registered(t, hub, "alice")
	require.True(t, hub.JoinGroup(alice, "chat-1"))

	hub.Unregister(alice)
	require.Eventually(t, func() bool { return connections(hub, "alice") == 0 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, hub.GroupSize("chat-1"))
	assert.True(t, alice.IsClosed())
	assert.False(t, hub.JoinGroup(alice, "chat-1"))
	assert.ErrorIs(t, alice.Send(NewMessage(MessageTypeSystem, nil)), errClientClosed)
}

func TestHubRefusesRegistrationAfterShutdown(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	require.NoError(t, hub.Shutdown(context.Background()))

	assert.False(t, hub.Register(NewClient(hub, nil, "alice", "alice")))
	assert.Equal(t, 0, connections(hub, "alice"))
}

func TestHubPresenceOnFirstAndLastSocket(t *testing.T) {
	hub := NewHub()
	var mu sync.Mutex
	var changes []bool
	hub.OnPresence(func(_ context.Context, userID string, online bool) error {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, online)
		return nil
	})
	go hub.Run()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	first := registered(t, hub, "alice")
	second := NewClient(hub, nil, "alice", "alice")
	require.True(t, hub.Register(second))
	require.Equal(t, 2, connections(hub, "alice"))

	hub.Unregister(first)
	hub.Unregister(second)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []bool{true, false}, changes)
}

func TestHandlerJoinUsesTokenIdentity(t *testing.T) {
	hub := startHub(t)
	h := NewHandler(hub, &fakeAuth{}, &fakeSender{hub: hub})
	alice := registered(t, hub, "alice")

	require.NoError(t, h.handleJoin(alice, &Message{Type: MessageTypeJoin, ID: "j1", Payload: map[string]interface{}{"userId": "mallory"}}))

	reply := next(t, alice)
	assert.Equal(t, MessageTypeSystem, reply.Type)
	assert.Equal(t, "j1", reply.ReplyTo)
	var payload SystemPayload
	require.NoError(t, reply.ParsePayload(&payload))
	assert.Equal(t, "alice", payload.Data["user_id"])
}

func TestHandlerDirectMessageDeliversToBothSides(t *testing.T) {
	hub := startHub(t)
	h := NewHandler(hub, &fakeAuth{}, &fakeSender{hub: hub})
	alice := registered(t, hub, "alice")
	bob := registered(t, hub, "bob")

	err := h.handleSendDirectMessage(alice, &Message{
		Type:    MessageTypeSendDirectMessage,
		ID:      "c-1",
		Payload: SendDirectMessagePayload{RecipientID: "bob", Content: "game tonight?"},
	})
	require.NoError(t, err)

	delivered := next(t, alice)
	assert.Equal(t, MessageTypeMessageDelivered, delivered.Type)
	assert.Equal(t, "c-1", delivered.ReplyTo)

	incoming := next(t, bob)
	assert.Equal(t, MessageTypeNewDirectMessage, incoming.Type)
}

func TestHandlerSendFailureIsMessageError(t *testing.T) {
	hub := startHub(t)
	sender := &fakeSender{hub: hub, fail: errors.New("db down")}
	h := NewHandler(hub, &fakeAuth{}, sender)
	alice := registered(t, hub, "alice")

	require.NoError(t, h.handleSendDirectMessage(alice, &Message{
		ID:      "c-2",
		Payload: SendDirectMessagePayload{RecipientID: "bob", Content: "hi"},
	}))
	reply := next(t, alice)
	assert.Equal(t, MessageTypeMessageError, reply.Type)
	assert.Equal(t, "c-2", reply.ReplyTo)

	var payload ErrorPayload
	require.NoError(t, reply.ParsePayload(&payload))
	assert.Equal(t, "internal_error", payload.Code)
}

func TestHandlerGroupChatRequiresMembership(t *testing.T) {
	hub := startHub(t)
	sender := &fakeSender{hub: hub, members: map[string][]string{"chat-1": {"alice"}}}
	h := NewHandler(hub, &fakeAuth{}, sender)
	alice := registered(t, hub, "alice")
	bob := registered(t, hub, "bob")

	require.NoError(t, h.handleJoinGroupChat(bob, &Message{ID: "g1", Payload: GroupChatPayload{GroupChat: "chat-1"}}))
	denied := next(t, bob)
	assert.Equal(t, MessageTypeError, denied.Type)
	assert.False(t, hub.InGroup(bob, "chat-1"))

	require.NoError(t, h.handleJoinGroupChat(alice, &Message{ID: "g2", Payload: GroupChatPayload{GroupChat: "chat-1"}}))
	assert.Equal(t, MessageTypeSystem, next(t, alice).Type)
	assert.True(t, hub.InGroup(alice, "chat-1"))

	require.NoError(t, h.handleSendGroupMessage(bob, &Message{ID: "g3", Payload: SendGroupMessagePayload{GroupChat: "chat-1", Content: "let me in"}}))
	failed := next(t, bob)
	assert.Equal(t, MessageTypeMessageError, failed.Type)
	var payload ErrorPayload
	require.NoError(t, failed.ParsePayload(&payload))
	assert.Equal(t, "forbidden", payload.Code)
	assert.Empty(t, alice.send)
}

func TestHandlerTypingRelay(t *testing.T) {
	hub := startHub(t)
	h := NewHandler(hub, &fakeAuth{}, &fakeSender{hub: hub})
	alice := registered(t, hub, "alice")
	bob := registered(t, hub, "bob")

	require.NoError(t, h.handleTyping(alice, &Message{Payload: TypingPayload{RecipientID: "bob", IsTyping: true}}))
	typing := next(t, bob)
	assert.Equal(t, MessageTypeUserTyping, typing.Type)
	var payload TypingPayload
	require.NoError(t, typing.ParsePayload(&payload))
	assert.Equal(t, "alice", payload.UserID)
	assert.True(t, payload.IsTyping)

	require.NoError(t, h.handleTyping(alice, &Message{Payload: TypingPayload{GroupChat: "chat-9"}}))
	assert.Equal(t, MessageTypeError, next(t, alice).Type)
}

func TestUpgradeWriterDefersHeaderFlush(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	w := newUpgradeWriter(c.Writer)

	_, _, err := w.Hijack()
	assert.Error(t, err)

	// Recording the 101 must leave gin's writer unflushed, or gin refuses
	// the hijack.
	w.WriteHeader(http.StatusSwitchingProtocols)
	assert.False(t, c.Writer.Written())
}

func TestWebSocketEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := startHub(t)
	authn := &fakeAuth{users: map[string]*models.User{
		"token-alice": {ID: "alice", Username: "alice"},
		"token-bob":   {ID: "bob", Username: "bob"},
	}}
	h := NewHandler(hub, authn, &fakeSender{hub: hub})

	router := gin.New()
	router.GET("/socket", h.HandleWebSocket)
	server := httptest.NewServer(router)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/socket"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)

	_, resp, err = websocket.Dial(ctx, wsURL+"?token=forged", nil)
	require.Error(t, err)
	assert.Equal(t, 403, resp.StatusCode)

	alice, _, err := websocket.Dial(ctx, wsURL+"?token=token-alice", nil)
	require.NoError(t, err)
	defer alice.Close(websocket.StatusNormalClosure, "")
	bob, _, err := websocket.Dial(ctx, wsURL+"?token=token-bob", nil)
	require.NoError(t, err)
	defer bob.Close(websocket.StatusNormalClosure, "")

	var welcome Message
	require.NoError(t, wsjson.Read(ctx, alice, &welcome))
	assert.Equal(t, MessageTypeSystem, welcome.Type)
	require.NoError(t, wsjson.Read(ctx, bob, &welcome))
	// Registration completes before the welcome frame is sent.
	assert.Equal(t, 1, connections(hub, "alice"))
	assert.Equal(t, 1, connections(hub, "bob"))

	require.NoError(t, wsjson.Write(ctx, alice, map[string]interface{}{
		"type":    MessageTypeSendDirectMessage,
		"id":      "client-1",
		"payload": map[string]string{"recipientId": "bob", "content": "pickup at 6?"},
	}))

	var delivered Message
	require.NoError(t, wsjson.Read(ctx, alice, &delivered))
	assert.Equal(t, MessageTypeMessageDelivered, delivered.Type)
	assert.Equal(t, "client-1", delivered.ReplyTo)

	var incoming Message
	require.NoError(t, wsjson.Read(ctx, bob, &incoming))
	assert.Equal(t, MessageTypeNewDirectMessage, incoming.Type)

	require.NoError(t, wsjson.Write(ctx, bob, map[string]interface{}{"type": "ping", "id": "p1", "payload": map[string]int64{"client_time": 1}}))
	var pong Message
	require.NoError(t, wsjson.Read(ctx, bob, &pong))
	assert.Equal(t, MessageTypePong, pong.Type)
	assert.Equal(t, "p1", pong.ReplyTo)
}
