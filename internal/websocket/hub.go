// Package websocket serves the realtime socket. Each connection joins its
// user's room on connect and group chat rooms on request; services push
// events into those rooms through Hub.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/metrics"
	"github.com/sportsocial/backend/internal/realtime"
	"go.uber.org/zap"
)

var _ realtime.Publisher = (*Hub)(nil)

// Hub owns every connected client and the rooms they are in.
type Hub struct {
	// User rooms: every socket of a user
	clients map[string]map[*Client]struct{}

	// Group chat rooms: sockets that joined a chat
	groups map[string]map[*Client]struct{}

	allClients map[*Client]struct{}

	unregister chan *Client
	unicast    chan *roomMessage
	groupcast  chan *roomMessage

	mu sync.RWMutex

	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	handlers map[string]MessageHandler

	rateLimitConfig RateLimitConfig

	// Presence changes are applied in order by a single worker
	presence   chan presenceChange
	onPresence PresenceFunc
}

// Metrics tracks WebSocket statistics
type Metrics struct {
	TotalConnections   atomic.Int64
	ActiveConnections  atomic.Int64
	MessagesReceived   atomic.Int64
	MessagesSent       atomic.Int64
	Errors             atomic.Int64
	ConnectionsDropped atomic.Int64
}

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	// MaxMessagesPerSecond per client
	MaxMessagesPerSecond int
	// BurstSize allows short bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxMessagesPerSecond: 10,
		BurstSize:            20,
	}
}

type roomMessage struct {
	room    string
	message *Message
}

// PresenceFunc is called when a user's first socket opens (online=true) and
// when their last socket closes (online=false).
type PresenceFunc func(ctx context.Context, userID string, online bool) error

type presenceChange struct {
	userID string
	online bool
}

// MessageHandler processes incoming messages of a specific type
type MessageHandler func(client *Client, message *Message) error

// NewHub creates a new Hub instance
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:         make(map[string]map[*Client]struct{}),
		groups:          make(map[string]map[*Client]struct{}),
		allClients:      make(map[*Client]struct{}),
		unregister:      make(chan *Client, 256),
		unicast:         make(chan *roomMessage, 1024),
		groupcast:       make(chan *roomMessage, 1024),
		metrics:         &Metrics{},
		ctx:             ctx,
		cancel:          cancel,
		handlers:        make(map[string]MessageHandler),
		rateLimitConfig: DefaultRateLimitConfig(),
		presence:        make(chan presenceChange, 256),
	}
}

// OnPresence sets the presence callback. Call before Run.
func (h *Hub) OnPresence(fn PresenceFunc) {
	h.onPresence = fn
}

// RegisterHandler registers a handler for a specific message type
func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
}

// GetHandler returns the handler for a message type
func (h *Hub) GetHandler(msgType string) (MessageHandler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handler, ok := h.handlers[msgType]
	return handler, ok
}

// Run is the hub's event loop. It returns after Shutdown.
func (h *Hub) Run() {
	h.wg.Add(2)
	defer h.wg.Done()
	go h.presenceWorker()

	logger.Log.Info("Realtime hub started")

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case client := <-h.unregister:
			h.unregisterClient(client)

		case m := <-h.unicast:
			h.sendToUser(m.room, m.message)

		case m := <-h.groupcast:
			h.sendToGroup(m.room, m.message)
		}
	}
}

func (h *Hub) registerClient(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Checked under mu so a concurrent shutdown either sees this client or
	// has already refused it.
	if h.ctx.Err() != nil {
		return false
	}

	first := len(h.clients[client.UserID]) == 0
	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]struct{})
	}
	h.clients[client.UserID][client] = struct{}{}
	h.allClients[client] = struct{}{}

	h.metrics.TotalConnections.Add(1)
	h.metrics.ActiveConnections.Add(1)
	metrics.Get().RealtimeConnections.Inc()

	if first {
		h.queuePresence(client.UserID, true)
	}

	logger.Log.Info("Socket connected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", h.metrics.ActiveConnections.Load()))
	return true
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.allClients[client]; !ok {
		return
	}
	delete(h.allClients, client)

	for chatID := range client.groups {
		h.removeFromGroup(client, chatID)
	}

	last := false
	if clients, ok := h.clients[client.UserID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.UserID)
			last = true
		}
	}

	client.closeSend()

	h.metrics.ActiveConnections.Add(-1)
	metrics.Get().RealtimeConnections.Dec()

	if last {
		h.queuePresence(client.UserID, false)
	}

	logger.Log.Info("Socket disconnected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", h.metrics.ActiveConnections.Load()))
}

// queuePresence must not block the event loop; a full queue drops the change.
func (h *Hub) queuePresence(userID string, online bool) {
	if h.onPresence == nil {
		return
	}
	select {
	case h.presence <- presenceChange{userID: userID, online: online}:
	default:
		logger.Log.Warn("Presence queue full, dropping update",
			logger.WithUserID(userID),
			zap.Bool("online", online))
	}
}

func (h *Hub) presenceWorker() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case change := <-h.presence:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := h.onPresence(ctx, change.userID, change.online); err != nil {
				logger.Log.Warn("Failed to update presence",
					logger.WithUserID(change.userID),
					zap.Bool("online", change.online),
					zap.Error(err))
			}
			cancel()
		}
	}
}

// deliver queues data on every client in room. Clients whose buffer is full
// are dropped. Caller holds h.mu for reading.
func (h *Hub) deliver(room map[*Client]struct{}, data []byte, eventType string) {
	for client := range room {
		err := client.enqueue(data)
		if err == nil {
			metrics.RecordRealtimeEvent("out", eventType)
			continue
		}
		if errors.Is(err, errSendBuffer) {
			h.metrics.ConnectionsDropped.Add(1)
			go h.Unregister(client)
		}
	}
}

func (h *Hub) sendToUser(userID string, message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Log.Error("Failed to marshal user event", logger.WithUserID(userID), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(h.clients[userID], data, message.Type)
}

func (h *Hub) sendToGroup(chatID string, message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Log.Error("Failed to marshal group event", logger.WithGroupChatID(chatID), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(h.groups[chatID], data, message.Type)
}

// SendToUser sends a message to every socket of a user.
func (h *Hub) SendToUser(userID string, message *Message) {
	select {
	case h.unicast <- &roomMessage{room: userID, message: message}:
	case <-h.ctx.Done():
	}
}

// SendToGroup sends a message to every socket in a group chat room.
func (h *Hub) SendToGroup(chatID string, message *Message) {
	select {
	case h.groupcast <- &roomMessage{room: chatID, message: message}:
	case <-h.ctx.Done():
	}
}

// PublishToUser implements realtime.Publisher.
func (h *Hub) PublishToUser(userID, event string, payload any) {
	h.SendToUser(userID, NewMessage(event, payload))
}

// PublishToGroup implements realtime.Publisher.
func (h *Hub) PublishToGroup(chatID, event string, payload any) {
	h.SendToGroup(chatID, NewMessage(event, payload))
}

// JoinGroup adds client to a group chat room. It reports false when the
// client is no longer connected.
func (h *Hub) JoinGroup(client *Client, chatID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.allClients[client]; !ok {
		return false
	}
	if h.groups[chatID] == nil {
		h.groups[chatID] = make(map[*Client]struct{})
	}
	h.groups[chatID][client] = struct{}{}
	client.groups[chatID] = struct{}{}
	return true
}

// EvictFromGroup implements realtime.Publisher. It takes every socket of
// userID out of the room, so a removed member stops receiving the chat.
func (h *Hub) EvictFromGroup(chatID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients[userID] {
		h.removeFromGroup(client, chatID)
	}
}

// LeaveGroup removes client from a group chat room.
func (h *Hub) LeaveGroup(client *Client, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromGroup(client, chatID)
}

func (h *Hub) removeFromGroup(client *Client, chatID string) {
	if members, ok := h.groups[chatID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.groups, chatID)
		}
	}
	delete(client.groups, chatID)
}

// InGroup reports whether client joined the group chat room.
func (h *Hub) InGroup(client *Client, chatID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := client.groups[chatID]
	return ok
}

// GroupSize returns how many sockets are in a group chat room.
func (h *Hub) GroupSize(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[chatID])
}

// Register adds a client to its user room. The client is in the room when
// Register returns, so group joins read afterwards find it. It reports false
// once the hub is shutting down.
func (h *Hub) Register(client *Client) bool {
	return h.registerClient(client)
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// GetOnlineUsers returns a list of all online user IDs
func (h *Hub) GetOnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		users = append(users, userID)
	}
	return users
}

// GetMetrics returns current WebSocket metrics
func (h *Hub) GetMetrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalConnections:   h.metrics.TotalConnections.Load(),
		ActiveConnections:  h.metrics.ActiveConnections.Load(),
		MessagesReceived:   h.metrics.MessagesReceived.Load(),
		MessagesSent:       h.metrics.MessagesSent.Load(),
		Errors:             h.metrics.Errors.Load(),
		ConnectionsDropped: h.metrics.ConnectionsDropped.Load(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	TotalConnections   int64 `json:"total_connections"`
	ActiveConnections  int64 `json:"active_connections"`
	MessagesReceived   int64 `json:"messages_received"`
	MessagesSent       int64 `json:"messages_sent"`
	Errors             int64 `json:"errors"`
	ConnectionsDropped int64 `json:"connections_dropped"`
}

// String implements Stringer for MetricsSnapshot
func (m MetricsSnapshot) String() string {
	return fmt.Sprintf(
		"connections=%d/%d messages=rx:%d/tx:%d errors=%d dropped=%d",
		m.ActiveConnections, m.TotalConnections,
		m.MessagesReceived, m.MessagesSent,
		m.Errors, m.ConnectionsDropped,
	)
}

// Shutdown stops the event loop and closes every socket.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("Realtime hub stopped", zap.String("stats", h.GetMetrics().String()))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, _ := json.Marshal(NewMessage(MessageTypeSystem, SystemPayload{Event: "server_shutdown"}))

	for client := range h.allClients {
		_ = client.enqueue(data)
		client.closeSend()
		metrics.Get().RealtimeConnections.Dec()
	}

	h.clients = make(map[string]map[*Client]struct{})
	h.groups = make(map[string]map[*Client]struct{})
	h.allClients = make(map[*Client]struct{})
}

// GetRateLimitConfig returns the current rate limit configuration
func (h *Hub) GetRateLimitConfig() RateLimitConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rateLimitConfig
}
