package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sportsocial/backend/internal/realtime"
)

// FlexibleTime handles both Unix millisecond timestamps and RFC3339 strings
type FlexibleTime struct {
	time.Time
}

// UnmarshalJSON implements custom unmarshaling for timestamps
func (ft *FlexibleTime) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err == nil {
		ft.Time = time.UnixMilli(ms)
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("timestamp must be Unix milliseconds (integer) or RFC3339 string")
	}
	if str == "" {
		ft.Time = time.Time{}
		return nil
	}

	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return err
	}
	ft.Time = t
	return nil
}

// MarshalJSON implements custom marshaling (always output as RFC3339)
func (ft FlexibleTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Time)
}

// Client to server events
const (
	MessageTypeJoin              = "join"
	MessageTypeSendDirectMessage = "sendDirectMessage"
	MessageTypeSendGroupMessage  = "sendGroupMessage"
	MessageTypeJoinGroupChat     = "joinGroupChat"
	MessageTypeLeaveGroupChat    = "leaveGroupChat"
	MessageTypeTyping            = "typing"
	MessageTypePing              = "ping"
)

// Server to client events
const (
	MessageTypeNewDirectMessage = realtime.EventNewDirectMessage
	MessageTypeNewGroupMessage  = realtime.EventNewGroupMessage
	MessageTypeMessageDelivered = realtime.EventMessageDelivered
	MessageTypeMessageError     = realtime.EventMessageError
	MessageTypeNotification     = realtime.EventNotification
	MessageTypeUserTyping       = realtime.EventUserTyping
	MessageTypeSystem           = realtime.EventSystem
	MessageTypePong             = realtime.EventPong

	// MessageTypeError reports protocol problems (bad JSON, unknown type,
	// rate limiting) that are not tied to a message send.
	MessageTypeError = "error"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	// Type identifies the message type for routing
	Type string `json:"type"`

	// Payload contains the message-specific data
	Payload interface{} `json:"payload,omitempty"`

	// ID is a client-chosen identifier echoed back in ReplyTo
	ID string `json:"id,omitempty"`

	// ReplyTo references the original message ID for responses
	ReplyTo string `json:"reply_to,omitempty"`

	// Timestamp when the message was created (accepts Unix ms or RFC3339)
	Timestamp FlexibleTime `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// NewReply creates a reply message to an original message
func NewReply(original *Message, msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		ReplyTo:   original.ID,
		Payload:   payload,
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// NewErrorMessage creates a protocol error message
func NewErrorMessage(code string, message string) *Message {
	return NewMessage(MessageTypeError, ErrorPayload{Code: code, Message: message})
}

// ErrorPayload is the payload of error and messageError frames.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PingPayload represents a ping message payload
type PingPayload struct {
	ClientTime int64 `json:"client_time"`
}

// PongPayload represents a pong message payload
type PongPayload struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
	Latency    int64 `json:"latency_ms"`
}

// SystemPayload represents system event payloads
type SystemPayload struct {
	Event   string                 `json:"event"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// SendDirectMessagePayload is the body of sendDirectMessage.
type SendDirectMessagePayload struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

// SendGroupMessagePayload is the body of sendGroupMessage.
type SendGroupMessagePayload struct {
	GroupChat string `json:"groupChat"`
	Content   string `json:"content"`
}

// GroupChatPayload is the body of joinGroupChat and leaveGroupChat.
type GroupChatPayload struct {
	GroupChat string `json:"groupChat"`
}

// TypingPayload is sent by a client and relayed as userTyping. Exactly one
// of RecipientID and GroupChat is set.
type TypingPayload struct {
	UserID      string `json:"userId,omitempty"`
	Username    string `json:"username,omitempty"`
	RecipientID string `json:"recipientId,omitempty"`
	GroupChat   string `json:"groupChat,omitempty"`
	IsTyping    bool   `json:"isTyping"`
}

// ParsePayload unmarshals the payload into a specific type
func (m *Message) ParsePayload(target interface{}) error {
	if m.Payload == nil {
		return nil
	}

	// Re-marshal and unmarshal to properly type the payload
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
