package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Inbound frame types accepted from clients.
const (
	TypeAuthenticate  = "authenticate"
	TypeMessage       = "message"
	TypeTyping        = "typing"
	TypeNotification  = "notification"
	TypeStatusRequest = "status_request"
	TypePing          = "ping"
)

// Outbound frame types sent to clients.
const (
	TypeConnection     = "connection"
	TypeAuth           = "auth"
	TypeUserStatus     = "userStatus"
	TypeStatusResponse = "status_response"
	TypePong           = "pong"
	TypeError          = "error"
)

// Statuses carried by the outbound envelope.
const (
	StatusConnected = "connected"
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusOnline    = "online"
	StatusOffline   = "offline"
)

// Inbound is the envelope for frames coming from the client. Payload fields
// may arrive nested under "data" or flat at the top level; Decode handles
// both so each handler works from a single typed struct.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`

	raw json.RawMessage
}

// ParseInbound decodes the envelope of a raw frame.
func ParseInbound(raw []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, fmt.Errorf("parse frame: %w", err)
	}
	if in.Type == "" {
		return Inbound{}, fmt.Errorf("frame has no type")
	}
	in.raw = raw
	return in, nil
}

// Decode unmarshals the frame payload into v, preferring the nested "data"
// object when present.
func (in Inbound) Decode(v any) error {
	payload := in.raw
	if len(in.Data) > 0 && bytes.HasPrefix(bytes.TrimSpace(in.Data), []byte("{")) {
		payload = in.Data
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", in.Type, err)
	}
	return nil
}

// AuthenticateData carries the bearer token for the authenticate frame.
type AuthenticateData struct {
	Token string `json:"token"`
}

// MessageData is a chat message from the client. Exactly one of Recipient or
// RoomID selects the target.
type MessageData struct {
	Content   string `json:"content"`
	Recipient string `json:"recipient"`
	RoomID    string `json:"roomId"`
}

// TypingData is an ephemeral typing indicator.
type TypingData struct {
	Recipient string `json:"recipient"`
	IsTyping  bool   `json:"isTyping"`
}

// NotificationData asks the hub to relay a notification.
type NotificationData struct {
	NotificationType string `json:"notificationType"`
	Content          string `json:"content"`
	TargetUser       string `json:"targetUser"`
}

// Envelope is the generic outbound frame.
type Envelope struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// NewEnvelope stamps an outbound envelope with the current time in
// milliseconds.
func NewEnvelope(typ, status string, data any) Envelope {
	return Envelope{
		Type:      typ,
		Status:    status,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Welcome is sent once right after the transport is accepted.
func Welcome() Envelope {
	return NewEnvelope(TypeConnection, StatusConnected, "connection established")
}

// AuthSuccess acknowledges a successful authentication.
func AuthSuccess() Envelope {
	return NewEnvelope(TypeAuth, StatusSuccess, "authentication successful")
}

// ErrorFrame reports a soft error; the connection stays open.
func ErrorFrame(reason string) Envelope {
	return NewEnvelope(TypeError, StatusError, reason)
}

// Pong answers a client ping.
func Pong() Envelope {
	return NewEnvelope(TypePong, StatusSuccess, "pong")
}

// UserRef identifies a user inside outbound payloads.
type UserRef struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// ChatMessage is the relayed chat frame, shaped the way clients render it.
type ChatMessage struct {
	Type        string  `json:"type"`
	ID          int64   `json:"id"`
	RoomID      int64   `json:"roomId"`
	SenderID    int64   `json:"senderId"`
	Content     string  `json:"content"`
	MessageType string  `json:"messageType"`
	CreatedDate string  `json:"createdDate"`
	Sender      UserRef `json:"sender"`
}

// NewChatMessage builds a relayed chat frame from the sender's identity.
func NewChatMessage(sender UserRef, roomID int64, content string) ChatMessage {
	now := time.Now()
	return ChatMessage{
		Type:        TypeMessage,
		ID:          now.UnixMilli(),
		RoomID:      roomID,
		SenderID:    sender.ID,
		Content:     content,
		MessageType: "TEXT",
		CreatedDate: now.Format(time.RFC3339),
		Sender:      sender,
	}
}

// TypingEvent relays a typing indicator.
type TypingEvent struct {
	Type      string `json:"type"`
	User      string `json:"user"`
	IsTyping  bool   `json:"isTyping"`
	Timestamp int64  `json:"timestamp"`
}

// NewTypingEvent builds a typing frame for the given user.
func NewTypingEvent(user string, isTyping bool) TypingEvent {
	return TypingEvent{
		Type:      TypeTyping,
		User:      user,
		IsTyping:  isTyping,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NotificationEvent relays a notification. Sender is empty when the
// notification was injected by another backend component.
type NotificationEvent struct {
	Type             string `json:"type"`
	NotificationType string `json:"notificationType"`
	Content          string `json:"content"`
	Sender           string `json:"sender,omitempty"`
	Timestamp        int64  `json:"timestamp"`
}

// NewNotificationEvent builds a notification frame.
func NewNotificationEvent(sender, notificationType, content string) NotificationEvent {
	return NotificationEvent{
		Type:             TypeNotification,
		NotificationType: notificationType,
		Content:          content,
		Sender:           sender,
		Timestamp:        time.Now().UnixMilli(),
	}
}

// StatusEntry describes one online user in presence frames.
type StatusEntry struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
	Presence string `json:"presence"`
}

// StatusResponse answers a status_request with the visible online users.
type StatusResponse struct {
	Type      string        `json:"type"`
	Data      []StatusEntry `json:"data"`
	Timestamp int64         `json:"timestamp"`
}

// NewStatusResponse builds a presence snapshot frame.
func NewStatusResponse(entries []StatusEntry) StatusResponse {
	return StatusResponse{
		Type:      TypeStatusResponse,
		Data:      entries,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewUserStatus builds a presence change frame for one user.
func NewUserStatus(status string, entry StatusEntry) Envelope {
	return NewEnvelope(TypeUserStatus, status, entry)
}
