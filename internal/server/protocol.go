// Package server defines the wire protocol shared by clients and the relay:
// event names, the JSON envelope, and the payload types routed by the hub.
package server

import (
	"encoding/json"
	"errors"
)

// Client-to-server event names.
const (
	EventUserJoin       = "user:join"
	EventMessagePrivate = "message:private"
	EventMessageGroup   = "message:group"
	EventChatJoin       = "chat:join"
	EventTypingStart    = "typing:start"
	EventTypingStop     = "typing:stop"
	EventGroupAction    = "group:action"
	EventGroupJoin      = "group:join"
	EventGroupLeave     = "group:leave"
)

// Server-to-client event names.
const (
	EventUsersActive       = "users:active"
	EventMessageReceive    = "message:receive"
	EventTypingUpdate      = "typing:update"
	EventGroupUpdate       = "group:update"
	EventGroupMemberJoined = "group:member_joined"
	EventGroupMemberLeft   = "group:member_left"
)

// Envelope is the framing for every WebSocket text message: an event name plus
// an event-specific JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ErrMissingEvent is returned when an inbound frame has no event name.
var ErrMissingEvent = errors.New("envelope has no event name")

// DecodeEnvelope parses one inbound frame.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, ErrMissingEvent
	}
	return env, nil
}

// Identity is the logical chat user a connection claims to represent. It is
// accepted verbatim from the client: beyond uid and displayName no fields are
// inspected, and the original payload is kept so that client-supplied profile
// fields survive re-broadcast byte for byte.
type Identity struct {
	UID         string
	DisplayName string

	raw json.RawMessage
}

// UnmarshalJSON captures the known fields and retains the raw payload.
func (id *Identity) UnmarshalJSON(data []byte) error {
	var known struct {
		UID         string `json:"uid"`
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	id.UID = known.UID
	id.DisplayName = known.DisplayName
	id.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the client's original payload when one was captured.
func (id Identity) MarshalJSON() ([]byte, error) {
	if len(id.raw) > 0 {
		return id.raw, nil
	}
	return json.Marshal(struct {
		UID         string `json:"uid"`
		DisplayName string `json:"displayName"`
	}{id.UID, id.DisplayName})
}

// PrivateMessage is the payload of message:private.
type PrivateMessage struct {
	To      string          `json:"to"`
	Message json.RawMessage `json:"message"`
}

// GroupMessage is the payload of message:group.
type GroupMessage struct {
	ChatID  string          `json:"chatId"`
	Message json.RawMessage `json:"message"`
}

// TypingEvent is the payload of typing:start and typing:stop. The user field
// is relayed untouched.
type TypingEvent struct {
	ChatID string          `json:"chatId"`
	User   json.RawMessage `json:"user"`
}

// GroupAction is the header of a group:action payload. Only chatId is read by
// the router; the action value and any extra fields are opaque and relayed as
// received.
type GroupAction struct {
	ChatID string `json:"chatId"`
	Action string `json:"action"`
	UserID string `json:"userId"`
}

// RoomRef is the payload of group:join and group:leave.
type RoomRef struct {
	ChatID string `json:"chatId"`
}

// Received is the message:receive payload delivered to recipients. The from
// field is always the sender's registered identity, never a client-supplied
// value.
type Received struct {
	From    Identity        `json:"from"`
	Message json.RawMessage `json:"message"`
	ChatID  string          `json:"chatId,omitempty"`
}

// TypingUpdate is the typing:update payload fanned out to room members.
type TypingUpdate struct {
	User     json.RawMessage `json:"user"`
	IsTyping bool            `json:"isTyping"`
}

// MembershipNotice is the group:member_joined / group:member_left payload.
type MembershipNotice struct {
	ChatID string   `json:"chatId"`
	User   Identity `json:"user"`
}

// decodeChatID accepts both forms the chat:join event arrives in: a bare JSON
// string and an object carrying a chatId field.
func decodeChatID(data json.RawMessage) (string, error) {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		return plain, nil
	}
	var ref RoomRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return "", err
	}
	if ref.ChatID == "" {
		return "", errors.New("payload has no chatId")
	}
	return ref.ChatID, nil
}
