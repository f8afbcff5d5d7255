// Package server decides, per inbound event, which connections receive what
// via the Router type.
package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pulsechat/relay/internal/notify"
)

// dispatchTimeout bounds one fire-and-forget notification dispatch.
const dispatchTimeout = 10 * time.Second

// Router turns inbound events into deliveries. Every decision is a pure
// function of the event and the current registry/room state; the router keeps
// no state of its own. Lookup misses are dropped and logged, never surfaced to
// the sender.
type Router struct {
	registry   *Registry
	rooms      *Rooms
	dispatcher notify.Dispatcher

	// onSendFailure is invoked for sessions whose outbound buffer rejected a
	// delivery. The hub uses it to schedule eviction.
	onSendFailure func(session)
}

// NewRouter creates a router over the given registry and rooms. dispatcher may
// be nil, which disables notification dispatch.
func NewRouter(registry *Registry, rooms *Rooms, dispatcher notify.Dispatcher) *Router {
	return &Router{registry: registry, rooms: rooms, dispatcher: dispatcher}
}

// HandlePrivate routes a message:private event. The recipient is the first
// connection registered under the target uid; without one the message is
// dropped. The from field always comes from the sender's own registration so
// a client cannot spoof another identity.
func (rt *Router) HandlePrivate(sender session, data json.RawMessage) {
	var msg PrivateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("event", EventMessagePrivate).Msg("malformed payload")
		return
	}

	from, _ := rt.registry.IdentityOf(sender)
	rt.dispatch(notify.Notification{
		RecipientUID: msg.To,
		Sender:       mustRaw(from),
		Message:      msg.Message,
	})

	target, ok := rt.registry.LookupUID(msg.To)
	if !ok {
		log.Debug().Str("to", msg.To).Msg("private message dropped: no live connection")
		return
	}
	rt.deliver(target, EventMessageReceive, Received{From: from, Message: msg.Message})
}

// HandleGroup routes a message:group event to every other member of the room.
// A sender that never joined the room reaches nobody; that is a no-op, not an
// error.
func (rt *Router) HandleGroup(sender session, data json.RawMessage) {
	var msg GroupMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("event", EventMessageGroup).Msg("malformed payload")
		return
	}
	if !rt.rooms.Contains(msg.ChatID, sender) {
		log.Debug().Str("chatId", msg.ChatID).Msg("group message from non-member dropped")
		return
	}

	from, _ := rt.registry.IdentityOf(sender)
	rt.dispatch(notify.Notification{
		ChatID:  msg.ChatID,
		Sender:  mustRaw(from),
		Message: msg.Message,
	})

	rt.fanOut(msg.ChatID, sender, EventMessageReceive, Received{
		From:    from,
		Message: msg.Message,
		ChatID:  msg.ChatID,
	})
}

// HandleTyping routes typing:start / typing:stop as a typing:update to the
// other members of the room. No state is kept between start and stop; the
// client is responsible for emitting a matching stop.
func (rt *Router) HandleTyping(sender session, data json.RawMessage, isTyping bool) {
	var ev TypingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Warn().Err(err).Bool("isTyping", isTyping).Msg("malformed typing payload")
		return
	}
	rt.fanOut(ev.ChatID, sender, EventTypingUpdate, TypingUpdate{User: ev.User, IsTyping: isTyping})
}

// HandleGroupAction relays a group:action payload verbatim to the other room
// members as group:update. The action value is caller convention; the router
// does not interpret it.
func (rt *Router) HandleGroupAction(sender session, data json.RawMessage) {
	var action GroupAction
	if err := json.Unmarshal(data, &action); err != nil {
		log.Warn().Err(err).Str("event", EventGroupAction).Msg("malformed payload")
		return
	}
	rt.fanOut(action.ChatID, sender, EventGroupUpdate, data)
}

// HandleRoomJoin adds sender to a room. For group:join (announce=true) the
// other members are additionally told who arrived, read from the registry at
// call time: a joiner that has not announced an identity yet produces no
// notification.
func (rt *Router) HandleRoomJoin(sender session, data json.RawMessage, announce bool) {
	chatID, err := decodeChatID(data)
	if err != nil {
		log.Warn().Err(err).Msg("malformed room join payload")
		return
	}
	rt.rooms.Join(chatID, sender)
	log.Debug().Str("chatId", chatID).Str("conn", sender.ID()).Msg("joined room")

	if !announce {
		return
	}
	if identity, ok := rt.registry.IdentityOf(sender); ok {
		rt.fanOut(chatID, sender, EventGroupMemberJoined, MembershipNotice{ChatID: chatID, User: identity})
	}
}

// HandleRoomLeave removes sender from a room and tells the remaining members,
// subject to the same registered-identity condition as HandleRoomJoin.
func (rt *Router) HandleRoomLeave(sender session, data json.RawMessage) {
	chatID, err := decodeChatID(data)
	if err != nil {
		log.Warn().Err(err).Msg("malformed room leave payload")
		return
	}
	rt.rooms.Leave(chatID, sender)
	log.Debug().Str("chatId", chatID).Str("conn", sender.ID()).Msg("left room")

	if identity, ok := rt.registry.IdentityOf(sender); ok {
		rt.fanOut(chatID, sender, EventGroupMemberLeft, MembershipNotice{ChatID: chatID, User: identity})
	}
}

// fanOut delivers one event to every member of chatID except sender.
func (rt *Router) fanOut(chatID string, sender session, event string, payload any) {
	for _, member := range rt.rooms.Members(chatID) {
		if member == sender {
			continue
		}
		rt.deliver(member, event, payload)
	}
}

// deliver emits one event to one session and reports slow consumers upward.
func (rt *Router) deliver(target session, event string, payload any) {
	if target.Emit(event, payload) {
		return
	}
	log.Warn().Str("conn", target.ID()).Str("event", event).Msg("dropping delivery: send buffer full")
	if rt.onSendFailure != nil {
		rt.onSendFailure(target)
	}
}

// dispatch hands a notification to the collaborator without waiting for it.
// Dispatch failures are logged and never reach the delivery path.
func (rt *Router) dispatch(n notify.Notification) {
	if rt.dispatcher == nil {
		return
	}
	n.SentAt = time.Now().UTC()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := rt.dispatcher.Send(ctx, n); err != nil {
			log.Warn().Err(err).Str("recipient", n.RecipientUID).Str("chatId", n.ChatID).
				Msg("notification dispatch failed")
		}
	}()
}

// mustRaw marshals an identity for the notification payload. Identity
// marshaling cannot fail: it either re-emits captured client bytes or encodes
// two strings.
func mustRaw(id Identity) json.RawMessage {
	raw, err := json.Marshal(id)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
