// Package server coordinates the relay through the Hub type: one event loop
// that owns the registry and room state and serializes every mutation.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pulsechat/relay/internal/notify"
)

// inboundEvent is one decoded frame awaiting routing, paired with the session
// it arrived on.
type inboundEvent struct {
	sess session
	env  Envelope
}

// Hub runs the relay's single event loop. Registration, disconnects, and
// every routed message pass through one goroutine, so the registry and room
// structures need no locks and events from one connection are processed in
// arrival order. Only notification dispatch leaves this loop, as
// fire-and-forget goroutines.
type Hub struct {
	registry *Registry
	rooms    *Rooms
	router   *Router

	// sessions holds every live connection, registered identity or not.
	// Presence broadcasts go to all of them.
	sessions map[session]struct{}

	register   chan *Client
	unregister chan session
	inbound    chan inboundEvent

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	pumps  sync.WaitGroup
}

// NewHub creates a hub wired to the given notification dispatcher, which may
// be nil. Run must be started before clients are registered.
func NewHub(dispatcher notify.Dispatcher) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		registry:   NewRegistry(),
		rooms:      NewRooms(),
		sessions:   make(map[session]struct{}),
		register:   make(chan *Client),
		unregister: make(chan session),
		inbound:    make(chan inboundEvent),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.router = NewRouter(h.registry, h.rooms, dispatcher)
	h.router.onSendFailure = h.scheduleEvict
	return h
}

// Register hands a new client to the event loop, which starts its pumps.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Run is the hub's event loop. Call it in its own goroutine; it returns when
// Shutdown cancels the hub.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeSessions()
			return

		case c := <-h.register:
			if c == nil {
				log.Warn().Msg("nil client registration skipped")
				continue
			}
			h.handleRegister(c)

		case sess := <-h.unregister:
			h.handleUnregister(sess)

		case ev := <-h.inbound:
			h.handleEvent(ev.sess, ev.env)
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.sessions[c] = struct{}{}
	log.Info().Str("conn", c.ID()).Str("addr", c.addr).Int("total", len(h.sessions)).
		Msg("connection registered")

	h.pumps.Add(2)
	go func() {
		defer h.pumps.Done()
		c.writePump()
	}()
	go func() {
		defer h.pumps.Done()
		c.readPump()
	}()
}

// handleUnregister is the single disconnect path: voluntary close, transport
// timeout, protocol error, and slow-consumer eviction all end here. It always
// rebroadcasts presence, even for connections that never announced an
// identity; the rebroadcast is harmless in that case.
func (h *Hub) handleUnregister(sess session) {
	if _, ok := h.sessions[sess]; !ok {
		return
	}
	delete(h.sessions, sess)
	h.registry.Leave(sess)
	h.rooms.LeaveAll(sess)
	sess.Close()
	log.Info().Str("conn", sess.ID()).Int("total", len(h.sessions)).Msg("connection unregistered")

	h.broadcastPresence()
}

// handleEvent routes one decoded frame. Payload errors are logged at this
// boundary; the connection is never dropped for a malformed payload.
func (h *Hub) handleEvent(sess session, env Envelope) {
	switch env.Event {
	case EventUserJoin:
		h.handleUserJoin(sess, env)
	case EventMessagePrivate:
		h.router.HandlePrivate(sess, env.Data)
	case EventMessageGroup:
		h.router.HandleGroup(sess, env.Data)
	case EventChatJoin:
		h.router.HandleRoomJoin(sess, env.Data, false)
	case EventTypingStart:
		h.router.HandleTyping(sess, env.Data, true)
	case EventTypingStop:
		h.router.HandleTyping(sess, env.Data, false)
	case EventGroupAction:
		h.router.HandleGroupAction(sess, env.Data)
	case EventGroupJoin:
		h.router.HandleRoomJoin(sess, env.Data, true)
	case EventGroupLeave:
		h.router.HandleRoomLeave(sess, env.Data)
	default:
		log.Debug().Str("event", env.Event).Msg("unknown event ignored")
	}
}

// handleUserJoin records the identity announced on sess. The payload is
// accepted verbatim, missing fields included; the last announcement per
// connection wins.
func (h *Hub) handleUserJoin(sess session, env Envelope) {
	var identity Identity
	if err := identity.UnmarshalJSON(env.Data); err != nil {
		log.Warn().Err(err).Str("event", EventUserJoin).Msg("malformed payload")
		return
	}
	h.registry.Join(sess, identity)
	log.Info().Str("conn", sess.ID()).Str("uid", identity.UID).Msg("identity registered")

	h.broadcastPresence()
}

// broadcastPresence pushes the full active-user list to every connection.
// It runs synchronously with the join or leave that triggered it; there is no
// debouncing or diffing.
func (h *Hub) broadcastPresence() {
	snapshot := h.registry.Snapshot()
	for sess := range h.sessions {
		if !sess.Emit(EventUsersActive, snapshot) {
			log.Warn().Str("conn", sess.ID()).Msg("presence broadcast dropped: send buffer full")
			h.scheduleEvict(sess)
		}
	}
}

// scheduleEvict queues an unregister without blocking the event loop, which
// may be the caller.
func (h *Hub) scheduleEvict(sess session) {
	go func() {
		select {
		case h.unregister <- sess:
		case <-h.ctx.Done():
		}
	}()
}

// closeSessions tears down every live connection during shutdown.
func (h *Hub) closeSessions() {
	log.Info().Int("count", len(h.sessions)).Msg("closing all connections")
	for sess := range h.sessions {
		sess.Close()
	}
}

// Shutdown stops the event loop and waits for client pump goroutines to
// finish, up to the timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		log.Info().Msg("hub shutdown complete")
		return nil
	case <-time.After(timeout):
		log.Warn().Msg("hub shutdown timed out")
		return context.DeadlineExceeded
	}
}
