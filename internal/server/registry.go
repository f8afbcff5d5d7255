// Package server tracks which logical user is behind each live connection via
// the Registry type, the single source of truth for who is online.
package server

import "github.com/samber/lo"

// session is the delivery side of one live connection. The concrete
// implementation is Client; tests substitute in-memory fakes so routing can be
// exercised without a transport.
type session interface {
	// ID returns a process-unique handle for the connection.
	ID() string
	// Emit queues one event for delivery and reports whether the session
	// accepted it. A false return means the peer is dead or too slow.
	Emit(event string, payload any) bool
	// Close releases the session's outbound resources. Safe to call twice.
	Close()
}

type registryEntry struct {
	sess     session
	identity Identity
}

// Registry maps live connections to the identities they announced with
// user:join. Entries keep insertion order because private-message delivery
// resolves a uid to the first connection that registered it. The registry is
// owned by the hub's event loop and needs no locking.
type Registry struct {
	entries []registryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Join records the identity announced over sess, overwriting a previous
// announcement from the same session in place. Identities are not checked for
// uid uniqueness: two connections claiming the same uid are both retained.
func (r *Registry) Join(sess session, identity Identity) {
	for i := range r.entries {
		if r.entries[i].sess == sess {
			r.entries[i].identity = identity
			return
		}
	}
	r.entries = append(r.entries, registryEntry{sess: sess, identity: identity})
}

// Leave removes the entry for sess and reports whether one existed. Leaving
// without a prior Join is a no-op, not an error.
func (r *Registry) Leave(sess session) bool {
	for i := range r.entries {
		if r.entries[i].sess == sess {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// LookupUID resolves a uid to a live session by scanning entries in insertion
// order and returning the first match. When several connections claim the same
// uid the oldest registration wins; callers rely on this tie-break.
func (r *Registry) LookupUID(uid string) (session, bool) {
	for _, e := range r.entries {
		if e.identity.UID == uid {
			return e.sess, true
		}
	}
	return nil, false
}

// IdentityOf returns the identity registered for sess, if any.
func (r *Registry) IdentityOf(sess session) (Identity, bool) {
	for _, e := range r.entries {
		if e.sess == sess {
			return e.identity, true
		}
	}
	return Identity{}, false
}

// Snapshot returns every registered identity in registration order,
// duplicates included.
func (r *Registry) Snapshot() []Identity {
	return lo.Map(r.entries, func(e registryEntry, _ int) Identity {
		return e.identity
	})
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	return len(r.entries)
}
