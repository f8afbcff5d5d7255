// Package server owns room membership through the Rooms type: named sets of
// connections that receive group-scoped fan-out.
package server

// Rooms tracks which sessions are members of which named rooms. A room has no
// existence of its own: it appears when its first member joins and vanishes
// when its last member leaves. Membership is independent of the registry; a
// connection may join rooms before (or without ever) announcing an identity.
// Like the registry, Rooms is owned by the hub loop and is not locked.
type Rooms struct {
	members map[string]map[session]struct{}
}

// NewRooms creates an empty membership table.
func NewRooms() *Rooms {
	return &Rooms{members: make(map[string]map[session]struct{})}
}

// Join adds sess to chatID. Joining a room twice is a no-op.
func (r *Rooms) Join(chatID string, sess session) {
	set, ok := r.members[chatID]
	if !ok {
		set = make(map[session]struct{})
		r.members[chatID] = set
	}
	set[sess] = struct{}{}
}

// Leave removes sess from chatID; a no-op when sess is not a member. An
// emptied room is dropped from the table.
func (r *Rooms) Leave(chatID string, sess session) {
	set, ok := r.members[chatID]
	if !ok {
		return
	}
	delete(set, sess)
	if len(set) == 0 {
		delete(r.members, chatID)
	}
}

// LeaveAll removes sess from every room it joined. Used on disconnect, where
// membership ends without group:leave notifications.
func (r *Rooms) LeaveAll(sess session) {
	for chatID, set := range r.members {
		delete(set, sess)
		if len(set) == 0 {
			delete(r.members, chatID)
		}
	}
}

// Members returns the current members of chatID. A nil slice means the room
// does not exist, which callers treat the same as an empty room.
func (r *Rooms) Members(chatID string) []session {
	set, ok := r.members[chatID]
	if !ok {
		return nil
	}
	out := make([]session, 0, len(set))
	for sess := range set {
		out = append(out, sess)
	}
	return out
}

// Contains reports whether sess is a member of chatID.
func (r *Rooms) Contains(chatID string, sess session) bool {
	_, ok := r.members[chatID][sess]
	return ok
}
