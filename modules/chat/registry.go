package chat

import (
	"sort"
	"time"
)

// Connection is the identity bound to one live socket.
type Connection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RoomID      string    `json:"room_id,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Joined reports whether the connection is bound to a room.
func (c Connection) Joined() bool {
	return c.RoomID != ""
}

// RoomTransition describes what a membership change did to a room.
type RoomTransition int

const (
	RoomUnchanged RoomTransition = iota
	RoomOpened
	RoomClosed
)

func (t RoomTransition) String() string {
	switch t {
	case RoomOpened:
		return "opened"
	case RoomClosed:
		return "closed"
	default:
		return "unchanged"
	}
}

// RoomInfo is a registry-side view of an active room.
type RoomInfo struct {
	ID          string
	Members     int
	Connections int
	CreatedAt   time.Time
}

type roomMembers struct {
	createdAt time.Time
	joinSeq   map[string]uint64 // connID -> join order
}

// Registry tracks live connections and which room each one is bound to.
// Membership is keyed by connection id, so two sockets sharing a display name
// are tracked independently.
//
// Registry is not safe for concurrent use; Relay serializes access.
type Registry struct {
	conns map[string]*Connection
	rooms map[string]*roomMembers
	seq   uint64
	now   func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		conns: make(map[string]*Connection),
		rooms: make(map[string]*roomMembers),
		now:   now,
	}
}

// Connect allocates a connection with the fallback identity. Calling it again
// for a known id returns the existing connection.
func (r *Registry) Connect(id string) Connection {
	if c, ok := r.conns[id]; ok {
		return *c
	}
	c := &Connection{ID: id, Name: DefaultUsername, ConnectedAt: r.now()}
	r.conns[id] = c
	return *c
}

// Lookup returns the connection for id.
func (r *Registry) Lookup(id string) (Connection, bool) {
	c, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}

// Join binds id to (name, room). A connection that is already bound is
// unbound from its old room first; the transition of that old room is
// returned as left.
func (r *Registry) Join(id, name, room string) (joined, left RoomTransition, ok bool) {
	c, exists := r.conns[id]
	if !exists {
		return RoomUnchanged, RoomUnchanged, false
	}
	if c.Joined() {
		left = r.unbind(c)
	}

	c.Name = name
	c.RoomID = room

	members, exists := r.rooms[room]
	if !exists {
		members = &roomMembers{createdAt: r.now(), joinSeq: make(map[string]uint64)}
		r.rooms[room] = members
		joined = RoomOpened
	}
	r.seq++
	members.joinSeq[id] = r.seq
	return joined, left, true
}

// Leave unbinds id from its room but keeps the connection.
func (r *Registry) Leave(id string) (room string, t RoomTransition, ok bool) {
	c, exists := r.conns[id]
	if !exists || !c.Joined() {
		return "", RoomUnchanged, false
	}
	room = c.RoomID
	return room, r.unbind(c), true
}

// Disconnect removes the connection entirely and returns its final state.
func (r *Registry) Disconnect(id string) (Connection, RoomTransition, bool) {
	c, exists := r.conns[id]
	if !exists {
		return Connection{}, RoomUnchanged, false
	}
	final := *c
	t := RoomUnchanged
	if c.Joined() {
		t = r.unbind(c)
	}
	delete(r.conns, id)
	return final, t, true
}

func (r *Registry) unbind(c *Connection) RoomTransition {
	room := c.RoomID
	c.RoomID = ""
	members, ok := r.rooms[room]
	if !ok {
		return RoomUnchanged
	}
	delete(members.joinSeq, c.ID)
	if len(members.joinSeq) == 0 {
		delete(r.rooms, room)
		return RoomClosed
	}
	return RoomUnchanged
}

// ConnectionsIn returns the connection ids bound to room in join order.
func (r *Registry) ConnectionsIn(room string) []string {
	members, ok := r.rooms[room]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(members.joinSeq))
	for id := range members.joinSeq {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return members.joinSeq[ids[i]] < members.joinSeq[ids[j]]
	})
	return ids
}

// ConnectionsInExcept is ConnectionsIn without the excluded connection.
func (r *Registry) ConnectionsInExcept(room, except string) []string {
	all := r.ConnectionsIn(room)
	out := all[:0]
	for _, id := range all {
		if id != except {
			out = append(out, id)
		}
	}
	return out
}

// ConnectionsNamed returns the connections in room whose display name is name.
func (r *Registry) ConnectionsNamed(room, name string) []string {
	var out []string
	for _, id := range r.ConnectionsIn(room) {
		if r.conns[id].Name == name {
			out = append(out, id)
		}
	}
	return out
}

// MembersOf returns the distinct display names in room, in join order.
func (r *Registry) MembersOf(room string) []string {
	ids := r.ConnectionsIn(room)
	names := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		name := r.conns[id].Name
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// RoomExists reports whether room has at least one member.
func (r *Registry) RoomExists(room string) bool {
	_, ok := r.rooms[room]
	return ok
}

// Rooms returns every active room sorted by id.
func (r *Registry) Rooms() []RoomInfo {
	out := make([]RoomInfo, 0, len(r.rooms))
	for id, members := range r.rooms {
		out = append(out, RoomInfo{
			ID:          id,
			Members:     len(r.MembersOf(id)),
			Connections: len(members.joinSeq),
			CreatedAt:   members.createdAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Room returns the registry view of a single room.
func (r *Registry) Room(room string) (RoomInfo, bool) {
	members, ok := r.rooms[room]
	if !ok {
		return RoomInfo{}, false
	}
	return RoomInfo{
		ID:          room,
		Members:     len(r.MembersOf(room)),
		Connections: len(members.joinSeq),
		CreatedAt:   members.createdAt,
	}, true
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return len(r.conns)
}
