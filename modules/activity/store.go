package activity

import (
	"sort"
	"sync"
	"time"

	"github.com/example/chat-relay-demo/events"
)

// RoomActivity holds the counters of one room. Counters survive the room
// closing and keep growing if it is opened again. They are fed from the
// event bus and are eventually consistent with the relay.
type RoomActivity struct {
	RoomID         string     `json:"room_id"`
	Open           bool       `json:"open"`
	Messages       int        `json:"messages"`
	SystemMessages int        `json:"system_messages"`
	Files          int        `json:"files"`
	AudioClips     int        `json:"audio_clips"`
	Edits          int        `json:"edits"`
	Deletes        int        `json:"deletes"`
	Pins           int        `json:"pins"`
	ReadReceipts   int        `json:"read_receipts"`
	Joins          int        `json:"joins"`
	Leaves         int        `json:"leaves"`
	Present        int        `json:"present"`
	OpenedAt       time.Time  `json:"opened_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	LastActivity   time.Time  `json:"last_activity"`
}

// Summary aggregates every room seen since startup.
type Summary struct {
	ActiveRooms   int            `json:"active_rooms"`
	RoomsOpened   int            `json:"rooms_opened"`
	RoomsClosed   int            `json:"rooms_closed"`
	TotalMessages int            `json:"total_messages"`
	TotalJoins    int            `json:"total_joins"`
	Rooms         []RoomActivity `json:"rooms"`
}

// Store accumulates chat activity in memory.
type Store struct {
	mu     sync.RWMutex
	rooms  map[string]*RoomActivity
	opened int
	closed int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{rooms: make(map[string]*RoomActivity)}
}

func (s *Store) room(id string, at time.Time) *RoomActivity {
	r, ok := s.rooms[id]
	if !ok {
		r = &RoomActivity{RoomID: id, OpenedAt: at}
		s.rooms[id] = r
	}
	if at.After(r.LastActivity) {
		r.LastActivity = at
	}
	return r
}

// RecordOpened marks a room as open. Lifecycle events travel on separate
// subjects and may arrive out of order; an open older than the recorded close
// is counted but does not reopen the room.
func (s *Store) RecordOpened(e events.RoomLifecycleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(e.RoomID, e.Timestamp)
	s.opened++
	if r.ClosedAt != nil && e.Timestamp.Before(*r.ClosedAt) {
		return
	}
	r.Open = true
	r.OpenedAt = e.Timestamp
	r.ClosedAt = nil
}

// RecordClosed marks a room as closed. A close older than the current opening
// belongs to an earlier lifecycle and leaves the room open.
func (s *Store) RecordClosed(e events.RoomLifecycleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(e.RoomID, e.Timestamp)
	s.closed++
	if r.Open && e.Timestamp.Before(r.OpenedAt) {
		return
	}
	r.Open = false
	r.Present = 0
	closedAt := e.Timestamp
	r.ClosedAt = &closedAt
}

// RecordJoined counts a join.
func (s *Store) RecordJoined(e events.UserJoinedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(e.RoomID, e.Timestamp)
	r.Joins++
	r.Present++
}

// RecordLeft counts a departure.
func (s *Store) RecordLeft(e events.UserLeftEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(e.RoomID, e.Timestamp)
	r.Leaves++
	if r.Present > 0 {
		r.Present--
	}
}

// RecordPosted counts a logged message by kind.
func (s *Store) RecordPosted(e events.MessagePostedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(e.RoomID, e.Timestamp)
	switch {
	case e.System:
		r.SystemMessages++
	case e.Kind == "file":
		r.Files++
	case e.Kind == "audio":
		r.AudioClips++
	default:
		r.Messages++
	}
}

// RecordUpdated counts an edit, delete, pin or read receipt.
func (s *Store) RecordUpdated(e events.MessageUpdatedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(e.RoomID, e.Timestamp)
	switch e.Action {
	case events.ActionEdited:
		r.Edits++
	case events.ActionDeleted:
		r.Deletes++
	case events.ActionPinned:
		r.Pins++
	case events.ActionSeen:
		r.ReadReceipts++
	}
}

// Room returns the counters for one room.
func (s *Store) Room(id string) (RoomActivity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return RoomActivity{}, false
	}
	return *r, true
}

// Summary returns totals and every room sorted by id.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{
		RoomsOpened: s.opened,
		RoomsClosed: s.closed,
		Rooms:       make([]RoomActivity, 0, len(s.rooms)),
	}
	for _, r := range s.rooms {
		if r.Open {
			sum.ActiveRooms++
		}
		sum.TotalMessages += r.Messages + r.Files + r.AudioClips
		sum.TotalJoins += r.Joins
		sum.Rooms = append(sum.Rooms, *r)
	}
	sort.Slice(sum.Rooms, func(i, j int) bool { return sum.Rooms[i].RoomID < sum.Rooms[j].RoomID })
	return sum
}
