package chat

import (
	"time"

	domain "github.com/example/chat-relay-demo/domain/chat"
)

// Draft is a message about to be appended to a room log.
type Draft struct {
	// ProposedID is a client-chosen id. It is kept only when well formed and
	// not already used in the room.
	ProposedID string
	Author     string
	System     bool
	Kind       domain.Kind
	Text       string
	Attachment *domain.Attachment
}

type roomLog struct {
	order []string
	byID  map[string]*domain.Message
}

// MessageLog holds the ordered message history of every active room.
// History is unbounded for the lifetime of the room and dropped with it.
//
// MessageLog is not safe for concurrent use; Relay serializes access.
type MessageLog struct {
	rooms map[string]*roomLog
	newID func() string
	now   func() time.Time
}

// NewMessageLog creates an empty log.
func NewMessageLog(newID func() string, now func() time.Time) *MessageLog {
	if now == nil {
		now = time.Now
	}
	return &MessageLog{
		rooms: make(map[string]*roomLog),
		newID: newID,
		now:   now,
	}
}

// Append stores a new message and returns a copy of it.
func (l *MessageLog) Append(room string, d Draft) domain.Message {
	rl, ok := l.rooms[room]
	if !ok {
		rl = &roomLog{byID: make(map[string]*domain.Message)}
		l.rooms[room] = rl
	}

	id := d.ProposedID
	if ValidateMessageID(id) != nil || rl.byID[id] != nil {
		id = l.uniqueID(rl)
	}

	kind := d.Kind
	if kind == "" {
		kind = domain.KindText
	}
	msg := &domain.Message{
		ID:        id,
		RoomID:    room,
		Author:    d.Author,
		System:    d.System,
		Kind:      kind,
		Text:      d.Text,
		CreatedAt: l.now(),
	}
	if d.Attachment != nil {
		a := *d.Attachment
		msg.Attachment = &a
	}

	rl.order = append(rl.order, id)
	rl.byID[id] = msg
	return msg.Clone()
}

func (l *MessageLog) uniqueID(rl *roomLog) string {
	for {
		id := l.newID()
		if rl.byID[id] == nil {
			return id
		}
	}
}

// Get returns a copy of a message.
func (l *MessageLog) Get(room, id string) (domain.Message, bool) {
	msg := l.lookup(room, id)
	if msg == nil {
		return domain.Message{}, false
	}
	return msg.Clone(), true
}

func (l *MessageLog) lookup(room, id string) *domain.Message {
	rl, ok := l.rooms[room]
	if !ok {
		return nil
	}
	return rl.byID[id]
}

// CanModify reports whether requester may edit or delete msg.
func CanModify(msg domain.Message, requester string) bool {
	return !msg.System && msg.Author == requester
}

// Edit replaces the text of a text message authored by requester.
func (l *MessageLog) Edit(room, id, requester, text string) (domain.Message, bool) {
	msg := l.lookup(room, id)
	if msg == nil || !CanModify(*msg, requester) || msg.Kind != domain.KindText {
		return domain.Message{}, false
	}
	now := l.now()
	msg.Text = text
	msg.Edited = true
	msg.EditedAt = &now
	return msg.Clone(), true
}

// Delete removes a message authored by requester.
func (l *MessageLog) Delete(room, id, requester string) bool {
	msg := l.lookup(room, id)
	if msg == nil || !CanModify(*msg, requester) {
		return false
	}
	rl := l.rooms[room]
	delete(rl.byID, id)
	for i, v := range rl.order {
		if v == id {
			rl.order = append(rl.order[:i], rl.order[i+1:]...)
			break
		}
	}
	return true
}

// MarkPinned flags a message as pinned. Pinning is not exclusive.
func (l *MessageLog) MarkPinned(room, id string) (domain.Message, bool) {
	msg := l.lookup(room, id)
	if msg == nil {
		return domain.Message{}, false
	}
	msg.Pinned = true
	return msg.Clone(), true
}

// MarkSeen records viewer in the message's SeenBy set. first is false when
// viewer had already been recorded.
func (l *MessageLog) MarkSeen(room, id, viewer string) (msg domain.Message, first, ok bool) {
	m := l.lookup(room, id)
	if m == nil {
		return domain.Message{}, false, false
	}
	if m.HasBeenSeenBy(viewer) {
		return m.Clone(), false, true
	}
	m.SeenBy = append(m.SeenBy, viewer)
	return m.Clone(), true, true
}

// History returns a snapshot of the room's messages, oldest first.
func (l *MessageLog) History(room string) []domain.Message {
	rl, ok := l.rooms[room]
	if !ok {
		return []domain.Message{}
	}
	out := make([]domain.Message, 0, len(rl.order))
	for _, id := range rl.order {
		out = append(out, rl.byID[id].Clone())
	}
	return out
}

// Len returns the number of messages stored for room.
func (l *MessageLog) Len(room string) int {
	rl, ok := l.rooms[room]
	if !ok {
		return 0
	}
	return len(rl.order)
}

// Drop discards the history of a room that has been torn down.
func (l *MessageLog) Drop(room string) {
	delete(l.rooms, room)
}
