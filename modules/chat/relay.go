package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/example/chat-relay-demo/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	nanoid "github.com/jaevor/go-nanoid"
)

// MessageIDLength is the length of generated message ids.
const MessageIDLength = 21

// Transport hands envelopes to live connections. Deliver is called while the
// relay holds its lock, so implementations must enqueue and return without
// blocking on network I/O.
type Transport interface {
	Deliver(connIDs []string, env Envelope)
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RelayOption {
	return func(r *Relay) { r.now = now }
}

// WithIDGenerator replaces the nanoid message id generator.
func WithIDGenerator(gen func() string) RelayOption {
	return func(r *Relay) { r.newID = gen }
}

// WithPublisher sets the sink for committed activities.
func WithPublisher(p Publisher) RelayOption {
	return func(r *Relay) { r.publisher = p }
}

// Relay turns inbound client events into registry and log changes and fans
// the resulting events out to the right audience.
//
// A single mutex covers the registry, the log and every Deliver call, so the
// events of one room reach every member in the order they were committed.
type Relay struct {
	mu        sync.Mutex
	registry  *Registry
	log       *MessageLog
	transport Transport
	publisher Publisher
	logger    types.Logger
	now       func() time.Time
	newID     func() string
}

// NewRelay creates a relay that delivers through transport.
func NewRelay(transport Transport, logger types.Logger, opts ...RelayOption) (*Relay, error) {
	r := &Relay{
		transport: transport,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.newID == nil {
		gen, err := nanoid.Standard(MessageIDLength)
		if err != nil {
			return nil, fmt.Errorf("failed to create message id generator: %w", err)
		}
		r.newID = gen
	}
	r.registry = NewRegistry(r.now)
	r.log = NewMessageLog(r.newID, r.now)
	return r, nil
}

// Connect registers a new socket with the fallback identity.
func (r *Relay) Connect(connID string) {
	r.mu.Lock()
	r.registry.Connect(connID)
	r.mu.Unlock()
	r.logger.Debug("Connection registered", "connID", connID)
}

// Disconnect runs the leave cascade for connID and forgets it.
func (r *Relay) Disconnect(ctx context.Context, connID string) {
	r.mu.Lock()
	conn, t, ok := r.registry.Disconnect(connID)
	var acts []Activity
	if ok && conn.Joined() {
		acts = r.afterLeaveLocked(conn, t)
	}
	r.mu.Unlock()

	if ok {
		r.logger.Debug("Connection removed", "connID", connID, "room", conn.RoomID)
	}
	r.publish(ctx, acts)
}

// afterLeaveLocked announces a departure to the rest of the room, or drops
// the room's log when the departing connection was the last member.
func (r *Relay) afterLeaveLocked(conn Connection, t RoomTransition) []Activity {
	now := r.now()
	room := conn.RoomID
	acts := []Activity{{
		Type:         ActivityLeft,
		RoomID:       room,
		ConnectionID: conn.ID,
		User:         conn.Name,
		At:           now,
	}}

	if t == RoomClosed {
		r.log.Drop(room)
		r.logger.Info("Room closed", "room", room)
		return append(acts, Activity{Type: ActivityRoomClosed, RoomID: room, At: now})
	}

	audience := r.registry.ConnectionsIn(room)
	left := r.log.Append(room, Draft{
		Author: domain.SystemAuthor,
		System: true,
		Text:   fmt.Sprintf("%s left the room", conn.Name),
	})
	r.transport.Deliver(audience, Envelope{Event: EventMessage, Data: NewMessageView(left)})
	r.transport.Deliver(audience, Envelope{Event: EventTyping, Data: TypingNotice{}})
	r.notifyMembershipLocked(room)
	return append(acts, postedActivity(left))
}

// notifyMembershipLocked sends the current member list to everyone in room.
func (r *Relay) notifyMembershipLocked(room string) {
	names := r.registry.MembersOf(room)
	users := make([]UserView, len(names))
	for i, n := range names {
		users[i] = UserView{Name: n}
	}
	r.transport.Deliver(r.registry.ConnectionsIn(room), Envelope{
		Event: EventRoomUsers,
		Data:  RoomUsersPayload{Room: room, Users: users},
	})
}

// Join binds connID to a room, leaving its previous room first.
func (r *Relay) Join(ctx context.Context, connID string, p JoinRoomPayload) bool {
	name := NormalizeUsername(p.Name)
	room := NormalizeRoom(p.Room)

	r.mu.Lock()
	conn, ok := r.registry.Lookup(connID)
	if !ok {
		r.mu.Unlock()
		return false
	}

	var acts []Activity
	if conn.Joined() {
		_, t, _ := r.registry.Leave(connID)
		acts = append(acts, r.afterLeaveLocked(conn, t)...)
	}

	opened, _, _ := r.registry.Join(connID, name, room)
	now := r.now()
	if opened == RoomOpened {
		acts = append(acts, Activity{Type: ActivityRoomOpened, RoomID: room, At: now})
	}
	acts = append(acts, Activity{Type: ActivityJoined, RoomID: room, ConnectionID: connID, User: name, At: now})

	// The snapshot is taken before the join announcement is appended, so
	// the joiner sees every earlier message exactly once.
	snapshot := r.log.History(room)

	welcome := domain.Message{
		ID:        r.newID(),
		RoomID:    room,
		Author:    domain.SystemAuthor,
		System:    true,
		Kind:      domain.KindText,
		Text:      fmt.Sprintf("Welcome to %s, %s!", room, name),
		CreatedAt: now,
	}
	self := []string{connID}
	r.transport.Deliver(self, Envelope{Event: EventMessage, Data: NewMessageView(welcome)})

	joined := r.log.Append(room, Draft{
		Author: domain.SystemAuthor,
		System: true,
		Text:   fmt.Sprintf("%s joined the room", name),
	})
	r.transport.Deliver(r.registry.ConnectionsInExcept(room, connID), Envelope{Event: EventMessage, Data: NewMessageView(joined)})
	acts = append(acts, postedActivity(joined))

	r.transport.Deliver(self, Envelope{Event: EventMessageHistory, Data: HistoryPayload{Room: room, Messages: views(snapshot)}})
	r.notifyMembershipLocked(room)
	r.mu.Unlock()

	r.logger.Info("User joined room", "connID", connID, "user", name, "room", room)
	r.publish(ctx, acts)
	return true
}

// withJoined runs fn under the relay lock when connID is bound to a room and
// publishes the activities fn commits.
func (r *Relay) withJoined(ctx context.Context, connID string, fn func(conn Connection) ([]Activity, bool)) bool {
	r.mu.Lock()
	conn, ok := r.registry.Lookup(connID)
	if !ok || !conn.Joined() {
		r.mu.Unlock()
		return false
	}
	acts, ok := fn(conn)
	r.mu.Unlock()

	r.publish(ctx, acts)
	return ok
}

// ChatMessage appends a text message and sends it to the whole room.
func (r *Relay) ChatMessage(ctx context.Context, connID string, p ChatMessagePayload) bool {
	if err := ValidateMessage(p.Text); err != nil {
		r.logger.Debug("Dropped chat message", "connID", connID, "error", err)
		return false
	}
	return r.withJoined(ctx, connID, func(conn Connection) ([]Activity, bool) {
		msg := r.log.Append(conn.RoomID, Draft{
			ProposedID: p.ID,
			Author:     conn.Name,
			Kind:       domain.KindText,
			Text:       p.Text,
		})
		r.transport.Deliver(r.registry.ConnectionsIn(conn.RoomID), Envelope{Event: EventMessage, Data: NewMessageView(msg)})
		return []Activity{postedActivity(msg)}, true
	})
}

// FileUpload appends a file message.
func (r *Relay) FileUpload(ctx context.Context, connID string, p FilePayload) bool {
	return r.postAttachment(ctx, connID, domain.KindFile, p)
}

// AudioMessage appends an audio message.
func (r *Relay) AudioMessage(ctx context.Context, connID string, p FilePayload) bool {
	return r.postAttachment(ctx, connID, domain.KindAudio, p)
}

func (r *Relay) postAttachment(ctx context.Context, connID string, kind domain.Kind, p FilePayload) bool {
	att := p.Attachment()
	if err := ValidateAttachment(att); err != nil {
		r.logger.Debug("Dropped attachment", "connID", connID, "kind", kind, "error", err)
		return false
	}
	return r.withJoined(ctx, connID, func(conn Connection) ([]Activity, bool) {
		msg := r.log.Append(conn.RoomID, Draft{
			Author:     conn.Name,
			Kind:       kind,
			Attachment: &att,
		})
		r.transport.Deliver(r.registry.ConnectionsIn(conn.RoomID), Envelope{Event: EventMessage, Data: NewMessageView(msg)})
		return []Activity{postedActivity(msg)}, true
	})
}

// Typing relays a typing indicator to the rest of the room. Nothing is
// stored.
func (r *Relay) Typing(ctx context.Context, connID string, p TypingPayload) bool {
	return r.withJoined(ctx, connID, func(conn Connection) ([]Activity, bool) {
		notice := TypingNotice{}
		if p.IsTyping {
			notice.Text = conn.Name + " is typing..."
		}
		r.transport.Deliver(r.registry.ConnectionsInExcept(conn.RoomID, conn.ID), Envelope{Event: EventTyping, Data: notice})
		return nil, true
	})
}

// AddReaction relays a reaction on an existing message to the room. Nothing
// is stored.
func (r *Relay) AddReaction(ctx context.Context, connID string, p ReactionPayload) bool {
	if err := ValidateEmoji(p.Emoji); err != nil {
		return false
	}
	return r.withJoined(ctx, connID, func(conn Connection) ([]Activity, bool) {
		if _, ok := r.log.Get(conn.RoomID, p.MessageID); !ok {
			return nil, false
		}
		r.transport.Deliver(r.registry.ConnectionsIn(conn.RoomID), Envelope{
			Event: EventReactionAdded,
			Data:  ReactionAddedPayload{MessageID: p.MessageID, Emoji: p.Emoji, User: conn.Name},
		})
		return nil, true
	})
}

// EditMessage replaces the text of the requester's own message.
func (r *Relay) EditMessage(ctx context.Context, connID string, p EditMessagePayload) bool {
	if err := ValidateMessage(p.NewText); err != nil {
		return false
	}
	return r.withJoined(ctx, connID, func(conn Connection) ([]Activity, bool) {
		msg, ok := r.log.Edit(conn.RoomID, p.MessageID, conn.Name, p.NewText)
		if !ok {
			r.logger.Debug("Rejected edit", "connID", connID, "messageID", p.MessageID)
			return nil, false
		}
		r.transport.Deliver(r.registry.ConnectionsIn(conn.RoomID), Envelope{
			Event: EventMessageEdited,
			Data:  MessageEditedPayload{MessageID: msg.ID, NewText: msg.Text},
		})
		return []Activity{updatedActivity(ActivityMessageEdited, msg.RoomID, msg.ID, conn.Name, r.now())}, true
	})
}

// DeleteMessage removes the requester's own message.
func (r *Relay) DeleteMessage(ctx context.Context, connID string, p MessageRefPayload) bool {
	return r.withJoined(ctx, connID, func(conn Connection) ([]Activity, bool) {
		if !r.log.Delete(conn.RoomID, p.MessageID, conn.Name) {
			r.logger.Debug("Rejected delete", "connID", connID, "messageID", p.MessageID)
			return nil, false
		}
		r.transport.Deliver(r.registry.ConnectionsIn(conn.RoomID), Envelope{
			Event: EventMessageDeleted,
			Data:  MessageDeletedPayload{MessageID: p.MessageID},
		})
		return []Activity{updatedActivity(ActivityMessageDeleted, conn.RoomID, p.MessageID, conn.Name, r.now())}, true
	})
}

// PinMessage flags a message as pinned and shows it to the room.
func (r *Relay) PinMessage(ctx context.Context, connID string, p MessageRefPayload) bool {
	return r.withJoined(ctx, connID, func(conn Connection) ([]Activity, bool) {
		msg, ok := r.log.MarkPinned(conn.RoomID, p.MessageID)
		if !ok {
			return nil, false
		}
		r.transport.Deliver(r.registry.ConnectionsIn(conn.RoomID), Envelope{
			Event: EventMessagePinned,
			Data:  MessagePinnedPayload{Message: NewMessageView(msg)},
		})
		return []Activity{updatedActivity(ActivityMessagePinned, msg.RoomID, msg.ID, conn.Name, r.now())}, true
	})
}

// SeenMessage records a read receipt and tells only the author's
// connections in the room.
func (r *Relay) SeenMessage(ctx context.Context, connID string, p MessageRefPayload) bool {
	return r.withJoined(ctx, connID, func(conn Connection) ([]Activity, bool) {
		msg, ok := r.log.Get(conn.RoomID, p.MessageID)
		if !ok || msg.System || msg.Author == conn.Name {
			return nil, false
		}
		if _, first, _ := r.log.MarkSeen(conn.RoomID, msg.ID, conn.Name); !first {
			return nil, false
		}
		if authors := r.registry.ConnectionsNamed(conn.RoomID, msg.Author); len(authors) > 0 {
			r.transport.Deliver(authors, Envelope{
				Event: EventMessageSeen,
				Data:  MessageSeenPayload{MessageID: msg.ID, By: conn.Name},
			})
		}
		return []Activity{updatedActivity(ActivityMessageSeen, msg.RoomID, msg.ID, conn.Name, r.now())}, true
	})
}

// Dispatch decodes an inbound event and routes it to its handler. A non-nil
// error only describes why the event was dropped; nothing has been emitted.
func (r *Relay) Dispatch(ctx context.Context, connID string, env InboundEnvelope) error {
	switch env.Event {
	case EventJoinRoom:
		var p JoinRoomPayload
		if err := decodePayload(env.Data, &p); err != nil {
			r.logger.Debug("Join payload unreadable, using defaults", "connID", connID, "error", err)
			p = JoinRoomPayload{}
		}
		r.Join(ctx, connID, p)
	case EventChatMessage:
		var p ChatMessagePayload
		if err := decodePayload(env.Data, &p); err != nil {
			return err
		}
		r.ChatMessage(ctx, connID, p)
	case EventTyping:
		var p TypingPayload
		if err := decodePayload(env.Data, &p); err != nil {
			return err
		}
		r.Typing(ctx, connID, p)
	case EventFileUpload, EventAudioMessage:
		var p FilePayload
		if err := decodePayload(env.Data, &p); err != nil {
			return err
		}
		if env.Event == EventFileUpload {
			r.FileUpload(ctx, connID, p)
		} else {
			r.AudioMessage(ctx, connID, p)
		}
	case EventEditMessage:
		var p EditMessagePayload
		if err := decodePayload(env.Data, &p); err != nil {
			return err
		}
		r.EditMessage(ctx, connID, p)
	case EventDeleteMessage, EventPinMessage, EventSeenMessage:
		var p MessageRefPayload
		if err := decodePayload(env.Data, &p); err != nil {
			return err
		}
		switch env.Event {
		case EventDeleteMessage:
			r.DeleteMessage(ctx, connID, p)
		case EventPinMessage:
			r.PinMessage(ctx, connID, p)
		default:
			r.SeenMessage(ctx, connID, p)
		}
	case EventAddReaction:
		var p ReactionPayload
		if err := decodePayload(env.Data, &p); err != nil {
			return err
		}
		r.AddReaction(ctx, connID, p)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return nil
}

// Lookup returns the identity bound to connID.
func (r *Relay) Lookup(connID string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.Lookup(connID)
}

// MembersOf returns the distinct display names in room.
func (r *Relay) MembersOf(room string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.MembersOf(room)
}

// History returns up to limit of the newest messages in room, oldest first.
// A non-positive limit returns everything.
func (r *Relay) History(room string, limit int) []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.log.History(room)
	if limit > 0 && limit < len(all) {
		all = all[len(all)-limit:]
	}
	return all
}

// Room returns a summary of an active room.
func (r *Relay) Room(room string) (domain.RoomSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.registry.Room(room)
	if !ok {
		return domain.RoomSummary{}, false
	}
	return r.summaryLocked(info), true
}

// Rooms returns summaries of all active rooms sorted by id.
func (r *Relay) Rooms() []domain.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := r.registry.Rooms()
	out := make([]domain.RoomSummary, len(infos))
	for i, info := range infos {
		out[i] = r.summaryLocked(info)
	}
	return out
}

func (r *Relay) summaryLocked(info RoomInfo) domain.RoomSummary {
	return domain.RoomSummary{
		ID:          info.ID,
		Members:     info.Members,
		Connections: info.Connections,
		Messages:    r.log.Len(info.ID),
		CreatedAt:   info.CreatedAt,
	}
}

// ConnectionCount returns the number of registered connections.
func (r *Relay) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.Len()
}

func (r *Relay) publish(ctx context.Context, acts []Activity) {
	if r.publisher == nil {
		return
	}
	for _, a := range acts {
		r.publisher.Publish(ctx, a)
	}
}

func views(msgs []domain.Message) []MessageView {
	out := make([]MessageView, len(msgs))
	for i, m := range msgs {
		out[i] = NewMessageView(m)
	}
	return out
}
