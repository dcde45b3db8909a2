package chat

import (
	"context"
	"time"

	domain "github.com/example/chat-relay-demo/domain/chat"
	"github.com/example/chat-relay-demo/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// ActivityType names a committed relay state change.
type ActivityType string

const (
	ActivityJoined         ActivityType = "joined"
	ActivityLeft           ActivityType = "left"
	ActivityRoomOpened     ActivityType = "room_opened"
	ActivityRoomClosed     ActivityType = "room_closed"
	ActivityMessagePosted  ActivityType = "message_posted"
	ActivityMessageEdited  ActivityType = "message_edited"
	ActivityMessageDeleted ActivityType = "message_deleted"
	ActivityMessagePinned  ActivityType = "message_pinned"
	ActivityMessageSeen    ActivityType = "message_seen"
)

// Activity describes a state change after it has been committed.
type Activity struct {
	Type         ActivityType
	RoomID       string
	ConnectionID string
	User         string
	MessageID    string
	Kind         domain.Kind
	System       bool
	At           time.Time
}

// Publisher receives activities once the relay has released its lock.
type Publisher interface {
	Publish(ctx context.Context, a Activity)
}

func postedActivity(m domain.Message) Activity {
	return Activity{
		Type:      ActivityMessagePosted,
		RoomID:    m.RoomID,
		User:      m.Author,
		MessageID: m.ID,
		Kind:      m.Kind,
		System:    m.System,
		At:        m.CreatedAt,
	}
}

func updatedActivity(t ActivityType, room, messageID, actor string, at time.Time) Activity {
	return Activity{Type: t, RoomID: room, MessageID: messageID, User: actor, At: at}
}

// EventBusPublisher publishes activities as chat domain events.
type EventBusPublisher struct {
	bus    mono.EventBus
	logger types.Logger
}

// NewEventBusPublisher creates a publisher on bus.
func NewEventBusPublisher(bus mono.EventBus, logger types.Logger) *EventBusPublisher {
	return &EventBusPublisher{bus: bus, logger: logger}
}

// Publish emits the event matching a. Failures are logged and swallowed;
// subscribers never affect the relay.
func (p *EventBusPublisher) Publish(_ context.Context, a Activity) {
	if p.bus == nil {
		return
	}
	var err error
	switch a.Type {
	case ActivityJoined:
		err = events.UserJoinedV1.Publish(p.bus, events.UserJoinedEvent{
			RoomID: a.RoomID, ConnectionID: a.ConnectionID, Username: a.User, Timestamp: a.At,
		}, nil)
	case ActivityLeft:
		err = events.UserLeftV1.Publish(p.bus, events.UserLeftEvent{
			RoomID: a.RoomID, ConnectionID: a.ConnectionID, Username: a.User, Timestamp: a.At,
		}, nil)
	case ActivityRoomOpened:
		err = events.RoomOpenedV1.Publish(p.bus, events.RoomLifecycleEvent{RoomID: a.RoomID, Timestamp: a.At}, nil)
	case ActivityRoomClosed:
		err = events.RoomClosedV1.Publish(p.bus, events.RoomLifecycleEvent{RoomID: a.RoomID, Timestamp: a.At}, nil)
	case ActivityMessagePosted:
		err = events.MessagePostedV1.Publish(p.bus, events.MessagePostedEvent{
			MessageID: a.MessageID, RoomID: a.RoomID, Author: a.User, Kind: string(a.Kind), System: a.System, Timestamp: a.At,
		}, nil)
	case ActivityMessageEdited, ActivityMessageDeleted, ActivityMessagePinned, ActivityMessageSeen:
		err = events.MessageUpdatedV1.Publish(p.bus, events.MessageUpdatedEvent{
			MessageID: a.MessageID, RoomID: a.RoomID, Actor: a.User, Action: updateAction(a.Type), Timestamp: a.At,
		}, nil)
	}
	if err != nil {
		p.logger.Warn("Failed to publish chat event", "activity", a.Type, "room", a.RoomID, "error", err)
	}
}

func updateAction(t ActivityType) string {
	switch t {
	case ActivityMessageEdited:
		return events.ActionEdited
	case ActivityMessageDeleted:
		return events.ActionDeleted
	case ActivityMessagePinned:
		return events.ActionPinned
	default:
		return events.ActionSeen
	}
}
