package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// Message actions carried by MessageUpdatedEvent.
const (
	ActionEdited  = "edited"
	ActionDeleted = "deleted"
	ActionPinned  = "pinned"
	ActionSeen    = "seen"
)

// MessagePostedEvent is emitted when a message is appended to a room log.
type MessagePostedEvent struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	Author    string    `json:"author"`
	Kind      string    `json:"kind"`
	System    bool      `json:"system"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageUpdatedEvent is emitted when a logged message is edited, deleted,
// pinned or marked seen.
type MessageUpdatedEvent struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// UserJoinedEvent is emitted when a connection joins a room.
type UserJoinedEvent struct {
	RoomID       string    `json:"room_id"`
	ConnectionID string    `json:"connection_id"`
	Username     string    `json:"username"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserLeftEvent is emitted when a connection leaves a room.
type UserLeftEvent struct {
	RoomID       string    `json:"room_id"`
	ConnectionID string    `json:"connection_id"`
	Username     string    `json:"username"`
	Timestamp    time.Time `json:"timestamp"`
}

// RoomLifecycleEvent is emitted when a room is opened by its first member or
// closed after its last member left.
type RoomLifecycleEvent struct {
	RoomID    string    `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	MessagePostedV1 = helper.EventDefinition[MessagePostedEvent](
		"chat",
		"MessagePosted",
		"v1",
	)

	MessageUpdatedV1 = helper.EventDefinition[MessageUpdatedEvent](
		"chat",
		"MessageUpdated",
		"v1",
	)

	UserJoinedV1 = helper.EventDefinition[UserJoinedEvent](
		"chat",
		"UserJoined",
		"v1",
	)

	UserLeftV1 = helper.EventDefinition[UserLeftEvent](
		"chat",
		"UserLeft",
		"v1",
	)

	RoomOpenedV1 = helper.EventDefinition[RoomLifecycleEvent](
		"chat",
		"RoomOpened",
		"v1",
	)

	RoomClosedV1 = helper.EventDefinition[RoomLifecycleEvent](
		"chat",
		"RoomClosed",
		"v1",
	)
)
