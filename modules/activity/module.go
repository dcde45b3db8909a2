package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/chat-relay-demo/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ActivityModule consumes chat events and keeps per-room counters.
type ActivityModule struct {
	store *Store
}

var _ mono.Module = (*ActivityModule)(nil)
var _ mono.EventConsumerModule = (*ActivityModule)(nil)
var _ mono.ServiceProviderModule = (*ActivityModule)(nil)
var _ mono.HealthCheckableModule = (*ActivityModule)(nil)

// NewModule creates a new ActivityModule.
func NewModule() *ActivityModule {
	return &ActivityModule{store: NewStore()}
}

// Name returns the module name.
func (m *ActivityModule) Name() string {
	return "activity"
}

// RegisterEventConsumers subscribes to every chat activity event.
func (m *ActivityModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.MessagePostedV1, m.handleMessagePosted, m); err != nil {
		return fmt.Errorf("failed to register MessagePosted consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.MessageUpdatedV1, m.handleMessageUpdated, m); err != nil {
		return fmt.Errorf("failed to register MessageUpdated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.UserJoinedV1, m.handleUserJoined, m); err != nil {
		return fmt.Errorf("failed to register UserJoined consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.UserLeftV1, m.handleUserLeft, m); err != nil {
		return fmt.Errorf("failed to register UserLeft consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.RoomOpenedV1, m.handleRoomOpened, m); err != nil {
		return fmt.Errorf("failed to register RoomOpened consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.RoomClosedV1, m.handleRoomClosed, m); err != nil {
		return fmt.Errorf("failed to register RoomClosed consumer: %w", err)
	}

	log.Printf("[activity] Registered event consumers: MessagePosted, MessageUpdated, UserJoined, UserLeft, RoomOpened, RoomClosed")
	return nil
}

func (m *ActivityModule) handleMessagePosted(_ context.Context, event events.MessagePostedEvent, _ *mono.Msg) error {
	m.store.RecordPosted(event)
	return nil
}

func (m *ActivityModule) handleMessageUpdated(_ context.Context, event events.MessageUpdatedEvent, _ *mono.Msg) error {
	m.store.RecordUpdated(event)
	return nil
}

func (m *ActivityModule) handleUserJoined(_ context.Context, event events.UserJoinedEvent, _ *mono.Msg) error {
	log.Printf("[activity] %s joined %s", event.Username, event.RoomID)
	m.store.RecordJoined(event)
	return nil
}

func (m *ActivityModule) handleUserLeft(_ context.Context, event events.UserLeftEvent, _ *mono.Msg) error {
	log.Printf("[activity] %s left %s", event.Username, event.RoomID)
	m.store.RecordLeft(event)
	return nil
}

func (m *ActivityModule) handleRoomOpened(_ context.Context, event events.RoomLifecycleEvent, _ *mono.Msg) error {
	log.Printf("[activity] Room opened: %s", event.RoomID)
	m.store.RecordOpened(event)
	return nil
}

func (m *ActivityModule) handleRoomClosed(_ context.Context, event events.RoomLifecycleEvent, _ *mono.Msg) error {
	log.Printf("[activity] Room closed: %s", event.RoomID)
	m.store.RecordClosed(event)
	return nil
}

// RegisterServices registers request-reply services in the service container.
func (m *ActivityModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceGetSummary,
		json.Unmarshal,
		json.Marshal,
		m.handleGetSummary,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetSummary, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceGetRoomActivity,
		json.Unmarshal,
		json.Marshal,
		m.handleGetRoomActivity,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetRoomActivity, err)
	}

	log.Printf("[activity] Registered services: %s, %s", ServiceGetSummary, ServiceGetRoomActivity)
	return nil
}

func (m *ActivityModule) handleGetSummary(_ context.Context, _ GetSummaryRequest, _ *mono.Msg) (GetSummaryResponse, error) {
	return GetSummaryResponse{Summary: m.store.Summary()}, nil
}

func (m *ActivityModule) handleGetRoomActivity(_ context.Context, req GetRoomActivityRequest, _ *mono.Msg) (GetRoomActivityResponse, error) {
	a, ok := m.store.Room(req.RoomID)
	return GetRoomActivityResponse{Found: ok, Activity: a}, nil
}

// Health returns the health status.
func (m *ActivityModule) Health(_ context.Context) mono.HealthStatus {
	sum := m.store.Summary()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"tracked_rooms": len(sum.Rooms),
			"active_rooms":  sum.ActiveRooms,
		},
	}
}

// Start starts the module.
func (m *ActivityModule) Start(_ context.Context) error {
	log.Println("[activity] Module started - listening for chat events")
	return nil
}

// Stop logs the final totals.
func (m *ActivityModule) Stop(_ context.Context) error {
	sum := m.store.Summary()
	log.Printf("[activity] Module stopped - %d messages across %d rooms", sum.TotalMessages, len(sum.Rooms))
	return nil
}

// Store returns the activity store.
func (m *ActivityModule) Store() *Store {
	return m.store
}
