package chat

import (
	"context"
	"fmt"

	"github.com/example/chat-relay-demo/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module hosts the relay and exposes read-only views of it as request-reply
// services. Committed activities are emitted on the EventBus.
type Module struct {
	relay     *Relay
	publisher *EventBusPublisher
	logger    types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the chat module delivering through transport.
func NewModule(transport Transport, logger types.Logger) (*Module, error) {
	if transport == nil {
		return nil, fmt.Errorf("chat: transport is nil")
	}
	publisher := NewEventBusPublisher(nil, logger)
	relay, err := NewRelay(transport, logger, WithPublisher(publisher))
	if err != nil {
		return nil, err
	}
	return &Module{
		relay:     relay,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.publisher.bus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessagePostedV1.ToBase(),
		events.MessageUpdatedV1.ToBase(),
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
		events.RoomOpenedV1.ToBase(),
		events.RoomClosedV1.ToBase(),
	}
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Chat module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Chat module stopped",
		"connections", m.relay.ConnectionCount(),
		"rooms", len(m.relay.Rooms()))
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections":  m.relay.ConnectionCount(),
			"active_rooms": len(m.relay.Rooms()),
		},
	}
}

// Relay returns the relay for the socket layer to drive.
func (m *Module) Relay() *Relay {
	return m.relay
}
