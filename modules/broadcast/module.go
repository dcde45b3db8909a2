package broadcast

import (
	"context"
	"sync/atomic"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// BroadcastModule owns the outbound hub that the chat relay delivers through.
// The hub is created eagerly so the relay and the socket layer can be wired
// before the application starts.
type BroadcastModule struct {
	hub     *Hub
	logger  types.Logger
	running atomic.Bool
	stop    context.CancelFunc
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule(moduleLogger types.Logger) *BroadcastModule {
	return &BroadcastModule{
		hub:    NewHub(),
		logger: moduleLogger,
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start runs the hub until Stop.
func (m *BroadcastModule) Start(_ context.Context) error {
	if m.running.Load() {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stop = cancel
	m.running.Store(true)
	m.hub.Start(ctx)
	m.logger.Info("Broadcast hub running")
	return nil
}

// Stop closes every client socket and waits for the hub to exit.
func (m *BroadcastModule) Stop(_ context.Context) error {
	if !m.running.CompareAndSwap(true, false) {
		return nil
	}
	stats := m.hub.Stats()
	m.stop()
	m.hub.Wait()
	m.logger.Info("Broadcast hub stopped",
		"clients", stats.Clients,
		"delivered", stats.Delivered,
		"evicted", stats.Evicted)
	return nil
}

// Health reports the hub counters. The module is unhealthy while the hub is
// not running.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	stats := m.hub.Stats()
	status := mono.HealthStatus{
		Healthy: m.running.Load(),
		Message: "operational",
		Details: map[string]any{
			"connected_clients": stats.Clients,
			"frames_delivered":  stats.Delivered,
			"evicted_clients":   stats.Evicted,
		},
	}
	if !status.Healthy {
		status.Message = "hub stopped"
	}
	return status
}

// GetHub returns the hub for the chat relay and the socket layer.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}
