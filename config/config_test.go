package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "SEND_BUFFER", "EVENTS_PER_SECOND", "PING_INTERVAL", "PONG_WAIT", "MAX_FRAME_BYTES"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want %q", cfg.Port, "3000")
	}
	if cfg.SendBuffer != 256 {
		t.Errorf("SendBuffer = %d, want 256", cfg.SendBuffer)
	}
	if cfg.EventsPerSecond != 10 {
		t.Errorf("EventsPerSecond = %g, want 10", cfg.EventsPerSecond)
	}
	if cfg.MaxFrameBytes != 10<<20 {
		t.Errorf("MaxFrameBytes = %d, want %d", cfg.MaxFrameBytes, 10<<20)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SEND_BUFFER", "16")
	t.Setenv("EVENTS_PER_SECOND", "2.5")
	t.Setenv("PING_INTERVAL", "5s")
	t.Setenv("PONG_WAIT", "12s")

	cfg := Load()
	if cfg.Port != "8080" || cfg.SendBuffer != 16 || cfg.EventsPerSecond != 2.5 {
		t.Errorf("Load() = %+v", cfg)
	}
	if cfg.PingInterval != 5*time.Second || cfg.PongWait != 12*time.Second {
		t.Errorf("keepalive = %s/%s, want 5s/12s", cfg.PingInterval, cfg.PongWait)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SEND_BUFFER", "lots")
	t.Setenv("EVENT_BURST", "-3")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")
	t.Setenv("PING_INTERVAL", "30s")
	t.Setenv("PONG_WAIT", "10s")

	cfg := Load()
	if cfg.SendBuffer != 256 {
		t.Errorf("SendBuffer = %d, want default 256", cfg.SendBuffer)
	}
	if cfg.EventBurst != 20 {
		t.Errorf("EventBurst = %d, want default 20", cfg.EventBurst)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %s, want 30s", cfg.ShutdownTimeout)
	}
	if cfg.PongWait != time.Minute {
		t.Errorf("PongWait = %s, want it raised to twice the ping interval", cfg.PongWait)
	}
}
