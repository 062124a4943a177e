package config

import (
	"testing"
	"time"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("API_URL", "")
	t.Setenv("SOCKET_URL", "")
	t.Setenv("REALTIME_TRANSPORT", "")
	t.Setenv("REALTIME_READ_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Realtime.ReadTimeout(); got != time.Minute {
		t.Errorf("read timeout = %v, want 1m", got)
	}
	if cfg.API.BaseURL != "http://localhost:3000/api" {
		t.Errorf("API base = %q", cfg.API.BaseURL)
	}
	if cfg.Realtime.URL != "http://localhost:3000" {
		t.Errorf("socket url = %q", cfg.Realtime.URL)
	}
	if cfg.Realtime.ReconnectAttempts != 5 {
		t.Errorf("reconnect attempts = %d, want 5", cfg.Realtime.ReconnectAttempts)
	}
	if got := cfg.Realtime.ReconnectDelay(); got != 3*time.Second {
		t.Errorf("reconnect delay = %v, want 3s", got)
	}
	endpoint, err := cfg.Realtime.SocketEndpoint()
	if err != nil {
		t.Fatalf("SocketEndpoint: %v", err)
	}
	if endpoint != "ws://localhost:3000/ws" {
		t.Errorf("endpoint = %q", endpoint)
	}
}

func TestLoadProductionResolvesAgainstOrigin(t *testing.T) {
	t.Setenv("APP_ENV", EnvProduction)
	t.Setenv("APP_ORIGIN", "https://board.example.com")
	t.Setenv("API_URL", "")
	t.Setenv("SOCKET_URL", "")
	t.Setenv("REALTIME_TRANSPORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "https://board.example.com/api" {
		t.Errorf("API base = %q", cfg.API.BaseURL)
	}
	endpoint, err := cfg.Realtime.SocketEndpoint()
	if err != nil {
		t.Fatalf("SocketEndpoint: %v", err)
	}
	if endpoint != "wss://board.example.com/ws" {
		t.Errorf("endpoint = %q", endpoint)
	}
}

func TestLoadProductionWithoutOrigin(t *testing.T) {
	t.Setenv("APP_ENV", EnvProduction)
	t.Setenv("APP_ORIGIN", "")
	t.Setenv("API_URL", "")
	t.Setenv("SOCKET_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for relative production urls without APP_ORIGIN")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("API_URL", "http://tickets.internal:8080/api/")
	t.Setenv("SOCKET_URL", "https://tickets.internal")
	t.Setenv("REALTIME_TRANSPORT", "Redis")
	t.Setenv("REALTIME_RECONNECT_ATTEMPTS", "2")
	t.Setenv("REALTIME_RECONNECT_DELAY_MS", "250")
	t.Setenv("REALTIME_RESYNC_ON_RECONNECT", "false")
	t.Setenv("REALTIME_READ_TIMEOUT_SECONDS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://tickets.internal:8080/api" {
		t.Errorf("API base = %q", cfg.API.BaseURL)
	}
	if cfg.Realtime.Transport != TransportRedis {
		t.Errorf("transport = %q", cfg.Realtime.Transport)
	}
	if cfg.Realtime.ReconnectAttempts != 2 || cfg.Realtime.ReconnectDelay() != 250*time.Millisecond {
		t.Errorf("reconnect = %d/%v", cfg.Realtime.ReconnectAttempts, cfg.Realtime.ReconnectDelay())
	}
	if cfg.Realtime.ResyncOnReconnect {
		t.Error("resync should be disabled")
	}
	if cfg.Realtime.ReadTimeout() != 0 {
		t.Errorf("read timeout = %v, want disabled", cfg.Realtime.ReadTimeout())
	}
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("REALTIME_TRANSPORT", "carrier-pigeon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}
