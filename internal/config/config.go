package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	DefaultReconnectDelay   = 2 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
)

type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	ServerURL string
	// StateDir holds the encrypted local state (identity).
	StateDir string
	// StatePassword unlocks the local state store.
	StatePassword string

	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func NewConfig(serverURL, stateDir, statePassword string) (*Config, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("server URL cannot be empty")
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("server URL scheme must be ws or wss, got %q", u.Scheme)
	}
	if stateDir == "" {
		return nil, fmt.Errorf("state directory cannot be empty")
	}

	return &Config{
		ServerURL:        serverURL,
		StateDir:         stateDir,
		StatePassword:    statePassword,
		ReconnectDelay:   DefaultReconnectDelay,
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
	}, nil
}
