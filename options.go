package emberclear

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/elgohr-update/emberclear/relay"
)

// Options contains configuration for creating a Client. Nil
// collaborators get safe defaults; only Identity is required before
// Connect can succeed.
type Options struct {
	// Identity supplies the key pair the self channel is derived from.
	Identity Identity
	// Relays selects the relay endpoint. Defaults to the built-in list.
	Relays relay.Selector
	// Processor receives inbound chat payloads.
	Processor MessageProcessor
	// Dispatcher is pinged after a successful connect.
	Dispatcher Dispatcher
	// Notifier renders user-facing connection status.
	Notifier Notifier

	// Timeout is the push timeout window.
	Timeout time.Duration
	// HeartbeatInterval is the socket keepalive interval.
	HeartbeatInterval time.Duration

	// AutoReconnect enables the supervised reconnect loop after a
	// non-explicit disconnect.
	AutoReconnect bool
	// ReconnectMinDelay is the first backoff delay.
	ReconnectMinDelay time.Duration
	// ReconnectMaxDelay caps the exponential backoff.
	ReconnectMaxDelay time.Duration
	// ReconnectMaxAttempts bounds the loop; 0 means unlimited.
	ReconnectMaxAttempts int

	// Clock drives all timers; tests install a mock.
	Clock clock.Clock
	// Dialer overrides the WebSocket dialer.
	Dialer *websocket.Dialer
}

// NewOptions creates Options with default settings.
func NewOptions() *Options {
	return &Options{
		Relays:            relay.StaticSelector{Relay: relay.DefaultRelay()},
		Timeout:           relay.DefaultTimeout,
		HeartbeatInterval: relay.DefaultHeartbeatInterval,
		ReconnectMinDelay: time.Second,
		ReconnectMaxDelay: 30 * time.Second,
	}
}
