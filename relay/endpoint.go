package relay

// Relay describes one relay server endpoint.
type Relay struct {
	// Socket is the WebSocket URL of the relay's channel endpoint.
	Socket string
	// Priority orders relays when more than one is known; lower is
	// preferred.
	Priority int
}

// Selector supplies the relay the client should connect to. The
// application's relay-selection state (user preference, latency probes)
// lives behind this interface; the address it returns is only consulted
// while no session is active.
type Selector interface {
	GetRelay() Relay
}

// knownRelays are the built-in public relays, in preference order.
var knownRelays = []Relay{
	{Socket: "wss://mesh-relay-in-ec2.herokuapp.com/socket/websocket", Priority: 0},
	{Socket: "wss://emberclear-relay.fly.dev/socket/websocket", Priority: 1},
}

// DefaultRelay returns the preferred built-in relay.
func DefaultRelay() Relay {
	return knownRelays[0]
}

// KnownRelays returns a copy of the built-in relay list.
func KnownRelays() []Relay {
	out := make([]Relay, len(knownRelays))
	copy(out, knownRelays)
	return out
}

// StaticSelector is a Selector that always returns the same relay.
type StaticSelector struct {
	Relay Relay
}

// GetRelay implements Selector.
func (s StaticSelector) GetRelay() Relay {
	return s.Relay
}
