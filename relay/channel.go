package relay

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// ChannelState represents the lifecycle state of a channel.
type ChannelState uint8

const (
	// ChannelCreated means the channel exists but join has not been issued.
	ChannelCreated ChannelState = iota
	// ChannelJoining means the join handshake is in flight.
	ChannelJoining
	// ChannelJoined means the relay confirmed the join.
	ChannelJoined
	// ChannelErrored means the relay signalled a channel fault.
	ChannelErrored
	// ChannelClosed means the channel has been torn down.
	ChannelClosed
)

// String returns the state name for logging.
func (s ChannelState) String() string {
	switch s {
	case ChannelCreated:
		return "created"
	case ChannelJoining:
		return "joining"
	case ChannelJoined:
		return "joined"
	case ChannelErrored:
		return "errored"
	case ChannelClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Channel is one named logical stream multiplexed over a Socket. It
// supports a join handshake, correlated pushes and durable event
// listeners. All lifecycle callbacks are invoked from the socket's read
// pump, one at a time.
type Channel struct {
	topic  string
	params interface{}
	socket *Socket

	mu        sync.Mutex
	state     ChannelState
	joinPush  *Push
	listeners map[string][]func(json.RawMessage)
	onError   func(json.RawMessage)
	onClose   func()
}

func newChannel(topic string, params interface{}, socket *Socket) *Channel {
	return &Channel{
		topic:     topic,
		params:    params,
		socket:    socket,
		state:     ChannelCreated,
		listeners: make(map[string][]func(json.RawMessage)),
	}
}

// Topic returns the channel's topic name.
func (c *Channel) Topic() string {
	return c.topic
}

// State returns the channel's current lifecycle state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsJoined reports whether the relay has confirmed the join.
func (c *Channel) IsJoined() bool {
	return c.State() == ChannelJoined
}

// Join issues the join handshake. The returned push settles exactly
// once to ok, error or timeout. A second Join returns the original join
// push rather than issuing another handshake.
func (c *Channel) Join() *Push {
	c.mu.Lock()
	if c.joinPush != nil {
		push := c.joinPush
		c.mu.Unlock()
		return push
	}
	c.state = ChannelJoining
	push := newPush(c.topic, EventJoin)
	c.joinPush = push
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"topic": c.topic,
		"ref":   push.Ref(),
	}).Debug("Joining channel")

	push.Receive(StatusOK, func(json.RawMessage) {
		c.setState(ChannelJoined)
	}).Receive(StatusError, func(json.RawMessage) {
		c.setState(ChannelErrored)
	})

	c.socket.sendPush(push, c.params)
	return push
}

// Push issues a correlated request on the channel. Multiple pushes may
// be in flight at once; each settles independently. Pushing on a closed
// channel settles to error immediately without touching the network.
func (c *Channel) Push(event string, payload interface{}) *Push {
	push := newPush(c.topic, event)

	c.mu.Lock()
	closed := c.state == ChannelClosed
	c.mu.Unlock()
	if closed {
		push.settle(StatusError, json.RawMessage(`{"reason":"channel closed"}`))
		return push
	}

	c.socket.sendPush(push, payload)
	return push
}

// Leave tears the channel down: it issues a leave push, marks the
// channel closed and removes it from the socket. Pending pushes are not
// cancelled; they settle via their timeout windows.
func (c *Channel) Leave() *Push {
	c.mu.Lock()
	c.state = ChannelClosed
	c.mu.Unlock()

	logrus.WithField("topic", c.topic).Debug("Leaving channel")

	push := newPush(c.topic, EventLeave)
	c.socket.sendPush(push, nil)
	c.socket.removeChannel(c.topic)
	return push
}

// On registers a durable listener for a server-broadcast event. The
// listener fires once per matching inbound frame until the channel is
// torn down.
func (c *Channel) On(event string, fn func(payload json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[event] = append(c.listeners[event], fn)
}

// OnError registers the handler for relay-signalled channel faults.
func (c *Channel) OnError(fn func(payload json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// OnClose registers the handler for relay-signalled channel closure.
func (c *Channel) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

func (c *Channel) setState(state ChannelState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// handleEvent routes a non-lifecycle inbound frame to listeners.
func (c *Channel) handleEvent(event string, payload json.RawMessage) {
	c.mu.Lock()
	fns := make([]func(json.RawMessage), len(c.listeners[event]))
	copy(fns, c.listeners[event])
	c.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
}

// handleError handles an inbound phx_error frame.
func (c *Channel) handleError(payload json.RawMessage) {
	logrus.WithFields(logrus.Fields{
		"topic": c.topic,
		"state": c.State().String(),
	}).Warn("Channel error")

	c.mu.Lock()
	c.state = ChannelErrored
	fn := c.onError
	c.mu.Unlock()

	if fn != nil {
		fn(payload)
	}
}

// handleClose handles an inbound phx_close frame.
func (c *Channel) handleClose() {
	logrus.WithField("topic", c.topic).Debug("Channel closed by relay")

	c.mu.Lock()
	c.state = ChannelClosed
	fn := c.onClose
	c.listeners = make(map[string][]func(json.RawMessage))
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}
