package emberclear

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/elgohr-update/emberclear/relay"
)

// chatEvent is the application event name carrying chat payloads. Part
// of the wire contract with the relay.
const chatEvent = "chat"

// State represents connection readiness. Ready is entered only once the
// relay confirms the self-channel join; sends issued before that are
// rejected, not queued.
type State uint8

const (
	// StateDisconnected means no session exists.
	StateDisconnected State = iota
	// StateJoining means the socket is up or coming up and the join
	// handshake has been issued but not confirmed.
	StateJoining
	// StateReady means the self channel is joined and sends may proceed.
	StateReady
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateJoining:
		return "joining"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// StateCallback is invoked on every readiness transition.
type StateCallback func(state State)

// Client is the connection manager. It owns at most one socket session
// and one self channel at a time, sequences connect, subscribe and
// join, and folds all lower-level events into a single readiness state.
type Client struct {
	opts       *Options
	identity   Identity
	relays     relay.Selector
	processor  MessageProcessor
	dispatcher Dispatcher
	notifier   Notifier
	clk        clock.Clock

	mu            sync.Mutex
	state         State
	socket        *relay.Socket
	channel       *relay.Channel
	rooms         map[string]*relay.Channel
	explicitClose bool
	reconnecting  bool

	stateCallback StateCallback

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a connection manager. Collaborators are injected through
// Options; there is no ambient singleton.
func New(opts *Options) *Client {
	if opts == nil {
		opts = NewOptions()
	}

	c := &Client{
		opts:       opts,
		identity:   opts.Identity,
		relays:     opts.Relays,
		processor:  opts.Processor,
		dispatcher: opts.Dispatcher,
		notifier:   opts.Notifier,
		clk:        opts.Clock,
		state:      StateDisconnected,
		rooms:      make(map[string]*relay.Channel),
	}
	if c.relays == nil {
		c.relays = relay.StaticSelector{Relay: relay.DefaultRelay()}
	}
	if c.processor == nil {
		c.processor = noopProcessor{}
	}
	if c.dispatcher == nil {
		c.dispatcher = noopDispatcher{}
	}
	if c.notifier == nil {
		c.notifier = logNotifier{}
	}
	if c.clk == nil {
		c.clk = clock.New()
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// State returns the current readiness state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange registers a callback for readiness transitions.
func (c *Client) OnStateChange(fn StateCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateCallback = fn
}

// CanConnect reports whether a usable identity exists. Pure query.
func (c *Client) CanConnect() bool {
	return c.identity != nil && c.identity.Exists()
}

// Connect establishes a session: it resolves the relay address, opens
// the socket with the public key embedded as a connection parameter,
// and issues the self-channel join. It is a no-op while a session
// already exists. Readiness is gated on the join confirmation; the
// presence ping fires once the relay acknowledges the join.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.state != StateDisconnected || c.socket != nil {
		c.mu.Unlock()
		return nil
	}
	if !c.CanConnect() {
		c.mu.Unlock()
		logrus.Debug("Connect skipped: no identity")
		return ErrNoIdentity
	}

	publicKey := c.identity.PublicKey()
	topic := relay.UserTopic(publicKey)
	if topic == "" {
		c.mu.Unlock()
		c.notifier.Error("no encryption key available")
		return ErrNoIdentity
	}

	endpoint := c.relays.GetRelay()
	params := url.Values{"uid": []string{hex.EncodeToString(publicKey)}}
	sock := relay.NewSocket(endpoint.Socket, params, &relay.SocketConfig{
		Timeout:           c.opts.Timeout,
		HeartbeatInterval: c.opts.HeartbeatInterval,
		Dialer:            c.opts.Dialer,
		Clock:             c.clk,
	})
	sock.OnError(c.handleSocketError)
	sock.OnClose(c.handleSocketClose)

	c.socket = sock
	c.state = StateJoining
	c.explicitClose = false
	callback := c.stateCallback
	c.mu.Unlock()

	c.notifier.Info("Connecting to relay...")
	if callback != nil {
		callback(StateJoining)
	}

	sock.Connect()

	ch := sock.Channel(topic, nil)
	c.wireChannel(ch)
	c.mu.Lock()
	if c.socket == sock {
		c.channel = ch
	}
	c.mu.Unlock()

	join := ch.Join()
	join.Receive(relay.StatusOK, func(json.RawMessage) {
		if !c.markReady(sock) {
			// The session was torn down while the confirmation was in
			// flight; a stale join-ok must not resurrect it.
			return
		}
		c.notifier.Success("Connected to relay")
		go c.dispatcher.PingAll()
	}).Receive(relay.StatusError, func(resp json.RawMessage) {
		logrus.WithFields(logrus.Fields{
			"topic":    topic,
			"response": string(resp),
		}).Error("Relay rejected channel join")
		c.disconnectSocket()
	}).Receive(relay.StatusTimeout, func(json.RawMessage) {
		// Join issued but unconfirmed. The session stays up; sends are
		// rejected until the relay confirms.
		c.notifier.Info("Relay join unconfirmed, still waiting...")
	})

	return nil
}

// Disconnect tears down the session explicitly. Idempotent. An explicit
// disconnect never triggers the reconnect loop.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.explicitClose = true
	sock := c.socket
	c.mu.Unlock()

	if sock != nil {
		sock.Disconnect()
	}
}

// Close disconnects and releases the client. The client cannot be
// reused afterwards.
func (c *Client) Close() {
	c.cancel()
	c.Disconnect()
}

// wireChannel attaches the shared channel fault policy and the inbound
// chat route. A channel fault tears down the whole session, not just
// the channel.
func (c *Client) wireChannel(ch *relay.Channel) {
	topic := ch.Topic()

	ch.OnError(func(payload json.RawMessage) {
		logrus.WithFields(logrus.Fields{
			"topic":   topic,
			"payload": string(payload),
		}).Error("Channel fault, tearing down session")
		c.disconnectSocket()
	})
	ch.OnClose(func() {
		logrus.WithField("topic", topic).Warn("Channel closed by relay, tearing down session")
		c.disconnectSocket()
	})
	ch.On(chatEvent, func(payload json.RawMessage) {
		c.processor.Receive(payload)
	})
}

func (c *Client) disconnectSocket() {
	c.mu.Lock()
	sock := c.socket
	c.mu.Unlock()
	if sock != nil {
		sock.Disconnect()
	}
}

// handleSocketError surfaces transport faults. State is untouched; the
// close hook decides whether the session is gone.
func (c *Client) handleSocketError(err error) {
	c.notifier.Error(fmt.Sprintf("Relay connection error: %v", err))
}

// handleSocketClose folds any socket teardown, explicit or not, into
// the disconnected state.
func (c *Client) handleSocketClose() {
	c.mu.Lock()
	c.state = StateDisconnected
	c.socket = nil
	c.channel = nil
	c.rooms = make(map[string]*relay.Channel)
	wasExplicit := c.explicitClose
	callback := c.stateCallback
	c.mu.Unlock()

	c.notifier.Info("Disconnected from relay")
	if callback != nil {
		callback(StateDisconnected)
	}

	if c.opts.AutoReconnect && !wasExplicit {
		go c.reconnectLoop()
	}
}

// markReady transitions to Ready only while the given socket is still
// the live session. Reports whether the transition happened.
func (c *Client) markReady(sock *relay.Socket) bool {
	c.mu.Lock()
	if c.socket != sock {
		c.mu.Unlock()
		return false
	}
	c.state = StateReady
	callback := c.stateCallback
	c.mu.Unlock()

	if callback != nil {
		callback(StateReady)
	}
	return true
}
