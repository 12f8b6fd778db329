package relay

import (
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout is the push timeout window.
	DefaultTimeout = 10 * time.Second
	// DefaultHeartbeatInterval is the keepalive push interval.
	DefaultHeartbeatInterval = 30 * time.Second
	// writeWait bounds a single frame write on the wire.
	writeWait = 10 * time.Second
)

// SocketConfig carries optional socket tuning. Zero values select
// defaults.
type SocketConfig struct {
	// Timeout is the window within which a push must be answered before
	// it settles to timeout.
	Timeout time.Duration
	// HeartbeatInterval is how often keepalive pushes are sent while
	// connected. A heartbeat that goes unanswered for a full interval
	// tears the socket down.
	HeartbeatInterval time.Duration
	// Dialer overrides the WebSocket dialer.
	Dialer *websocket.Dialer
	// Clock drives all timers; tests install a mock.
	Clock clock.Clock
}

// Socket owns one persistent WebSocket connection to a relay server and
// multiplexes logical channels over it. A socket is single-use: once
// disconnected, a new Socket must be constructed for the next session.
type Socket struct {
	url     string
	params  url.Values
	dialer  *websocket.Dialer
	clk     clock.Clock
	timeout time.Duration
	hbEvery time.Duration

	mu         sync.Mutex
	conn       *websocket.Conn
	connecting bool
	open       bool
	closed     bool
	hbPending  bool
	channels   map[string]*Channel
	pending    map[string]*Push
	buffer     []*Message
	onError    func(error)
	onClose    func()

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewSocket constructs a socket bound to a relay address. Connection
// params (the caller's public key among them) are appended to the URL
// query on dial. The socket does not touch the network until Connect.
func NewSocket(rawURL string, params url.Values, cfg *SocketConfig) *Socket {
	if cfg == nil {
		cfg = &SocketConfig{}
	}
	s := &Socket{
		url:      rawURL,
		params:   params,
		dialer:   cfg.Dialer,
		clk:      cfg.Clock,
		timeout:  cfg.Timeout,
		hbEvery:  cfg.HeartbeatInterval,
		channels: make(map[string]*Channel),
		pending:  make(map[string]*Push),
		done:     make(chan struct{}),
	}
	if s.dialer == nil {
		s.dialer = websocket.DefaultDialer
	}
	if s.clk == nil {
		s.clk = clock.New()
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.hbEvery <= 0 {
		s.hbEvery = DefaultHeartbeatInterval
	}
	return s
}

// URL returns the relay address the socket is bound to.
func (s *Socket) URL() string {
	return s.url
}

// IsConnected reports whether the transport handshake has completed and
// the socket has not been torn down.
func (s *Socket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open && !s.closed
}

// OnError registers the handler for transport-level faults. Errors do
// not imply the socket is gone; OnClose signals that.
func (s *Socket) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// OnClose registers the handler invoked exactly once when the socket is
// torn down, whether by Disconnect, a transport fault or a failed dial.
func (s *Socket) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = fn
}

// Connect initiates the transport handshake asynchronously. Success or
// failure surfaces only through the OnError/OnClose hooks. Calling
// Connect again while connecting or connected is a no-op.
func (s *Socket) Connect() {
	s.mu.Lock()
	if s.connecting || s.open || s.closed {
		s.mu.Unlock()
		return
	}
	s.connecting = true
	s.mu.Unlock()

	go s.dial()
}

func (s *Socket) dial() {
	addr, err := s.dialAddr()
	if err != nil {
		s.fireError(newSocketError("dial", s.url, err))
		s.teardown()
		return
	}

	logrus.WithField("url", s.url).Debug("Dialing relay")

	conn, _, err := s.dialer.Dial(addr, nil)
	if err != nil {
		s.fireError(newSocketError("dial", s.url, err))
		s.teardown()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.connecting = false
	s.open = true
	buffered := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"url":      s.url,
		"buffered": len(buffered),
	}).Info("Relay socket connected")

	for _, m := range buffered {
		if err := s.writeFrame(m); err != nil {
			s.fireError(newSocketError("write", s.url, err))
			s.teardown()
			return
		}
	}

	go s.readPump(conn)
	go s.heartbeatLoop()
}

func (s *Socket) dialAddr() (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", err
	}
	if len(s.params) > 0 {
		q := u.Query()
		for k, vs := range s.params {
			for _, v := range vs {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Disconnect tears down the transport. Idempotent; safe to call when
// the socket never connected or is already gone.
func (s *Socket) Disconnect() {
	s.teardown()
}

// Channel returns the logical channel for a topic, constructing it on
// first use. Channels are multiplexed; no additional transport
// connection is made.
func (s *Socket) Channel(topic string, params interface{}) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[topic]; ok {
		return ch
	}
	ch := newChannel(topic, params, s)
	s.channels[topic] = ch
	return ch
}

func (s *Socket) removeChannel(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, topic)
}

// sendPush correlates a push, arms its timeout window and ships the
// frame, buffering it if the transport handshake has not completed yet.
// The window starts now either way.
func (s *Socket) sendPush(p *Push, payload interface{}) {
	raw, err := marshalPayload(payload)
	if err != nil {
		p.settle(StatusError, json.RawMessage(`{"reason":"invalid payload"}`))
		return
	}
	m := &Message{Topic: p.topic, Event: p.event, Payload: raw, Ref: p.ref}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		p.settle(StatusError, json.RawMessage(`{"reason":"socket closed"}`))
		return
	}
	s.pending[p.ref] = p
	s.mu.Unlock()

	drop := func(json.RawMessage) { s.dropPending(p.ref) }
	p.Receive(StatusOK, drop).Receive(StatusError, drop).Receive(StatusTimeout, drop)
	p.startTimeout(s.clk, s.timeout)

	s.mu.Lock()
	if !s.open {
		s.buffer = append(s.buffer, m)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.writeFrame(m); err != nil {
		s.fireError(newSocketError("write", s.url, err))
		s.teardown()
	}
}

func (s *Socket) dropPending(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, ref)
}

func (s *Socket) writeFrame(m *Message) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrSocketClosed
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readPump decodes inbound frames and routes them until the connection
// dies. Runs on its own goroutine; all channel callbacks fire from
// here, one at a time.
func (s *Socket) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.fireError(newSocketError("read", s.url, err))
			}
			s.teardown()
			return
		}

		msg, err := DecodeMessage(data)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"url":   s.url,
				"error": err.Error(),
			}).Warn("Dropping malformed relay frame")
			continue
		}
		s.route(msg)
	}
}

func (s *Socket) route(msg *Message) {
	if msg.Event == EventReply {
		s.mu.Lock()
		p := s.pending[msg.Ref]
		delete(s.pending, msg.Ref)
		s.mu.Unlock()
		if p == nil {
			// Late reply for an already-settled push.
			return
		}
		reply, err := DecodeReply(msg.Payload)
		if err != nil {
			p.settle(StatusError, msg.Payload)
			return
		}
		p.settle(reply.Status, reply.Response)
		return
	}

	s.mu.Lock()
	ch := s.channels[msg.Topic]
	s.mu.Unlock()
	if ch == nil {
		logrus.WithFields(logrus.Fields{
			"topic": msg.Topic,
			"event": msg.Event,
		}).Debug("Frame for unknown topic")
		return
	}

	switch msg.Event {
	case EventError:
		ch.handleError(msg.Payload)
	case EventClose:
		ch.handleClose()
	default:
		ch.handleEvent(msg.Event, msg.Payload)
	}
}

// heartbeatLoop pushes keepalives while connected. A heartbeat still
// unanswered when the next tick arrives means the relay went silent, so
// the socket is torn down and the close hook fires.
func (s *Socket) heartbeatLoop() {
	ticker := s.clk.Ticker(s.hbEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if !s.sendHeartbeat() {
				return
			}
		}
	}
}

func (s *Socket) sendHeartbeat() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if s.hbPending {
		s.mu.Unlock()
		s.fireError(newSocketError("heartbeat", s.url, ErrTimeout))
		s.teardown()
		return false
	}
	s.hbPending = true
	s.mu.Unlock()

	p := newPush(HeartbeatTopic, EventHeartbeat)
	ack := func(json.RawMessage) {
		s.mu.Lock()
		s.hbPending = false
		s.mu.Unlock()
	}
	// Any reply at all proves the relay is alive.
	p.Receive(StatusOK, ack).Receive(StatusError, ack)
	s.sendPush(p, nil)
	return true
}

// teardown closes the transport and fires the close hook exactly once.
// Pending pushes are not force-settled; their timeout windows remain
// the only bounded wait, per the protocol's no-cancellation rule.
func (s *Socket) teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.open = false
	s.connecting = false
	conn := s.conn
	s.conn = nil
	s.buffer = nil
	close(s.done)
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	logrus.WithField("url", s.url).Info("Relay socket closed")
	s.fireClose()
}

func (s *Socket) fireError(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (s *Socket) fireClose() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		fn := s.onClose
		s.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}
