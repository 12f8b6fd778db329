// Package relaytest provides an in-process relay server speaking the
// channel wire protocol, for exercising sockets and the connection
// manager without a real relay.
package relaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/elgohr-update/emberclear/relay"
)

// Handler decides the reply to one inbound push. Returning an empty
// status suppresses the reply entirely, which is how tests provoke
// client-side timeouts.
type Handler func(topic, event string, payload json.RawMessage) (status string, response interface{})

// Server is a fake relay. By default it acknowledges every join, push
// and heartbeat with "ok" and an empty response.
type Server struct {
	httpServer *httptest.Server
	upgrader   websocket.Upgrader

	mu          sync.Mutex
	conns       []*serverConn
	joins       []string
	frames      []relay.Message
	lastParams  url.Values
	joinHandler Handler
	pushHandler Handler
	hbHandler   Handler
}

type serverConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *serverConn) write(m *relay.Message) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// NewServer starts a fake relay. Callers must Close it.
func NewServer() *Server {
	s := &Server{}
	s.httpServer = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// URL returns the WebSocket address clients should dial.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.httpServer.URL, "http")
}

// Close shuts the server and all live connections down.
func (s *Server) Close() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		c.ws.Close()
	}
	s.httpServer.Close()
}

// HandleJoin overrides the reply to join handshakes.
func (s *Server) HandleJoin(fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joinHandler = fn
}

// HandlePush overrides the reply to application pushes.
func (s *Server) HandlePush(fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushHandler = fn
}

// HandleHeartbeat overrides the reply to keepalive pushes, which are
// acknowledged "ok" by default. Returning an empty status suppresses
// the reply so clients see a silent relay.
func (s *Server) HandleHeartbeat(fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hbHandler = fn
}

// Joins returns the topics joined so far, in order.
func (s *Server) Joins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.joins))
	copy(out, s.joins)
	return out
}

// Frames returns every inbound frame received so far.
func (s *Server) Frames() []relay.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]relay.Message, len(s.frames))
	copy(out, s.frames)
	return out
}

// Params returns the query parameters of the most recent connection.
func (s *Server) Params() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastParams
}

// ConnCount returns the number of transport connections accepted so
// far, including ones since closed.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// WaitForJoin polls until the topic has joined or the deadline passes.
func (s *Server) WaitForJoin(topic string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, j := range s.Joins() {
			if j == topic {
				return true
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// WaitForFrame polls until a frame matching topic and event arrives.
func (s *Server) WaitForFrame(topic, event string, timeout time.Duration) (relay.Message, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, f := range s.Frames() {
			if f.Topic == topic && f.Event == event {
				return f, true
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	return relay.Message{}, false
}

// Broadcast delivers a server-originated event to every connection.
func (s *Server) Broadcast(topic, event string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	m := &relay.Message{Topic: topic, Event: event, Payload: raw}

	s.mu.Lock()
	conns := make([]*serverConn, len(s.conns))
	copy(conns, s.conns)
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.write(m); err != nil {
			return err
		}
	}
	return nil
}

// CloseChannel emits phx_close for a topic.
func (s *Server) CloseChannel(topic string) error {
	return s.Broadcast(topic, relay.EventClose, map[string]string{})
}

// ErrorChannel emits phx_error for a topic.
func (s *Server) ErrorChannel(topic string) error {
	return s.Broadcast(topic, relay.EventError, map[string]string{"reason": "remote fault"})
}

// DropConnections severs every live transport connection without
// shutting the server down, simulating a network fault.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]*serverConn, len(s.conns))
	copy(conns, s.conns)
	s.mu.Unlock()
	for _, c := range conns {
		c.ws.Close()
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &serverConn{ws: ws}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.lastParams = r.URL.Query()
	s.mu.Unlock()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		msg, err := relay.DecodeMessage(data)
		if err != nil {
			continue
		}
		s.handleFrame(conn, msg)
	}
}

func (s *Server) handleFrame(conn *serverConn, msg *relay.Message) {
	s.mu.Lock()
	s.frames = append(s.frames, *msg)
	joinFn := s.joinHandler
	pushFn := s.pushHandler
	hbFn := s.hbHandler
	s.mu.Unlock()

	var status string
	var response interface{} = map[string]string{}

	switch msg.Event {
	case relay.EventJoin:
		status = relay.StatusOK
		if joinFn != nil {
			status, response = joinFn(msg.Topic, msg.Event, msg.Payload)
		}
		if status == relay.StatusOK {
			s.mu.Lock()
			s.joins = append(s.joins, msg.Topic)
			s.mu.Unlock()
		}
	case relay.EventHeartbeat:
		status = relay.StatusOK
		if hbFn != nil {
			status, response = hbFn(msg.Topic, msg.Event, msg.Payload)
		}
	case relay.EventLeave:
		status = relay.StatusOK
	default:
		status = relay.StatusOK
		if pushFn != nil {
			status, response = pushFn(msg.Topic, msg.Event, msg.Payload)
		}
	}

	if status == "" {
		// Suppressed reply; the client's timeout window decides.
		return
	}

	respRaw, err := json.Marshal(response)
	if err != nil {
		respRaw = json.RawMessage("{}")
	}
	replyPayload, _ := json.Marshal(relay.Reply{Status: status, Response: respRaw})
	conn.write(&relay.Message{
		Topic:   msg.Topic,
		Event:   relay.EventReply,
		Payload: replyPayload,
		Ref:     msg.Ref,
	})
}
