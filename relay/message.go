package relay

import (
	"encoding/json"
	"fmt"
)

// Reserved channel lifecycle events defined by the relay protocol.
const (
	EventJoin      = "phx_join"
	EventReply     = "phx_reply"
	EventLeave     = "phx_leave"
	EventClose     = "phx_close"
	EventError     = "phx_error"
	EventHeartbeat = "heartbeat"
)

// Reply statuses. StatusTimeout is never sent by the server; it is
// synthesized client-side when the timeout window elapses.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// HeartbeatTopic is the reserved topic for socket keepalive pushes.
const HeartbeatTopic = "phoenix"

// Message is one frame on the wire: a JSON object carrying the channel
// topic, the event name, an opaque payload and the correlation ref.
type Message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// Reply is the payload shape of a phx_reply frame.
type Reply struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// Encode serializes a frame for transmission. A nil payload is encoded
// as an empty object, which is what the relay expects for bare joins
// and heartbeats.
func (m *Message) Encode() ([]byte, error) {
	if m.Payload == nil {
		m.Payload = json.RawMessage("{}")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// DecodeMessage parses one inbound frame.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &m, nil
}

// DecodeReply parses the payload of a phx_reply frame.
func DecodeReply(payload json.RawMessage) (*Reply, error) {
	var r Reply
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &r, nil
}

func marshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}
