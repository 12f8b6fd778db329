package relay

import (
	"encoding/json"
	"testing"
)

func TestMessageEncode(t *testing.T) {
	t.Run("full frame", func(t *testing.T) {
		m := &Message{
			Topic:   "user:0ab1",
			Event:   "chat",
			Payload: json.RawMessage(`{"to":"peer1","message":"hello"}`),
			Ref:     "r1",
		}
		data, err := m.Encode()
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		want := `{"topic":"user:0ab1","event":"chat","payload":{"to":"peer1","message":"hello"},"ref":"r1"}`
		if string(data) != want {
			t.Errorf("Expected %s, got %s", want, string(data))
		}
	})

	t.Run("nil payload becomes empty object", func(t *testing.T) {
		m := &Message{Topic: "phoenix", Event: EventHeartbeat, Ref: "r2"}
		data, err := m.Encode()
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		want := `{"topic":"phoenix","event":"heartbeat","payload":{},"ref":"r2"}`
		if string(data) != want {
			t.Errorf("Expected %s, got %s", want, string(data))
		}
	})
}

func TestDecodeMessage(t *testing.T) {
	t.Run("valid frame", func(t *testing.T) {
		data := []byte(`{"topic":"user:0ab1","event":"phx_reply","payload":{"status":"ok","response":{}},"ref":"r3"}`)
		m, err := DecodeMessage(data)
		if err != nil {
			t.Fatalf("DecodeMessage failed: %v", err)
		}
		if m.Topic != "user:0ab1" {
			t.Errorf("Expected topic user:0ab1, got %s", m.Topic)
		}
		if m.Event != EventReply {
			t.Errorf("Expected event %s, got %s", EventReply, m.Event)
		}
		if m.Ref != "r3" {
			t.Errorf("Expected ref r3, got %s", m.Ref)
		}
	})

	t.Run("malformed frame", func(t *testing.T) {
		if _, err := DecodeMessage([]byte("not json")); err == nil {
			t.Error("Expected error for malformed frame")
		}
	})
}

func TestDecodeReply(t *testing.T) {
	t.Run("ok reply", func(t *testing.T) {
		r, err := DecodeReply(json.RawMessage(`{"status":"ok","response":{"status":"delivered"}}`))
		if err != nil {
			t.Fatalf("DecodeReply failed: %v", err)
		}
		if r.Status != StatusOK {
			t.Errorf("Expected status ok, got %s", r.Status)
		}
		if string(r.Response) != `{"status":"delivered"}` {
			t.Errorf("Unexpected response: %s", string(r.Response))
		}
	})

	t.Run("error reply", func(t *testing.T) {
		r, err := DecodeReply(json.RawMessage(`{"status":"error","response":{"reason":"unauthorized"}}`))
		if err != nil {
			t.Fatalf("DecodeReply failed: %v", err)
		}
		if r.Status != StatusError {
			t.Errorf("Expected status error, got %s", r.Status)
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		if _, err := DecodeReply(json.RawMessage(`[1,2]`)); err == nil {
			t.Error("Expected error for malformed reply payload")
		}
	})
}

func TestMarshalPayload(t *testing.T) {
	t.Run("nil payload", func(t *testing.T) {
		raw, err := marshalPayload(nil)
		if err != nil {
			t.Fatalf("marshalPayload failed: %v", err)
		}
		if string(raw) != "{}" {
			t.Errorf("Expected {}, got %s", string(raw))
		}
	})

	t.Run("raw passthrough", func(t *testing.T) {
		in := json.RawMessage(`{"a":1}`)
		raw, err := marshalPayload(in)
		if err != nil {
			t.Fatalf("marshalPayload failed: %v", err)
		}
		if string(raw) != `{"a":1}` {
			t.Errorf("Expected passthrough, got %s", string(raw))
		}
	})

	t.Run("struct payload", func(t *testing.T) {
		raw, err := marshalPayload(map[string]string{"to": "x"})
		if err != nil {
			t.Fatalf("marshalPayload failed: %v", err)
		}
		if string(raw) != `{"to":"x"}` {
			t.Errorf("Unexpected payload: %s", string(raw))
		}
	})
}
