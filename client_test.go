package emberclear

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elgohr-update/emberclear/relay"
)

func TestCanConnect(t *testing.T) {
	t.Run("true with identity", func(t *testing.T) {
		h := newHarness(t, nil)
		assert.True(t, h.client.CanConnect())
	})

	t.Run("false without identity", func(t *testing.T) {
		h := newHarness(t, func(o *Options) {
			o.Identity = &fakeIdentity{exists: false}
		})
		assert.False(t, h.client.CanConnect())
	})

	t.Run("false with nil identity", func(t *testing.T) {
		h := newHarness(t, func(o *Options) {
			o.Identity = nil
		})
		assert.False(t, h.client.CanConnect())
	})
}

func TestConnect(t *testing.T) {
	t.Run("happy path reaches ready", func(t *testing.T) {
		h := newHarness(t, nil)

		require.NoError(t, h.client.Connect())
		waitForState(t, h.client, StateReady)

		// The relay saw the join on the derived self topic, with the
		// public key embedded as connection parameter.
		joins := h.server.Joins()
		require.Len(t, joins, 1)
		assert.Equal(t, testSelfTopic, joins[0])
		assert.Equal(t, "0ab1", h.server.Params().Get("uid"))

		// Presence pings fire once the join is confirmed.
		select {
		case <-h.dispatcher.pings:
		case <-time.After(3 * time.Second):
			t.Fatal("PingAll never fired")
		}

		assert.True(t, h.notifier.saw("Connecting"))
		assert.True(t, h.notifier.saw("Connected"))
	})

	t.Run("no identity means no socket", func(t *testing.T) {
		h := newHarness(t, func(o *Options) {
			o.Identity = &fakeIdentity{exists: false}
		})

		err := h.client.Connect()
		assert.ErrorIs(t, err, ErrNoIdentity)
		assert.Equal(t, StateDisconnected, h.client.State())

		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, h.server.ConnCount(), "no transport connection may be made")
		assert.False(t, h.notifier.saw("Connecting"), "no connecting notification without identity")
	})

	t.Run("identity exists but key is absent", func(t *testing.T) {
		h := newHarness(t, func(o *Options) {
			o.Identity = &fakeIdentity{exists: true, key: nil}
		})

		err := h.client.Connect()
		assert.ErrorIs(t, err, ErrNoIdentity)
		assert.Equal(t, StateDisconnected, h.client.State())
		assert.True(t, h.notifier.saw("no encryption key"))
		assert.Zero(t, h.server.ConnCount())
	})

	t.Run("idempotent while session exists", func(t *testing.T) {
		h := newHarness(t, nil)

		require.NoError(t, h.client.Connect())
		waitForState(t, h.client, StateReady)

		require.NoError(t, h.client.Connect())
		require.NoError(t, h.client.Connect())
		time.Sleep(50 * time.Millisecond)

		assert.Equal(t, 1, h.server.ConnCount(), "no second socket construction")
	})

	t.Run("stale join confirmation cannot resurrect a session", func(t *testing.T) {
		h := newHarness(t, nil)

		// A join-ok for a socket that is no longer the live one must be
		// ignored rather than flip the client to ready.
		stale := relay.NewSocket("ws://127.0.0.1:1/socket/websocket", nil, nil)
		assert.False(t, h.client.markReady(stale))
		assert.Equal(t, StateDisconnected, h.client.State())

		// The client is still usable afterwards.
		require.NoError(t, h.client.Connect())
		waitForState(t, h.client, StateReady)
	})

	t.Run("failed dial leaves no channel behind", func(t *testing.T) {
		h := newHarness(t, func(o *Options) {
			// Nothing listens here; the dial fails before the join.
			o.Relays = relay.StaticSelector{Relay: relay.Relay{Socket: "ws://127.0.0.1:1/socket/websocket"}}
		})

		require.NoError(t, h.client.Connect())
		waitForState(t, h.client, StateDisconnected)
		time.Sleep(50 * time.Millisecond)

		h.client.mu.Lock()
		defer h.client.mu.Unlock()
		assert.Nil(t, h.client.socket)
		assert.Nil(t, h.client.channel)
	})

	t.Run("join rejection tears the session down", func(t *testing.T) {
		h := newHarness(t, nil)
		h.server.HandleJoin(func(topic, event string, payload json.RawMessage) (string, interface{}) {
			return relay.StatusError, map[string]string{"reason": "unauthorized"}
		})

		require.NoError(t, h.client.Connect())
		waitForState(t, h.client, StateDisconnected)
	})

	t.Run("join timeout leaves the session joining", func(t *testing.T) {
		h := newHarness(t, func(o *Options) {
			o.Timeout = 100 * time.Millisecond
		})
		h.server.HandleJoin(func(topic, event string, payload json.RawMessage) (string, interface{}) {
			return "", nil // never confirm
		})

		require.NoError(t, h.client.Connect())

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) && !h.notifier.saw("unconfirmed") {
			time.Sleep(5 * time.Millisecond)
		}
		assert.True(t, h.notifier.saw("unconfirmed"))
		assert.Equal(t, StateJoining, h.client.State(), "timeout neither retries nor closes")
	})
}

func TestStateTransitions(t *testing.T) {
	h := newHarness(t, nil)

	states := make(chan State, 8)
	h.client.OnStateChange(func(s State) { states <- s })

	require.NoError(t, h.client.Connect())
	waitForState(t, h.client, StateReady)
	h.client.Disconnect()
	waitForState(t, h.client, StateDisconnected)

	var transitions []State
	for len(transitions) < 3 {
		select {
		case s := <-states:
			transitions = append(transitions, s)
		case <-time.After(2 * time.Second):
			t.Fatalf("Saw only %v", transitions)
		}
	}
	assert.Equal(t, []State{StateJoining, StateReady, StateDisconnected}, transitions)
}

func TestSocketCloseClearsState(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.client.Connect())
	waitForState(t, h.client, StateReady)

	h.server.DropConnections()
	waitForState(t, h.client, StateDisconnected)
	assert.True(t, h.notifier.saw("Disconnected"))

	// Recoverable: a fresh Connect builds a new session.
	require.NoError(t, h.client.Connect())
	waitForState(t, h.client, StateReady)
}

func TestChannelFaultCascades(t *testing.T) {
	t.Run("channel error tears down the socket", func(t *testing.T) {
		h := newHarness(t, nil)

		require.NoError(t, h.client.Connect())
		waitForState(t, h.client, StateReady)

		require.NoError(t, h.server.ErrorChannel(testSelfTopic))
		waitForState(t, h.client, StateDisconnected)

		_, err := h.client.Send("peer1", "hello")
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("channel close tears down the socket", func(t *testing.T) {
		h := newHarness(t, nil)

		require.NoError(t, h.client.Connect())
		waitForState(t, h.client, StateReady)

		require.NoError(t, h.server.CloseChannel(testSelfTopic))
		waitForState(t, h.client, StateDisconnected)

		_, err := h.client.Send("peer1", "hello")
		assert.ErrorIs(t, err, ErrNotConnected)
	})
}

func TestInboundChatForwardedVerbatim(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.client.Connect())
	waitForState(t, h.client, StateReady)

	payload := map[string]string{"from": "peer1", "to": "0ab1", "message": "ciphertext"}
	require.NoError(t, h.server.Broadcast(testSelfTopic, "chat", payload))

	select {
	case raw := <-h.processor.received:
		var got map[string]string
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, payload, got)
	case <-time.After(3 * time.Second):
		t.Fatal("Inbound chat never reached the processor")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.client.Connect())
	waitForState(t, h.client, StateReady)

	h.client.Disconnect()
	h.client.Disconnect()
	waitForState(t, h.client, StateDisconnected)

	// Disconnecting an already-disconnected client stays quiet.
	before := h.notifier.count()
	h.client.Disconnect()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, h.notifier.count())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "joining", StateJoining.String())
	assert.Equal(t, "ready", StateReady.String())
}
