// Package relay implements the client side of the Phoenix-channels wire
// protocol used by the message relay, enabling real-time encrypted chat
// delivery over a single multiplexed WebSocket connection.
//
// # Architecture
//
// One Socket owns the WebSocket connection to a relay server. Logical
// Channels are multiplexed over the socket by topic name; each channel
// supports a join handshake, correlated request/reply pushes, and durable
// listeners for server-broadcast events.
//
// The core types map directly onto the wire protocol:
//
//	socket := relay.NewSocket(relay.DefaultRelay().Socket, params, nil)
//	socket.OnClose(func() { ... })
//	socket.Connect()
//
//	ch := socket.Channel("user:"+hexKey, nil)
//	ch.Join().Receive(relay.StatusOK, func(resp json.RawMessage) {
//	    // joined
//	})
//
//	push := ch.Push("chat", map[string]string{"to": peer, "message": body})
//	result := <-push.Done()
//
// # Wire Format
//
// Frames are JSON objects {topic, event, payload, ref}. The reserved
// events phx_join, phx_reply, phx_error and phx_close drive channel
// lifecycle; every other event is application traffic. Replies carry
// {status, response} where status is "ok" or "error"; the "timeout"
// status is synthesized client-side when no reply arrives within the
// socket's timeout window.
//
// # Outcome Guarantees
//
// Every Push settles exactly once to one of ok, error or timeout. There
// is no cancellation; the timeout window is the only bounded wait.
package relay
