package emberclear

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/elgohr-update/emberclear/relay"
)

// JoinRoom subscribes to an additional room channel over the active
// session. Room channels are symmetric to the self channel: same join
// handshake, same cascading fault policy, same inbound chat route.
// Fails fast with an error notification when no session exists.
func (c *Client) JoinRoom(name string) error {
	c.mu.Lock()
	if _, joined := c.rooms[name]; joined {
		// Already subscribed; wiring the channel again would duplicate
		// its inbound listeners.
		c.mu.Unlock()
		return nil
	}
	sock := c.socket
	c.mu.Unlock()

	if sock == nil {
		c.notifier.Error("cannot join room: not connected to relay")
		return ErrNotConnected
	}

	topic := relay.RoomTopic(name, c.identity.PublicKey())
	if topic == "" {
		c.notifier.Error("cannot join room: no encryption key available")
		return ErrNoIdentity
	}

	ch := sock.Channel(topic, nil)
	c.wireChannel(ch)

	c.mu.Lock()
	c.rooms[name] = ch
	c.mu.Unlock()

	ch.Join().Receive(relay.StatusOK, func(json.RawMessage) {
		c.notifier.Success("Joined room " + name)
	}).Receive(relay.StatusError, func(resp json.RawMessage) {
		logrus.WithFields(logrus.Fields{
			"topic":    topic,
			"response": string(resp),
		}).Error("Relay rejected room join")
	}).Receive(relay.StatusTimeout, func(json.RawMessage) {
		// Unconfirmed; the subscription stays up and is neither retried
		// nor closed.
		c.notifier.Info("Room join unconfirmed: " + name)
	})

	return nil
}

// LeaveRoom leaves a room channel. Unknown names are a no-op.
func (c *Client) LeaveRoom(name string) {
	c.mu.Lock()
	ch := c.rooms[name]
	delete(c.rooms, name)
	c.mu.Unlock()

	if ch != nil {
		ch.Leave()
	}
}

// Rooms lists the names of currently subscribed room channels.
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.rooms))
	for name := range c.rooms {
		names = append(names, name)
	}
	return names
}

// Room returns the channel for a subscribed room, or nil.
func (c *Client) Room(name string) *relay.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[name]
}
