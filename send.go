package emberclear

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/elgohr-update/emberclear/relay"
)

// ChatMessage is the payload of an outbound chat push. Field names are
// part of the wire contract with the relay.
type ChatMessage struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Send pushes an encrypted chat payload to a peer over the self
// channel. It fails synchronously with ErrNotConnected, without any
// network I/O, when no joined channel exists; sends issued while the
// join is unconfirmed are rejected the same way. The returned push
// settles exactly once to ok, error or timeout.
func (c *Client) Send(to, data string) (*relay.Push, error) {
	c.mu.Lock()
	ch := c.channel
	state := c.state
	c.mu.Unlock()

	if ch == nil || state != StateReady {
		return nil, ErrNotConnected
	}
	return ch.Push(chatEvent, ChatMessage{To: to, Message: data}), nil
}

// SendAndWait sends and blocks until the push settles or the context is
// done. The relay's ok-response is returned on acknowledgement; an
// explicit rejection or an expired timeout window becomes an error.
func (c *Client) SendAndWait(ctx context.Context, to, data string) (json.RawMessage, error) {
	push, err := c.Send(to, data)
	if err != nil {
		return nil, err
	}

	select {
	case result := <-push.Done():
		switch result.Status {
		case relay.StatusOK:
			return result.Response, nil
		case relay.StatusTimeout:
			return nil, relay.ErrTimeout
		default:
			return nil, fmt.Errorf("relay rejected message: %s", string(result.Response))
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
