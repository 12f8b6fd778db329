package emberclear

import (
	"time"

	"github.com/sirupsen/logrus"
)

// reconnectLoop supervises reconnection after a non-explicit socket
// loss: wait out the backoff delay, call Connect, give the join a
// verdict window, and double the delay on failure up to the configured
// cap. The loop stops on explicit disconnect, on Close, when another
// path establishes a session, or when attempts run out.
func (c *Client) reconnectLoop() {
	c.mu.Lock()
	if c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	delay := c.opts.ReconnectMinDelay
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := c.opts.ReconnectMaxDelay
	if maxDelay < delay {
		maxDelay = delay
	}

	for attempt := 1; c.opts.ReconnectMaxAttempts == 0 || attempt <= c.opts.ReconnectMaxAttempts; attempt++ {
		if !c.sleep(delay) {
			return
		}

		c.mu.Lock()
		state := c.state
		explicit := c.explicitClose
		c.mu.Unlock()
		if explicit || state != StateDisconnected {
			return
		}

		logrus.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Info("Reconnecting to relay")

		if err := c.Connect(); err != nil {
			// Identity gone; reconnecting cannot help.
			return
		}

		// Give the join handshake its full timeout window before
		// judging the attempt.
		if !c.sleep(c.opts.Timeout + time.Second) {
			return
		}
		switch c.State() {
		case StateReady, StateJoining:
			return
		case StateDisconnected:
			delay = nextDelay(delay, maxDelay)
		}
	}

	logrus.Warn("Giving up on relay reconnection")
}

// nextDelay doubles the backoff delay, capped at max.
func nextDelay(delay, max time.Duration) time.Duration {
	delay *= 2
	if delay > max {
		delay = max
	}
	return delay
}

// sleep waits on the client clock; false means the client was closed.
func (c *Client) sleep(d time.Duration) bool {
	timer := c.clk.Timer(d)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
