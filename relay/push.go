package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Result is the single outcome of a push: one of the three statuses and,
// for ok/error, the server's response payload.
type Result struct {
	Status   string
	Response json.RawMessage
}

// Push is one correlated request on a channel. It settles exactly once
// to ok, error or timeout; a settled push ignores any further events for
// the same ref.
type Push struct {
	ref   string
	topic string
	event string

	mu        sync.Mutex
	settled   bool
	result    Result
	callbacks map[string][]func(json.RawMessage)
	done      chan Result
	timer     *clock.Timer
}

func newPush(topic, event string) *Push {
	return &Push{
		ref:       uuid.New().String(),
		topic:     topic,
		event:     event,
		callbacks: make(map[string][]func(json.RawMessage)),
		done:      make(chan Result, 1),
	}
}

// Ref returns the correlation ref carried on the wire.
func (p *Push) Ref() string {
	return p.ref
}

// Receive registers a callback for one outcome status. If the push has
// already settled with that status the callback runs immediately.
// Returns the push for chaining.
func (p *Push) Receive(status string, fn func(response json.RawMessage)) *Push {
	p.mu.Lock()
	if p.settled {
		result := p.result
		p.mu.Unlock()
		if result.Status == status {
			fn(result.Response)
		}
		return p
	}
	p.callbacks[status] = append(p.callbacks[status], fn)
	p.mu.Unlock()
	return p
}

// Done returns a channel that receives the push's single Result and is
// then closed.
func (p *Push) Done() <-chan Result {
	return p.done
}

// Result returns the settled outcome, or false if the push is still in
// flight.
func (p *Push) Result() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result, p.settled
}

// settle resolves the push. Later calls are no-ops, which is what makes
// duplicate replies for the same ref harmless.
func (p *Push) settle(status string, response json.RawMessage) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return
	}
	p.settled = true
	p.result = Result{Status: status, Response: response}
	if p.timer != nil {
		p.timer.Stop()
	}
	cbs := p.callbacks[status]
	p.callbacks = nil
	p.mu.Unlock()

	for _, fn := range cbs {
		fn(response)
	}
	p.done <- p.result
	close(p.done)
}

// startTimeout arms the client-side timeout window. The window starts
// when the push is issued, not when the frame reaches the wire, so a
// push buffered behind a slow connect still times out.
func (p *Push) startTimeout(clk clock.Clock, window time.Duration) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return
	}
	p.timer = clk.AfterFunc(window, func() {
		p.settle(StatusTimeout, nil)
	})
	p.mu.Unlock()
}
