package emberclear

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elgohr-update/emberclear/relay"
	"github.com/elgohr-update/emberclear/relay/relaytest"
)

// testKey derives the topic "user:0ab1".
var testKey = []byte{0x0a, 0xb1}

const testSelfTopic = "user:0ab1"

type fakeIdentity struct {
	key    []byte
	exists bool
}

func (f *fakeIdentity) Exists() bool      { return f.exists }
func (f *fakeIdentity) PublicKey() []byte { return f.key }

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) record(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

func (n *recordingNotifier) Info(msg string)    { n.record(msg) }
func (n *recordingNotifier) Success(msg string) { n.record(msg) }
func (n *recordingNotifier) Error(msg string)   { n.record(msg) }

func (n *recordingNotifier) saw(substr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, m := range n.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type recordingProcessor struct {
	received chan json.RawMessage
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{received: make(chan json.RawMessage, 8)}
}

func (p *recordingProcessor) Receive(payload json.RawMessage) {
	p.received <- payload
}

type recordingDispatcher struct {
	pings chan struct{}
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{pings: make(chan struct{}, 8)}
}

func (d *recordingDispatcher) PingAll() {
	d.pings <- struct{}{}
}

type testHarness struct {
	client     *Client
	server     *relaytest.Server
	notifier   *recordingNotifier
	processor  *recordingProcessor
	dispatcher *recordingDispatcher
}

func newHarness(t *testing.T, mutate func(*Options)) *testHarness {
	t.Helper()

	srv := relaytest.NewServer()
	t.Cleanup(srv.Close)

	h := &testHarness{
		server:     srv,
		notifier:   &recordingNotifier{},
		processor:  newRecordingProcessor(),
		dispatcher: newRecordingDispatcher(),
	}

	opts := NewOptions()
	opts.Identity = &fakeIdentity{key: testKey, exists: true}
	opts.Relays = relay.StaticSelector{Relay: relay.Relay{Socket: srv.URL()}}
	opts.Notifier = h.notifier
	opts.Processor = h.processor
	opts.Dispatcher = h.dispatcher
	if mutate != nil {
		mutate(opts)
	}

	h.client = New(opts)
	t.Cleanup(h.client.Close)
	return h
}

func waitForState(t *testing.T, c *Client, want State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for state %s, still %s", want, c.State())
}
