package emberclear

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// Identity supplies the caller's key material. A nil or empty public
// key means no channel identifier can be derived and connecting must
// not proceed.
type Identity interface {
	// Exists reports whether a usable key pair is present.
	Exists() bool
	// PublicKey returns the public key, or nil when absent.
	PublicKey() []byte
}

// MessageProcessor consumes inbound chat payloads. The payload is
// forwarded verbatim, once per inbound event; decryption and rendering
// happen downstream.
type MessageProcessor interface {
	Receive(payload json.RawMessage)
}

// Dispatcher broadcasts presence pings to known peers. PingAll is
// invoked fire-and-forget after a connect sequence completes.
type Dispatcher interface {
	PingAll()
}

// Notifier surfaces user-facing connection status. Implementations
// typically render toasts; the default logs.
type Notifier interface {
	Info(message string)
	Success(message string)
	Error(message string)
}

// logNotifier is the default Notifier.
type logNotifier struct{}

func (logNotifier) Info(message string)    { logrus.Info(message) }
func (logNotifier) Success(message string) { logrus.Info(message) }
func (logNotifier) Error(message string)   { logrus.Error(message) }

type noopProcessor struct{}

func (noopProcessor) Receive(json.RawMessage) {}

type noopDispatcher struct{}

func (noopDispatcher) PingAll() {}
