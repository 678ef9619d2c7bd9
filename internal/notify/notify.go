// Package notify fans user-facing notifications out to delivery channels.
//
// The device registry and access ledger emit notifications through the
// Notifier interface; this package provides the concrete sinks: MQTT for
// external subscribers, the WebSocket hub for connected UI clients, and
// a fan-out that feeds both.
package notify

import (
	"encoding/json"
	"time"

	"github.com/boxbuddy/boxbuddy-core/internal/clock"
)

// Notifier delivers a user-facing notification.
type Notifier interface {
	Send(title, body string)
}

// Logger defines the logging interface used by notification sinks.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Message is the wire form of a notification.
type Message struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Nop is a Notifier that discards everything.
type Nop struct{}

// Send implements Notifier.
func (Nop) Send(string, string) {}

// Multi fans a notification out to several sinks in order.
type Multi []Notifier

// Send implements Notifier.
func (m Multi) Send(title, body string) {
	for _, n := range m {
		n.Send(title, body)
	}
}

// Publisher is the slice of the MQTT client the notifier needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTNotifier publishes notifications as JSON to a fixed topic.
// Delivery is best-effort: publish failures are logged, never surfaced
// to the caller, so a flaky broker cannot stall the code lifecycle.
type MQTTNotifier struct {
	publisher Publisher
	topic     string
	qos       byte
	clk       clock.Clock
	logger    Logger
}

// NewMQTTNotifier creates a notifier publishing to the given topic.
func NewMQTTNotifier(publisher Publisher, topic string, qos byte, clk clock.Clock) *MQTTNotifier {
	return &MQTTNotifier{
		publisher: publisher,
		topic:     topic,
		qos:       qos,
		clk:       clk,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for publish failures.
func (n *MQTTNotifier) SetLogger(logger Logger) {
	n.logger = logger
}

// Send implements Notifier.
func (n *MQTTNotifier) Send(title, body string) {
	msg := Message{
		Title:     title,
		Body:      body,
		Timestamp: n.clk.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		n.logger.Error("marshalling notification", "title", title, "error", err)
		return
	}

	if err := n.publisher.Publish(n.topic, payload, n.qos, false); err != nil {
		n.logger.Warn("publishing notification", "title", title, "error", err)
	}
}
