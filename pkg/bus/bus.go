package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Message is a datagram on the bus. Data is the encoded payload; the
// default encoding is JSON. ReplyTo is set on request messages and names
// the topic a reply should be published to.
type Message struct {
	Topic   string
	ReplyTo string
	Data    []byte
}

// NewMessage encodes v as JSON and wraps it in a Message for topic.
func NewMessage(topic string, v interface{}) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("encode message for %s: %w", topic, err)
	}
	return Message{Topic: topic, Data: data}, nil
}

// Decode unmarshals the message payload into v.
func (m Message) Decode(v interface{}) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode message from %s: %w", m.Topic, err)
	}
	return nil
}

// Handler consumes messages delivered by a subscription. Handlers run on
// the subscription's own goroutine; they must not block indefinitely or
// delivery to that subscription will start dropping.
type Handler func(msg Message)

// Subscription is a registered topic consumer.
type Subscription interface {
	// Topic returns the subscribed topic.
	Topic() string

	// Unsubscribe removes the consumer. Safe to call more than once.
	Unsubscribe() error
}

// Bus provides publish-subscribe and request-reply messaging between
// components, locally or across processes.
//
// Thread-safety: all methods are safe for concurrent use.
type Bus interface {
	// Publish delivers msg to every subscriber of the topic. Delivery is
	// best effort: slow subscribers may miss messages.
	Publish(topic string, msg Message) error

	// Subscribe registers a handler for the topic.
	Subscribe(topic string, handler Handler) (Subscription, error)

	// Request publishes msg with a generated reply topic and waits for a
	// reply until ctx is done. Responders publish to msg.ReplyTo.
	Request(ctx context.Context, topic string, msg Message) (Message, error)

	// Close shuts the bus down and removes all subscriptions.
	Close() error
}

const maxTopicLen = 255

// ValidateTopic rejects empty and oversized topic names.
func ValidateTopic(topic string) error {
	if topic == "" {
		return &Error{Code: "INVALID_TOPIC", Message: "topic cannot be empty"}
	}
	if len(topic) > maxTopicLen {
		return &Error{Code: "INVALID_TOPIC", Message: "topic too long (max 255 characters)"}
	}
	return nil
}

// Error is a bus error with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = &Error{Code: "CLOSED", Message: "bus is closed"}

func newReplyTopic() string {
	return "reply." + uuid.New().String()
}
