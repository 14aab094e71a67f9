package bus

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATSConfig configures the NATS-backed bus.
type NATSConfig struct {
	// URL is the NATS server URL, e.g. nats://localhost:4222.
	URL string `yaml:"url" json:"url"`

	// Prefix is prepended to every mapped subject, isolating deployments
	// sharing one server.
	Prefix string `yaml:"prefix" json:"prefix"`

	// Name identifies this connection to the server.
	Name string `yaml:"name" json:"name"`
}

// natsBus maps bus topics onto NATS subjects. Topics beginning with '/'
// are namespaced topic paths and are rewritten ('/a/b' -> 'a.b', with the
// configured prefix prepended); anything else is treated as a raw subject
// so reply inboxes pass through untouched.
type natsBus struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSBus connects to a NATS server and returns a Bus over it.
func NewNATSBus(cfg NATSConfig) (Bus, error) {
	opts := []nats.Option{}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}
	return &natsBus{conn: conn, prefix: cfg.Prefix}, nil
}

func (b *natsBus) subjectFor(topic string) string {
	if !strings.HasPrefix(topic, "/") {
		return topic
	}
	subject := strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", ".")
	if b.prefix != "" {
		subject = b.prefix + "." + subject
	}
	return subject
}

func (b *natsBus) Publish(topic string, msg Message) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}
	if b.conn.IsClosed() {
		return ErrClosed
	}

	if msg.ReplyTo != "" {
		natsMsg := nats.NewMsg(b.subjectFor(topic))
		natsMsg.Reply = b.subjectFor(msg.ReplyTo)
		natsMsg.Data = msg.Data
		return b.conn.PublishMsg(natsMsg)
	}
	return b.conn.Publish(b.subjectFor(topic), msg.Data)
}

func (b *natsBus) Subscribe(topic string, handler Handler) (Subscription, error) {
	if err := ValidateTopic(topic); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, &Error{Code: "INVALID_HANDLER", Message: "handler cannot be nil"}
	}
	if b.conn.IsClosed() {
		return nil, ErrClosed
	}

	sub, err := b.conn.Subscribe(b.subjectFor(topic), func(m *nats.Msg) {
		handler(Message{Topic: topic, ReplyTo: m.Reply, Data: m.Data})
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return &natsSub{topic: topic, sub: sub}, nil
}

func (b *natsBus) Request(ctx context.Context, topic string, msg Message) (Message, error) {
	if err := ValidateTopic(topic); err != nil {
		return Message{}, err
	}
	if b.conn.IsClosed() {
		return Message{}, ErrClosed
	}

	reply, err := b.conn.RequestWithContext(ctx, b.subjectFor(topic), msg.Data)
	if err != nil {
		return Message{}, fmt.Errorf("request on %s: %w", topic, err)
	}
	return Message{Topic: topic, Data: reply.Data}, nil
}

func (b *natsBus) Close() error {
	if b.conn.IsClosed() {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}

type natsSub struct {
	topic string
	sub   *nats.Subscription
}

func (s *natsSub) Topic() string {
	return s.topic
}

func (s *natsSub) Unsubscribe() error {
	if !s.sub.IsValid() {
		return nil
	}
	return s.sub.Unsubscribe()
}
