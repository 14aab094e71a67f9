package bus

import (
	"context"
	"sync"

	"github.com/samparadis/dvrk-ros/pkg/core"
)

const defaultMailboxSize = 64

// localBus is an in-process Bus. Every subscription gets its own mailbox
// and goroutine; Publish never blocks and drops messages for subscribers
// whose mailbox is full.
type localBus struct {
	mu          sync.RWMutex
	subscribers map[string][]*localSub
	closed      bool
	mailboxSize int
	logger      core.Logger
}

type localSub struct {
	bus     *localBus
	topic   string
	mailbox chan Message
	once    sync.Once
}

// NewLocalBus creates an in-process bus with default mailbox capacity.
func NewLocalBus() Bus {
	return NewLocalBusWithCapacity(defaultMailboxSize)
}

// NewLocalBusWithCapacity creates an in-process bus whose subscriptions
// buffer up to capacity messages each.
func NewLocalBusWithCapacity(capacity int) Bus {
	if capacity <= 0 {
		core.FailFast(&Error{Code: "INVALID_CAPACITY", Message: "mailbox capacity must be positive"})
	}
	return &localBus{
		subscribers: make(map[string][]*localSub),
		mailboxSize: capacity,
		logger:      core.NewDefaultLogger(),
	}
}

func (b *localBus) Publish(topic string, msg Message) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}
	msg.Topic = topic

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	for _, sub := range b.subscribers[topic] {
		select {
		case sub.mailbox <- msg:
		default:
			b.logger.Error("dropping message on topic ", topic, ": subscriber mailbox full")
		}
	}
	return nil
}

func (b *localBus) Subscribe(topic string, handler Handler) (Subscription, error) {
	if err := ValidateTopic(topic); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, &Error{Code: "INVALID_HANDLER", Message: "handler cannot be nil"}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	sub := &localSub{
		bus:     b,
		topic:   topic,
		mailbox: make(chan Message, b.mailboxSize),
	}
	b.subscribers[topic] = append(b.subscribers[topic], sub)

	go func() {
		for msg := range sub.mailbox {
			handler(msg)
		}
	}()
	return sub, nil
}

func (b *localBus) Request(ctx context.Context, topic string, msg Message) (Message, error) {
	if err := ValidateTopic(topic); err != nil {
		return Message{}, err
	}

	replyTopic := newReplyTopic()
	replyCh := make(chan Message, 1)

	replySub, err := b.Subscribe(replyTopic, func(reply Message) {
		select {
		case replyCh <- reply:
		default:
		}
	})
	if err != nil {
		return Message{}, err
	}
	defer replySub.Unsubscribe()

	msg.ReplyTo = replyTopic
	if err := b.Publish(topic, msg); err != nil {
		return Message{}, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (b *localBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			sub.once.Do(func() { close(sub.mailbox) })
		}
	}
	b.subscribers = make(map[string][]*localSub)
	return nil
}

func (s *localSub) Topic() string {
	return s.topic
}

func (s *localSub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	subs := s.bus.subscribers[s.topic]
	for i, sub := range subs {
		if sub == s {
			s.bus.subscribers[s.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	s.once.Do(func() { close(s.mailbox) })
	return nil
}
