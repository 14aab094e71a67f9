// Package bridge maps remote bus topics onto locally readable commands.
//
// A Bridge is a periodic task that owns a set of Bindings. Each binding
// declares: messages of the remote wire type arriving on one topic become
// retrievable through a named read command under a provided interface.
// Bindings are declared during construction; messages flow once the
// bridge is started.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/samparadis/dvrk-ros/pkg/bus"
	"github.com/samparadis/dvrk-ros/pkg/core"
)

// Convert translates a raw remote payload into the local value a read
// command returns. A conversion error drops the sample.
type Convert func(data []byte) (interface{}, error)

// Binding is a declared mapping from one remote topic to one local read
// command. Created once, never mutated.
type Binding struct {
	Interface string
	Command   string
	Topic     string

	convert Convert

	mu       sync.RWMutex
	latest   interface{}
	received bool
}

func (b *Binding) store(v interface{}) {
	b.mu.Lock()
	b.latest = v
	b.received = true
	b.mu.Unlock()
}

// Read returns the most recently received value and whether any value has
// been received yet.
func (b *Binding) Read() (interface{}, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest, b.received
}

// Bridge adapts a messaging bus to the task framework's read commands.
type Bridge struct {
	*core.PeriodicTask

	bus    bus.Bus
	logger core.Logger

	mu       sync.Mutex
	bindings []*Binding
	subs     []bus.Subscription
}

// New creates a bridge task. The bus handle is injected; the bridge never
// owns or closes it.
func New(b bus.Bus, name string, period time.Duration) (*Bridge, error) {
	base, err := core.NewPeriodicTask(name, period)
	if err != nil {
		return nil, err
	}
	return &Bridge{
		PeriodicTask: base,
		bus:          b,
		logger:       core.NewDefaultLogger().WithFields(map[string]interface{}{"bridge": name}),
	}, nil
}

// NewFromArgs is the bundled-argument construction form.
func NewFromArgs(b bus.Bus, args core.TaskArgs) (*Bridge, error) {
	return New(b, args.Name, args.Period)
}

// AddSubscriberToCommandRead registers one binding: messages of the
// remote type on topic become readable via the command under the provided
// interface. Fails on duplicate command names; the failure propagates to
// the caller, which is typically a component constructor.
func (br *Bridge) AddSubscriberToCommandRead(itf, command, topic string, convert Convert) error {
	if err := bus.ValidateTopic(topic); err != nil {
		return err
	}
	if convert == nil {
		return &core.Error{Code: "INVALID_BINDING", Message: "convert function cannot be nil"}
	}

	binding := &Binding{
		Interface: itf,
		Command:   command,
		Topic:     topic,
		convert:   convert,
	}
	if err := br.ProvidedInterface(itf).AddReadCommand(command, binding.Read); err != nil {
		return err
	}

	br.mu.Lock()
	br.bindings = append(br.bindings, binding)
	br.mu.Unlock()

	bindingsRegistered.Inc()
	return nil
}

// Bindings returns the registered bindings.
func (br *Bridge) Bindings() []*Binding {
	br.mu.Lock()
	defer br.mu.Unlock()
	return append([]*Binding(nil), br.bindings...)
}

// Start subscribes every binding's topic, then begins periodic execution.
func (br *Bridge) Start(ctx context.Context) error {
	br.mu.Lock()
	for _, binding := range br.bindings {
		binding := binding
		sub, err := br.bus.Subscribe(binding.Topic, func(msg bus.Message) {
			v, err := binding.convert(msg.Data)
			if err != nil {
				conversionErrors.WithLabelValues(binding.Interface, binding.Command).Inc()
				br.logger.Error("conversion failed on ", binding.Topic, ": ", err)
				return
			}
			binding.store(v)
			messagesReceived.WithLabelValues(binding.Interface, binding.Command).Inc()
		})
		if err != nil {
			br.mu.Unlock()
			br.unsubscribeAll()
			return err
		}
		br.subs = append(br.subs, sub)
	}
	br.mu.Unlock()

	return br.PeriodicTask.Start(ctx)
}

// Stop removes all topic subscriptions and halts periodic execution.
func (br *Bridge) Stop(ctx context.Context) error {
	br.unsubscribeAll()
	return br.PeriodicTask.Stop(ctx)
}

func (br *Bridge) unsubscribeAll() {
	br.mu.Lock()
	subs := br.subs
	br.subs = nil
	br.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			br.logger.Error("unsubscribe failed on ", sub.Topic(), ": ", err)
		}
	}
}
