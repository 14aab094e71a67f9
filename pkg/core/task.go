package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is a schedulable component with a fixed name and execution period.
// The framework hosts tasks: it starts them, drives their periodic Run
// callback, and stops them on shutdown.
type Task interface {
	// Name returns the task identifier assigned at construction.
	Name() string

	// Period returns the execution period passed at construction.
	Period() time.Duration

	// Start begins periodic execution. It is an error to start a task twice.
	Start(ctx context.Context) error

	// Stop halts periodic execution and releases resources.
	Stop(ctx context.Context) error
}

// TaskArgs is the bundled constructor-argument form. Both construction
// forms (direct name/period and TaskArgs) must produce identical tasks.
type TaskArgs struct {
	Name   string
	Period time.Duration
}

// Configurable is an optional capability: a task that knows how to load
// configuration from an external reference implements it. Tasks without
// the capability are simply never configured.
type Configurable interface {
	Configure(path string) error
}

// RunFunc is the callback executed once per period while a task runs.
type RunFunc func(ctx context.Context)

// PeriodicTask is the base implementation of Task. Components compose it
// (rather than inherit a large base surface) and register provided
// interfaces on it.
//
// Name and period are immutable after construction. The provided-interface
// registry is safe for concurrent use.
type PeriodicTask struct {
	id     string
	name   string
	period time.Duration
	run    RunFunc

	mu         sync.RWMutex
	interfaces map[string]*ProvidedInterface
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewPeriodicTask creates a periodic task base. The name may be empty (the
// caller owns name semantics); the period must be positive.
func NewPeriodicTask(name string, period time.Duration) (*PeriodicTask, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return &PeriodicTask{
		id:         uuid.New().String(),
		name:       name,
		period:     period,
		interfaces: make(map[string]*ProvidedInterface),
	}, nil
}

// NewPeriodicTaskFromArgs is the bundled-argument construction form.
func NewPeriodicTaskFromArgs(args TaskArgs) (*PeriodicTask, error) {
	return NewPeriodicTask(args.Name, args.Period)
}

func (t *PeriodicTask) Name() string {
	return t.name
}

func (t *PeriodicTask) Period() time.Duration {
	return t.period
}

// ID returns the unique deployment identifier of this task instance.
func (t *PeriodicTask) ID() string {
	return t.id
}

// SetRun sets the periodic callback. Must be called before Start.
func (t *PeriodicTask) SetRun(run RunFunc) {
	t.mu.Lock()
	t.run = run
	t.mu.Unlock()
}

// ProvidedInterface returns the named provided interface, creating it on
// first use.
func (t *PeriodicTask) ProvidedInterface(name string) *ProvidedInterface {
	t.mu.Lock()
	defer t.mu.Unlock()

	if itf, ok := t.interfaces[name]; ok {
		return itf
	}
	itf := newProvidedInterface(name)
	t.interfaces[name] = itf
	return itf
}

// Interfaces returns the names of all provided interfaces.
func (t *PeriodicTask) Interfaces() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.interfaces))
	for name := range t.interfaces {
		names = append(names, name)
	}
	return names
}

// Start launches the periodic loop. The loop runs the Run callback once
// per period until Stop is called or ctx is cancelled.
func (t *PeriodicTask) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	run := t.run
	done := t.done
	t.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.period)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if run != nil {
					run(runCtx)
				}
			}
		}
	}()
	return nil
}

// Stop halts the periodic loop and waits for it to exit.
func (t *PeriodicTask) Stop(ctx context.Context) error {
	t.mu.Lock()
	cancel := t.cancel
	done := t.done
	t.cancel = nil
	t.done = nil
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
