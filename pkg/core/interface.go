package core

import "sync"

// ReadFunc returns the most recently received value for a bound source.
// The boolean reports whether a value has been received at all.
type ReadFunc func() (interface{}, bool)

// ProvidedInterface is a named grouping of read commands a task exposes
// for other components to call.
type ProvidedInterface struct {
	name string

	mu    sync.RWMutex
	reads map[string]ReadFunc
}

func newProvidedInterface(name string) *ProvidedInterface {
	return &ProvidedInterface{
		name:  name,
		reads: make(map[string]ReadFunc),
	}
}

// Name returns the interface name.
func (p *ProvidedInterface) Name() string {
	return p.name
}

// AddReadCommand registers a named read command. Registering the same
// command name twice is a programming error and is rejected.
func (p *ProvidedInterface) AddReadCommand(name string, fn ReadFunc) error {
	if name == "" {
		return &Error{Code: "INVALID_COMMAND", Message: "command name cannot be empty"}
	}
	if fn == nil {
		return &Error{Code: "INVALID_COMMAND", Message: "read function cannot be nil"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.reads[name]; exists {
		return ErrDuplicateCommand
	}
	p.reads[name] = fn
	return nil
}

// ReadCommand looks up a read command by name.
func (p *ProvidedInterface) ReadCommand(name string) (ReadFunc, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	fn, ok := p.reads[name]
	if !ok {
		return nil, ErrUnknownCommand
	}
	return fn, nil
}

// Commands returns the names of all registered read commands.
func (p *ProvidedInterface) Commands() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.reads))
	for name := range p.reads {
		names = append(names, name)
	}
	return names
}
