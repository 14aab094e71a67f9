package core

import "sync"

// Constructor builds a task from bundled arguments. Constructors usually
// close over collaborators such as the bus handle.
type Constructor func(args TaskArgs) (Task, error)

// taskRegistry maps a task type name to a construction closure. It
// replaces reflection-style service registration: populate during process
// initialization, look up afterwards. Lookups and registrations are
// guarded so late registration is safe, but the expected lifecycle is
// register-then-create.
type taskRegistry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

var registry = &taskRegistry{ctors: make(map[string]Constructor)}

// RegisterTaskType registers a constructor for the given type name.
// Registering the same type name twice panics: that is a wiring bug and
// should be caught at startup.
func RegisterTaskType(typeName string, ctor Constructor) {
	if typeName == "" || ctor == nil {
		FailFast(&Error{Code: "INVALID_REGISTRATION", Message: "task type name and constructor are required"})
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.ctors[typeName]; exists {
		FailFast(&Error{Code: "DUPLICATE_TASK_TYPE", Message: "task type already registered: " + typeName})
	}
	registry.ctors[typeName] = ctor
}

// CreateTask constructs a task of the given registered type.
func CreateTask(typeName string, args TaskArgs) (Task, error) {
	registry.mu.RLock()
	ctor, ok := registry.ctors[typeName]
	registry.mu.RUnlock()

	if !ok {
		return nil, ErrUnknownTaskType
	}
	return ctor(args)
}

// TaskTypes returns the registered type names.
func TaskTypes() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.ctors))
	for name := range registry.ctors {
		names = append(names, name)
	}
	return names
}
