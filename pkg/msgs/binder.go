package msgs

import (
	"encoding/json"
	"fmt"
)

// Binder deserializes raw message bytes into a Go value. Implement this
// interface for custom serialization formats.
type Binder interface {
	Bind(data []byte, v interface{}) error
}

// JSONBinder deserializes JSON message bodies.
type JSONBinder struct{}

func (JSONBinder) Bind(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

// DefaultBinder is the binder used when none is specified.
var DefaultBinder Binder = JSONBinder{}
