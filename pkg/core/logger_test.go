package core

import "testing"

func TestLoggerWithFields(t *testing.T) {
	base := NewDefaultLogger()
	derived := base.WithFields(map[string]interface{}{"arm": "PSM1"})
	if derived == base {
		t.Error("WithFields should return a new logger")
	}

	// Error values and the logger share this package; logging one must
	// work like logging any other value.
	derived.Error("registration failed: ", &Error{Code: "DUPLICATE_COMMAND", Message: "read command already registered"})
	derived.Info("component up")
	derived.Debug("tick")
}

func TestLoggerLevelFiltering(t *testing.T) {
	l := NewLogger(LoggerConfig{Level: "ERROR"})
	// Filtered levels must still be safe to call.
	l.Debug("suppressed")
	l.Info("suppressed")
	l.Error("emitted")
}
