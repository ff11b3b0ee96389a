package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers a panic and logs it with the full stack trace.
// Call in a defer statement. The panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", where).
			Error("PANIC recovered")
	}
}

// RecoverPanicWithCallback recovers a panic, logs it, and then runs the
// callback so callers can close channels or release locks.
func RecoverPanicWithCallback(logger *Logger, where string, callback func()) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", where).
			Error("PANIC recovered")
		if callback != nil {
			callback()
		}
	}
}

// MustRecover converts a recovered panic value into an error. Returns
// nil when r is nil.
func MustRecover(r any) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
