package errors

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic turns a recovered panic value into a fatal error carrying
// the stack trace. A panicking handler must never be retried.
func RecoverPanic(r interface{}) error {
	if r == nil {
		return nil
	}

	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("panic: %v", r)
	}

	return ErrInternal.
		WithCause(cause).
		WithDetail("panic", true).
		WithDetail("stack_trace", string(debug.Stack())).
		AsFatal()
}
