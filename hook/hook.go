// Package hook runs a unit of work under try/catch/finally semantics.
package hook

import "fmt"

// Interface is implemented by work that wants a guarded execution.
// Catch receives any error returned by Try and may translate or swallow it.
// Finally always runs, after Catch and after panic recovery.
type Interface interface {
	Try() error
	Catch(err error) error
	Finally()
}

// PanicError is returned by Call when Try or Catch panicked.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic occurred during hook execution: %v", e.Value)
}

func Call(hook Interface) (err error) {
	if hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}

	defer hook.Finally()

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	if tryErr := hook.Try(); tryErr != nil {
		return hook.Catch(tryErr)
	}
	return nil
}
