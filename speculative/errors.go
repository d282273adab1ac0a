package speculative

import "fmt"

// ConfigError reports an invalid combination of Options passed to ForEach or
// OnEach, detected before any worker thread is launched.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("speculative: invalid configuration: %s", e.Reason)
}

// OperatorError wraps a failure returned by an Operator (or a function
// passed to OnEach), or a panic recovered from one, as the value ForEach and
// OnEach return from the top-level call: the first such failure is
// remembered and re-raised once all workers have exited cleanly.
type OperatorError struct {
	Err error
}

func (e *OperatorError) Error() string {
	return fmt.Sprintf("speculative: operator failed: %v", e.Err)
}

func (e *OperatorError) Unwrap() error { return e.Err }

func wrapOperatorFailure(v interface{}) error {
	if v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return &OperatorError{Err: err}
	}
	return &OperatorError{Err: fmt.Errorf("%v", v)}
}
