package notifiers

import "fmt"

// NotifyError wraps a failed delivery through one of the optional sinks.
type NotifyError struct {
	Sink       string
	StatusCode int
	Err        error
}

func (e *NotifyError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s notification failed with status %d: %v", e.Sink, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s notification failed: %v", e.Sink, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }
