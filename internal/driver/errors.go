package driver

import "fmt"

// StateError reports an operation attempted in a lifecycle state that
// does not allow it, e.g. Start before Initialise. It indicates a
// programming error in the caller, not a device condition.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("driver: %s not allowed in state %s", e.Op, e.State)
}
