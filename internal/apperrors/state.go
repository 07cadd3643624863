package apperrors

import "fmt"

// StateError reports an illegal booking transition. It names the attempted
// edge and the state the booking was actually in; the booking is untouched.
type StateError struct {
	Attempted string
	Current   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("transition %q not allowed from state %q", e.Attempted, e.Current)
}
