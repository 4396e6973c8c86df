package blend

import "fmt"

// ErrInput matches any *InputError via errors.Is.
var ErrInput = &InputError{}

// ErrDomain matches any *DomainError via errors.Is.
var ErrDomain = &DomainError{}

// InputError reports malformed or unusable input data. It is raised before
// any optimization starts.
type InputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	msg := "invalid input"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += " " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InputError) Unwrap() error { return e.Err }

func (e *InputError) Is(target error) bool {
	_, ok := target.(*InputError)
	return ok
}

// DomainError reports a blend computation that has no meaningful value,
// such as an allocation with zero total mass.
type DomainError struct {
	Quantity string
	Reason   string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("blend domain error: %s %s", e.Quantity, e.Reason)
}

func (e *DomainError) Is(target error) bool {
	_, ok := target.(*DomainError)
	return ok
}
