package fem

import "fmt"

// UnresolvedCouplingError names an object that refers to a variable that
// does not exist or is of the wrong kind
type UnresolvedCouplingError struct {
	Object   string
	Variable string
	Reason   string
}

func (e *UnresolvedCouplingError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: cannot couple to %q: %s", e.Object, e.Variable, e.Reason)
	}
	return fmt.Sprintf("%s: cannot couple to %q: no such variable", e.Object, e.Variable)
}

// CapabilityError reports an object missing a capability its kind requires
type CapabilityError struct {
	Object  string
	Kind    Kind
	Missing string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %v objects must implement %s", e.Object, e.Kind, e.Missing)
}
