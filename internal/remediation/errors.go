package remediation

import (
	"errors"
	"fmt"
)

var (
	// ErrTargetUnresolved is matched by every UnresolvedError.
	ErrTargetUnresolved = errors.New("unknown target")
	// ErrUnsupportedAction means no collaborator handles the action.
	ErrUnsupportedAction = errors.New("unsupported action")
	// ErrNoResolver means no Resolver is registered for the target kind.
	ErrNoResolver = errors.New("no resolver registered")
)

// UnresolvedError reports a target ID that does not map to a known resource.
type UnresolvedError struct {
	Kind TargetKind
	ID   string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unknown %s: %s", e.Kind, e.ID)
}

func (e *UnresolvedError) Is(target error) bool {
	return target == ErrTargetUnresolved
}

// RemediationError is a failed action on one target. Collaborator errors are
// always re-expressed as a RemediationError before leaving the Executor.
type RemediationError struct {
	Target Target
	Reason error
}

func (e *RemediationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Target.DisplayForm(), e.Reason)
}

func (e *RemediationError) Unwrap() error {
	return e.Reason
}
