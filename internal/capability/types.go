package capability

import (
	"errors"
	"fmt"
)

// ErrUtilityNotFound is matched by every NotFoundError.
var ErrUtilityNotFound = errors.New("utility not found")

// NotFoundError explains why a utility could not be located.
type NotFoundError struct {
	Utility string
	Reason  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Utility, e.Reason)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrUtilityNotFound
}

// Family is a host OS family that determines the panel install root.
type Family string

const (
	FamilyUnknown Family = ""
	FamilyDebian  Family = "debian"
	FamilyRHEL    Family = "rhel"
)

// Capability is a host-wide binary feature persisted in the panel config.
type Capability struct {
	Name    string
	Section string
	Key     string
	Utility string
	// Wrapper, when set, is executed with [utility, state] instead of
	// running the utility directly.
	Wrapper string
}

// HTTP2 is nginx HTTP/2 support, toggled by http2_pref.
var HTTP2 = Capability{
	Name:    "http2",
	Section: "webserver",
	Key:     "nginxHttp2",
	Utility: "http2_pref",
}

// State is a point-in-time report on a capability.
type State struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	UtilityPath string `json:"utility_path,omitempty"`
}

// DesiredState is the target of a toggle.
type DesiredState int

const (
	Enable DesiredState = iota
	Disable
)

// Token is the argument the toggle utility expects.
func (d DesiredState) Token() string {
	if d == Disable {
		return "disable"
	}
	return "enable"
}

func (d DesiredState) String() string {
	return d.Token()
}

// ToggleResult is the outcome of SetCapability: Code 0 on success, otherwise
// the failure code with its diagnostic messages.
type ToggleResult struct {
	Code     int
	Messages []string
}

// OK reports whether the toggle utility succeeded.
func (r ToggleResult) OK() bool {
	return r.Code == 0
}

// Err folds a failed result into an error, nil on success.
func (r ToggleResult) Err() error {
	if r.OK() {
		return nil
	}
	return &ToggleError{Code: r.Code, Messages: r.Messages}
}

// ToggleError carries a failed ToggleResult.
type ToggleError struct {
	Code     int
	Messages []string
}

func (e *ToggleError) Error() string {
	msg := fmt.Sprintf("toggle failed with code %d", e.Code)
	for _, m := range e.Messages {
		if m != "" {
			msg += ": " + m
		}
	}
	return msg
}
