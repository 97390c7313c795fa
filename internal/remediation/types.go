// Package remediation applies security remediation actions to batches of
// targets and aggregates the per-target outcomes into one report.
package remediation

import (
	"fmt"
	"strings"
)

// Action is a remediation applied to every target of a batch.
type Action string

const (
	IssueCertificate Action = "letsencrypt"
	SwitchToHTTPS    Action = "wordpress-https"
	EnableHTTP2      Action = "http2-enable"
	DisableHTTP2     Action = "http2-disable"
	SecurePanel      Action = "secure-panel"
	InstallScanner   Action = "install-extension"
)

// Actions lists every supported action.
var Actions = []Action{IssueCertificate, SwitchToHTTPS, EnableHTTP2, DisableHTTP2, SecurePanel, InstallScanner}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.TrimSpace(s))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAction, s)
	}
	return a, nil
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// TargetKind returns the kind of target the action operates on.
func (a Action) TargetKind() TargetKind {
	switch a {
	case IssueCertificate:
		return KindDomain
	case SwitchToHTTPS:
		return KindWordPress
	case InstallScanner:
		return KindExtension
	default:
		return KindHost
	}
}

// TargetKind classifies the resource a target ID refers to.
type TargetKind string

const (
	KindDomain    TargetKind = "domain"
	KindWordPress TargetKind = "wordpress"
	KindHost      TargetKind = "host"
	KindExtension TargetKind = "extension"
)

// Target is a resolved target ID.
type Target struct {
	ID   string
	Name string
	Kind TargetKind
}

// DisplayForm is how the target is named in messages.
func (t Target) DisplayForm() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// PanelOptions configure SecurePanel.
type PanelOptions struct {
	Email      string
	IncludeWWW bool
}

// Request is one batch: an action and the target IDs to apply it to.
type Request struct {
	Action    Action
	TargetIDs []string
	Panel     PanelOptions
}

// TargetResult is the outcome for one target ID.
type TargetResult struct {
	TargetID string
	Display  string
	Err      error
}

// Succeeded reports whether the action succeeded for this target.
func (r TargetResult) Succeeded() bool {
	return r.Err == nil
}

// Status is the overall batch status.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// MessageStatus tags a single status message.
type MessageStatus string

const (
	MessageInfo  MessageStatus = "info"
	MessageError MessageStatus = "error"
)

// StatusMessage is one line of the user-facing report.
type StatusMessage struct {
	Status  MessageStatus `json:"status"`
	Content string        `json:"content"`
}

// BatchOutcome is the aggregated report of a batch. Its JSON form is the
// {"status", "statusMessages"} object the panel UI renders.
type BatchOutcome struct {
	Status    Status          `json:"status"`
	Messages  []StatusMessage `json:"statusMessages"`
	Succeeded []string        `json:"-"`
	Results   []TargetResult  `json:"-"`
}

// OK reports whether the batch is an overall success.
func (o BatchOutcome) OK() bool {
	return o.Status == StatusSuccess
}

// Failures returns the error messages in input order.
func (o BatchOutcome) Failures() []string {
	var out []string
	for _, m := range o.Messages {
		if m.Status == MessageError {
			out = append(out, m.Content)
		}
	}
	return out
}
