package remediation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/capability"
)

// Resolver maps an opaque target ID to a Target.
type Resolver interface {
	Resolve(ctx context.Context, id string) (Target, error)
}

// CertificateIssuer issues a TLS certificate for a domain.
type CertificateIssuer interface {
	IssueCertificate(ctx context.Context, domain string) error
}

// HTTPSSwitcher forces a WordPress instance onto https.
type HTTPSSwitcher interface {
	SwitchToHTTPS(ctx context.Context, instanceID string) error
}

// PanelSecurer secures the panel itself with a certificate for the host name.
type PanelSecurer interface {
	SecurePanel(ctx context.Context, hostname string, opts PanelOptions) error
}

// ExtensionInstaller installs a panel extension from its catalog ID.
type ExtensionInstaller interface {
	InstallExtension(ctx context.Context, id string) error
}

// CapabilityToggler switches host-wide HTTP/2 support.
type CapabilityToggler interface {
	ToggleHTTP2(ctx context.Context, desired capability.DesiredState) capability.ToggleResult
}

// Deps bundles the collaborators. A nil collaborator makes the actions that
// need it fail with ErrUnsupportedAction; a kind without a Resolver makes its
// targets fail with ErrNoResolver.
type Deps struct {
	Resolvers map[TargetKind]Resolver
	Issuer    CertificateIssuer
	Switcher  HTTPSSwitcher
	Securer   PanelSecurer
	Installer ExtensionInstaller
	Toggler   CapabilityToggler
}

// Executor applies one action to one resolved target.
type Executor struct {
	deps Deps
	log  *zap.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(deps Deps, log *zap.Logger) *Executor {
	return &Executor{deps: deps, log: log}
}

// Apply performs action on target and returns the target's display form.
// Every failure is a *RemediationError.
func (e *Executor) Apply(ctx context.Context, target Target, action Action, opts PanelOptions) (string, error) {
	if err := e.apply(ctx, target, action, opts); err != nil {
		var re *RemediationError
		if errors.As(err, &re) {
			err = re.Reason
		}
		return "", &RemediationError{Target: target, Reason: err}
	}
	return target.DisplayForm(), nil
}

func (e *Executor) apply(ctx context.Context, target Target, action Action, opts PanelOptions) error {
	switch action {
	case IssueCertificate:
		if e.deps.Issuer == nil {
			return unsupported(action)
		}
		return e.deps.Issuer.IssueCertificate(ctx, target.Name)

	case SwitchToHTTPS:
		if e.deps.Switcher == nil {
			return unsupported(action)
		}
		return e.deps.Switcher.SwitchToHTTPS(ctx, target.ID)

	case SecurePanel:
		if e.deps.Securer == nil {
			return unsupported(action)
		}
		return e.deps.Securer.SecurePanel(ctx, target.Name, opts)

	case InstallScanner:
		if e.deps.Installer == nil {
			return unsupported(action)
		}
		return e.deps.Installer.InstallExtension(ctx, target.ID)

	case EnableHTTP2, DisableHTTP2:
		if e.deps.Toggler == nil {
			return unsupported(action)
		}
		desired := capability.Enable
		if action == DisableHTTP2 {
			desired = capability.Disable
		}
		res := e.deps.Toggler.ToggleHTTP2(ctx, desired)
		if !res.OK() {
			e.log.Warn("HTTP/2 toggle failed",
				zap.Stringer("state", desired),
				zap.Int("code", res.Code),
			)
			return toggleFailure(res)
		}
		return nil

	default:
		return unsupported(action)
	}
}

func unsupported(action Action) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedAction, action)
}

// toggleFailure joins the non-empty toggle messages into one reason.
func toggleFailure(res capability.ToggleResult) error {
	var parts []string
	for _, m := range res.Messages {
		if m = strings.TrimSpace(m); m != "" {
			parts = append(parts, m)
		}
	}
	if len(parts) == 0 {
		return fmt.Errorf("toggle utility exited with code %d", res.Code)
	}
	return errors.New(strings.Join(parts, "; "))
}
