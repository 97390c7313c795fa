package plesk

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/capability"
	"github.com/espitsyna/ext-security-advisor/internal/config"
	"github.com/espitsyna/ext-security-advisor/internal/invoker"
	"github.com/espitsyna/ext-security-advisor/internal/remediation"
)

// Module provides the panel transport, the collaborators and the
// remediation.Deps bundle. It expects an invoker.Invoker and a
// *capability.Toggler in the graph.
var Module = fx.Module("plesk",
	fx.Provide(
		NewTransport,
		NewLetsEncrypt,
		NewWordPress,
		NewExtensions,
		NewHostResolver,
		NewDomainResolver,
		ProvideDeps,
	),
)

// NewTransport selects the CLI and domain source for the configured mode. In
// api mode it fails fast when the panel rejects the handshake.
func NewTransport(cfg *config.Config, inv invoker.Invoker, log *zap.Logger) (CLI, DomainSource, error) {
	if cfg.Panel.Mode == config.ModeAPI {
		c, err := NewAPIClient(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Panel.Timeout)*time.Second)
		defer cancel()
		if _, err := c.Handshake(ctx); err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}
	c := NewLocalCLI(cfg, inv, log)
	return c, c, nil
}

// ProvideDeps assembles the remediation collaborators.
func ProvideDeps(
	domains *DomainResolver,
	wp *WordPress,
	le *LetsEncrypt,
	ext *Extensions,
	host *HostResolver,
	toggler *capability.Toggler,
) remediation.Deps {
	return remediation.Deps{
		Resolvers: map[remediation.TargetKind]remediation.Resolver{
			remediation.KindDomain:    domains,
			remediation.KindWordPress: wp,
			remediation.KindHost:      host,
			remediation.KindExtension: ext,
		},
		Issuer:    le,
		Switcher:  wp,
		Securer:   le,
		Installer: ext,
		Toggler:   toggler,
	}
}
