package capability

import (
	"context"

	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/config"
	"github.com/espitsyna/ext-security-advisor/internal/invoker"
)

// invocationFailedCode is reported when the utility could not be run at all.
const invocationFailedCode = 2

// locateFailedCode is reported when the utility could not be located.
const locateFailedCode = 1

// Toggler switches capabilities through their panel utility. It does not
// re-probe state afterwards; callers that need confirmation must call
// Prober.IsCapabilityEnabled themselves.
type Toggler struct {
	cfg     *config.HostConfig
	log     *zap.Logger
	prober  *Prober
	invoker invoker.Invoker
}

// NewToggler creates a Toggler.
func NewToggler(cfg *config.Config, log *zap.Logger, prober *Prober, inv invoker.Invoker) *Toggler {
	return &Toggler{
		cfg:     &cfg.Host,
		log:     log,
		prober:  prober,
		invoker: inv,
	}
}

// HTTP2For returns the HTTP/2 capability with the configured utility name
// and wrapper.
func HTTP2For(cfg *config.Config) Capability {
	return http2ForHost(&cfg.Host)
}

func http2ForHost(h *config.HostConfig) Capability {
	c := HTTP2
	if h.HTTP2Utility != "" {
		c.Utility = h.HTTP2Utility
	}
	c.Wrapper = h.HTTP2Wrapper
	return c
}

// SetCapability runs the utility at utilityPath with the desired state token.
// An invocation failure yields code 2 with the failure text; a non-zero exit
// yields that code with stdout followed by stderr.
func (t *Toggler) SetCapability(ctx context.Context, utilityPath string, desired DesiredState) ToggleResult {
	return t.run(ctx, "", utilityPath, desired)
}

// run executes the utility, through wrapper when one is set.
func (t *Toggler) run(ctx context.Context, wrapper, utilityPath string, desired DesiredState) ToggleResult {
	program, args := utilityPath, []string{desired.Token()}
	if wrapper != "" {
		program, args = wrapper, []string{utilityPath, desired.Token()}
	}

	res, err := t.invoker.Run(ctx, program, args...)
	if err != nil {
		t.log.Warn("Capability utility could not be run",
			zap.String("utility", utilityPath),
			zap.Stringer("state", desired),
			zap.Error(err),
		)
		return ToggleResult{Code: invocationFailedCode, Messages: []string{err.Error()}}
	}

	if !res.OK() {
		t.log.Warn("Capability utility failed",
			zap.String("utility", utilityPath),
			zap.Stringer("state", desired),
			zap.Int("exit_code", res.ExitCode),
		)
		return ToggleResult{Code: res.ExitCode, Messages: []string{res.Output()}}
	}

	t.log.Info("Capability utility succeeded",
		zap.String("utility", utilityPath),
		zap.Stringer("state", desired),
	)
	return ToggleResult{}
}

// Toggle locates the capability's utility and sets the desired state.
func (t *Toggler) Toggle(ctx context.Context, c Capability, desired DesiredState) ToggleResult {
	path, err := t.prober.LocateUtility(c.Utility)
	if err != nil {
		msg := err.Error()
		if nf, ok := err.(*NotFoundError); ok {
			msg = nf.Reason
		}
		return ToggleResult{Code: locateFailedCode, Messages: []string{msg}}
	}
	return t.run(ctx, c.Wrapper, path, desired)
}

// ToggleHTTP2 toggles nginx HTTP/2 support.
func (t *Toggler) ToggleHTTP2(ctx context.Context, desired DesiredState) ToggleResult {
	return t.Toggle(ctx, http2ForHost(t.cfg), desired)
}
