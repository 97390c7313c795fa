package remediation

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/config"
	"github.com/espitsyna/ext-security-advisor/internal/telemetry"
)

// successTemplates format the aggregate message; %s is the joined target list.
var successTemplates = map[Action]string{
	IssueCertificate: "SSL/TLS certificates were issued for: %s",
	SwitchToHTTPS:    "WordPress was switched to HTTPS: %s",
	EnableHTTP2:      "HTTP/2 was enabled on: %s",
	DisableHTTP2:     "HTTP/2 was disabled on: %s",
	SecurePanel:      "The panel was secured with a certificate for: %s",
	InstallScanner:   "Extensions were installed: %s",
}

// Orchestrator runs a batch of targets through the Executor one at a time.
// A failing target never aborts the batch.
type Orchestrator struct {
	cfg       *config.OutputConfig
	log       *zap.Logger
	resolvers map[TargetKind]Resolver
	executor  *Executor
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg *config.Config, log *zap.Logger, deps Deps, executor *Executor) *Orchestrator {
	return &Orchestrator{
		cfg:       &cfg.Output,
		log:       log,
		resolvers: deps.Resolvers,
		executor:  executor,
	}
}

// RunBatch applies req.Action to every target ID in input order. Failure
// messages keep input order; when anything succeeded, one aggregate info
// message naming every succeeded target follows them and the batch status is
// success, even if some targets failed.
func (o *Orchestrator) RunBatch(ctx context.Context, req Request) BatchOutcome {
	ctx, span := telemetry.StartSpan(ctx, "remediation.batch",
		attribute.String("action", string(req.Action)),
		attribute.Int("targets", len(req.TargetIDs)),
	)

	o.log.Info("Starting remediation batch",
		zap.String("action", string(req.Action)),
		zap.Int("targets", len(req.TargetIDs)),
	)

	out := BatchOutcome{Status: StatusError, Messages: []StatusMessage{}}
	for _, id := range req.TargetIDs {
		res := o.runTarget(ctx, id, req)
		out.Results = append(out.Results, res)
		if res.Succeeded() {
			out.Succeeded = append(out.Succeeded, res.Display)
			continue
		}
		out.Messages = append(out.Messages, StatusMessage{Status: MessageError, Content: o.escape(res.Err.Error())})
	}

	if len(out.Succeeded) > 0 {
		out.Status = StatusSuccess
		out.Messages = append(out.Messages, StatusMessage{Status: MessageInfo, Content: o.summary(req.Action, out.Succeeded)})
	}

	span.SetAttributes(
		attribute.Int("succeeded", len(out.Succeeded)),
		attribute.Int("failed", len(out.Results)-len(out.Succeeded)),
	)
	var batchErr error
	if !out.OK() && len(req.TargetIDs) > 0 {
		batchErr = errors.New("every target failed")
	}
	telemetry.EndSpan(span, batchErr)

	o.log.Info("Remediation batch finished",
		zap.String("action", string(req.Action)),
		zap.String("status", string(out.Status)),
		zap.Int("succeeded", len(out.Succeeded)),
		zap.Int("failed", len(out.Results)-len(out.Succeeded)),
	)
	return out
}

// runTarget resolves and remediates one target ID.
func (o *Orchestrator) runTarget(ctx context.Context, id string, req Request) TargetResult {
	ctx, span := telemetry.StartSpan(ctx, "remediation.target", attribute.String("target", id))

	res := TargetResult{TargetID: id}
	target, err := o.resolve(ctx, id, req.Action.TargetKind())
	if err == nil {
		res.Display, err = o.executor.Apply(ctx, target, req.Action, req.Panel)
	}
	res.Err = err
	telemetry.EndSpan(span, err)

	if err != nil {
		o.log.Warn("Remediation failed",
			zap.String("target", id),
			zap.String("action", string(req.Action)),
			zap.Error(err),
		)
	} else {
		o.log.Info("Remediation succeeded",
			zap.String("target", res.Display),
			zap.String("action", string(req.Action)),
		)
	}
	return res
}

func (o *Orchestrator) resolve(ctx context.Context, id string, kind TargetKind) (Target, error) {
	r, ok := o.resolvers[kind]
	if !ok || r == nil {
		return Target{}, fmt.Errorf("cannot resolve %s %s: %w", kind, id, ErrNoResolver)
	}
	target, err := r.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTargetUnresolved) {
			return Target{}, err
		}
		return Target{}, fmt.Errorf("failed to resolve %s %s: %w", kind, id, err)
	}
	return target, nil
}

// summary builds the aggregate success message.
func (o *Orchestrator) summary(action Action, succeeded []string) string {
	names := make([]string, len(succeeded))
	for i, name := range succeeded {
		switch {
		case o.cfg.LinkDomains && action == IssueCertificate:
			name = html.EscapeString(name)
			names[i] = fmt.Sprintf("<a href='https://%s' target='_blank'>%s</a>", name, name)
		default:
			names[i] = o.escape(name)
		}
	}

	tmpl, ok := successTemplates[action]
	if !ok {
		tmpl = "Completed for: %s"
	}
	return fmt.Sprintf(tmpl, strings.Join(names, ", "))
}

func (o *Orchestrator) escape(s string) string {
	if o.cfg.HTMLEscape {
		return html.EscapeString(s)
	}
	return s
}
