package cmd

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/capability"
	"github.com/espitsyna/ext-security-advisor/internal/config"
	"github.com/espitsyna/ext-security-advisor/internal/invoker"
	"github.com/espitsyna/ext-security-advisor/internal/plesk"
	"github.com/espitsyna/ext-security-advisor/internal/remediation"
	"github.com/espitsyna/ext-security-advisor/internal/zabbix"
)

// buildApp composes every module and fills targets from the graph.
func buildApp(cfg *config.Config, log *zap.Logger, targets ...any) error {
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg, log),
		invoker.Module,
		capability.Module,
		plesk.Module,
		remediation.Module,
		zabbix.Module,
		fx.Populate(targets...),
	)
	return app.Err()
}

// batchRunner is what every remediation command needs.
type batchRunner struct {
	orchestrator *remediation.Orchestrator
	reporter     *zabbix.Reporter
}

func initBatchRunner(cfg *config.Config, log *zap.Logger) (*batchRunner, error) {
	var r batchRunner
	if err := buildApp(cfg, log, &r.orchestrator, &r.reporter); err != nil {
		return nil, err
	}
	return &r, nil
}

// statusDeps is what the status report reads.
type statusDeps struct {
	prober    *capability.Prober
	domains   plesk.DomainSource
	wordpress *plesk.WordPress
	host      *plesk.HostResolver
	reporter  *zabbix.Reporter
}

func initStatus(cfg *config.Config, log *zap.Logger) (*statusDeps, error) {
	var d statusDeps
	if err := buildApp(cfg, log, &d.prober, &d.domains, &d.wordpress, &d.host, &d.reporter); err != nil {
		return nil, err
	}
	return &d, nil
}
