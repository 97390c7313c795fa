// Package agent2 exposes host capability state to Zabbix Agent 2.
package agent2

import (
	"fmt"

	"go.uber.org/zap"
	"golang.zabbix.com/sdk/plugin"

	"github.com/espitsyna/ext-security-advisor/internal/capability"
	"github.com/espitsyna/ext-security-advisor/internal/config"
)

// PluginName is the name registered with Agent 2.
const PluginName = "SecurityWizard"

// Item keys.
const (
	KeyHTTP2Enabled = "secw.http2.enabled"
	KeyHTTP2Utility = "secw.http2.utility"
	KeyOSFamily     = "secw.os.family"
)

// Metrics is the key/description list passed to plugin.RegisterMetrics.
var Metrics = []string{
	KeyHTTP2Enabled, "Returns 1 if nginx HTTP/2 is enabled in panel.ini, 0 otherwise.",
	KeyHTTP2Utility, "Returns the path of the HTTP/2 toggle utility, empty if it is not installed.",
	KeyOSFamily, "Returns the host OS family: debian, rhel or empty.",
}

// Plugin implements Configurator and Exporter for Zabbix Agent 2. Every
// export probes the host afresh.
type Plugin struct {
	plugin.Base

	cfg *config.Config
}

// NewPlugin creates a new Plugin with default host paths.
func NewPlugin() *Plugin {
	return &Plugin{cfg: config.DefaultConfig()}
}

// --- Configurator ---

// Configure is called by Agent 2 to pass the Plugins.SecurityWizard.* options.
func (p *Plugin) Configure(_ *plugin.GlobalOptions, privateOptions any) {
	opts, ok := privateOptions.(map[string]string)
	if !ok {
		p.Errf("unexpected privateOptions type: %T", privateOptions)
		return
	}

	cfg := config.DefaultConfig()
	if v, ok := opts["VersionFile"]; ok {
		cfg.Host.VersionFile = v
	}
	if v, ok := opts["PanelIni"]; ok {
		cfg.Host.PanelINI = v
	}
	if v, ok := opts["DebianBinDir"]; ok {
		cfg.Host.DebianBinDir = v
	}
	if v, ok := opts["RhelBinDir"]; ok {
		cfg.Host.RHELBinDir = v
	}
	if v, ok := opts["Http2Utility"]; ok {
		cfg.Host.HTTP2Utility = v
	}
	p.cfg = cfg
}

// Validate checks the plugin options.
func (p *Plugin) Validate(privateOptions any) error {
	if privateOptions == nil {
		return nil
	}
	opts, ok := privateOptions.(map[string]string)
	if !ok {
		return fmt.Errorf("unexpected privateOptions type: %T", privateOptions)
	}
	if v, ok := opts["Http2Utility"]; ok && v == "" {
		return fmt.Errorf("Plugins.%s.Http2Utility must not be empty", PluginName)
	}
	return nil
}

// --- Exporter ---

// Export handles item key requests from Agent 2.
func (p *Plugin) Export(key string, _ []string, _ plugin.ContextProvider) (any, error) {
	prober := capability.NewProber(p.cfg, zap.NewNop())
	http2 := capability.HTTP2For(p.cfg)

	switch key {
	case KeyHTTP2Enabled:
		if prober.IsCapabilityEnabled(http2) {
			return 1, nil
		}
		return 0, nil

	case KeyHTTP2Utility:
		path, err := prober.LocateUtility(http2.Utility)
		if err != nil {
			return "", nil
		}
		return path, nil

	case KeyOSFamily:
		family, err := prober.OSFamily()
		if err != nil {
			return "", nil
		}
		return string(family), nil

	default:
		return nil, fmt.Errorf("unknown key: %s", key)
	}
}
