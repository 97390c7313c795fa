// Package capability probes and toggles host-wide panel features such as
// nginx HTTP/2 support.
package capability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/ini.v1"

	"github.com/espitsyna/ext-security-advisor/internal/config"
)

// Prober reads host files to locate utilities and report capability state.
// Nothing is cached: every call re-reads the files.
type Prober struct {
	cfg *config.HostConfig
	log *zap.Logger
}

// NewProber creates a Prober for the configured host paths.
func NewProber(cfg *config.Config, log *zap.Logger) *Prober {
	return &Prober{cfg: &cfg.Host, log: log}
}

// ParseFamily maps an OS family tag from the version descriptor.
func ParseFamily(tag string) Family {
	switch tag {
	case "Debian", "Ubuntu":
		return FamilyDebian
	case "CentOS", "RedHat", "CloudLinux":
		return FamilyRHEL
	default:
		return FamilyUnknown
	}
}

// OSFamily reads the version descriptor and returns the host OS family.
// The descriptor looks like "18.0.52 Ubuntu 22.04 1800230324.10".
func (p *Prober) OSFamily() (Family, error) {
	data, err := os.ReadFile(p.cfg.VersionFile)
	if err != nil {
		return FamilyUnknown, fmt.Errorf("failed to read version file: %w", err)
	}

	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return FamilyUnknown, fmt.Errorf("malformed version file %s: %d tokens", p.cfg.VersionFile, len(fields))
	}

	family := ParseFamily(fields[1])
	if family == FamilyUnknown {
		return FamilyUnknown, fmt.Errorf("unsupported OS %q", fields[1])
	}
	return family, nil
}

// BinDir returns the panel bin directory for the host OS family.
func (p *Prober) BinDir() (string, error) {
	family, err := p.OSFamily()
	if err != nil {
		return "", err
	}
	if family == FamilyDebian {
		return p.cfg.DebianBinDir, nil
	}
	return p.cfg.RHELBinDir, nil
}

// LocateUtility returns the absolute path of a panel utility. Every failure,
// including an unreadable descriptor or unsupported OS, is a NotFoundError.
func (p *Prober) LocateUtility(name string) (string, error) {
	dir, err := p.BinDir()
	if err != nil {
		return "", &NotFoundError{Utility: name, Reason: "Failed to determine the Plesk bin directory: " + err.Error()}
	}

	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", &NotFoundError{Utility: name, Reason: fmt.Sprintf("The %s utility is not installed", name)}
	}
	return path, nil
}

// IsCapabilityEnabled reports whether the capability is switched on in the
// panel config. Any read or parse problem counts as disabled so that probing
// never blocks a caller.
func (p *Prober) IsCapabilityEnabled(c Capability) bool {
	enabled, err := p.probeCapability(c)
	if err != nil {
		p.log.Debug("Capability state unavailable, treating as disabled",
			zap.String("capability", c.Name),
			zap.Error(err),
		)
		return false
	}
	return enabled
}

// probeCapability distinguishes "disabled" from "could not tell".
func (p *Prober) probeCapability(c Capability) (bool, error) {
	f, err := ini.Load(p.cfg.PanelINI)
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", p.cfg.PanelINI, err)
	}

	section, err := f.GetSection(c.Section)
	if err != nil {
		return false, fmt.Errorf("section [%s] missing", c.Section)
	}
	if !section.HasKey(c.Key) {
		return false, fmt.Errorf("key %s missing in [%s]", c.Key, c.Section)
	}

	return truthy(section.Key(c.Key).String()), nil
}

// truthy follows panel.ini boolean conventions.
func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "off", "no", "none", "null":
		return false
	default:
		return true
	}
}

// State reports the capability and the utility path used to toggle it.
func (p *Prober) State(c Capability) State {
	st := State{Name: c.Name, Enabled: p.IsCapabilityEnabled(c)}
	if path, err := p.LocateUtility(c.Utility); err == nil {
		st.UtilityPath = path
	}
	return st
}
