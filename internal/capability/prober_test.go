package capability

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/config"
)

// hostFixture lays out a fake panel install under a temp dir.
type hostFixture struct {
	cfg *config.Config
	dir string
}

func newHostFixture(t *testing.T) *hostFixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Host.VersionFile = filepath.Join(dir, "version")
	cfg.Host.PanelINI = filepath.Join(dir, "panel.ini")
	cfg.Host.DebianBinDir = filepath.Join(dir, "opt", "psa", "bin")
	cfg.Host.RHELBinDir = filepath.Join(dir, "usr", "local", "psa", "bin")
	for _, d := range []string{cfg.Host.DebianBinDir, cfg.Host.RHELBinDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return &hostFixture{cfg: cfg, dir: dir}
}

func (h *hostFixture) write(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
}

func (h *hostFixture) prober() *Prober {
	return NewProber(h.cfg, zap.NewNop())
}

func TestParseFamily(t *testing.T) {
	tests := []struct {
		tag  string
		want Family
	}{
		{"Debian", FamilyDebian},
		{"Ubuntu", FamilyDebian},
		{"CentOS", FamilyRHEL},
		{"RedHat", FamilyRHEL},
		{"CloudLinux", FamilyRHEL},
		{"AlmaLinux", FamilyUnknown},
		{"ubuntu", FamilyUnknown},
		{"", FamilyUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			if got := ParseFamily(tt.tag); got != tt.want {
				t.Errorf("ParseFamily(%q) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestLocateUtility_Found(t *testing.T) {
	tests := []struct {
		name    string
		version string
		dir     func(*config.Config) string
	}{
		{"ubuntu", "18.0.52 Ubuntu 22.04 1800230324.10\n", func(c *config.Config) string { return c.Host.DebianBinDir }},
		{"debian", "17.8.11 Debian 10.0 1708200626.09", func(c *config.Config) string { return c.Host.DebianBinDir }},
		{"centos", "17.8.11 CentOS 7 1708200626.09", func(c *config.Config) string { return c.Host.RHELBinDir }},
		{"cloudlinux", "18.0.40 CloudLinux 8.6 1800211105.14", func(c *config.Config) string { return c.Host.RHELBinDir }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHostFixture(t)
			h.write(t, h.cfg.Host.VersionFile, tt.version, 0o644)
			want := filepath.Join(tt.dir(h.cfg), "http2_pref")
			h.write(t, want, "#!/bin/sh\n", 0o755)

			got, err := h.prober().LocateUtility("http2_pref")
			if err != nil {
				t.Fatalf("LocateUtility: %v", err)
			}
			if got != want {
				t.Errorf("LocateUtility = %q, want %q", got, want)
			}
		})
	}
}

func TestLocateUtility_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		version *string // nil = no version file
		install bool
	}{
		{"unreadable descriptor", nil, true},
		{"single token", strPtr("18.0.52"), true},
		{"empty descriptor", strPtr(""), true},
		{"unsupported os", strPtr("18.0.52 Gentoo 2.14 1800230324.10"), true},
		{"utility absent", strPtr("18.0.52 Ubuntu 22.04 1800230324.10"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHostFixture(t)
			if tt.version != nil {
				h.write(t, h.cfg.Host.VersionFile, *tt.version, 0o644)
			}
			if tt.install {
				h.write(t, filepath.Join(h.cfg.Host.DebianBinDir, "http2_pref"), "", 0o755)
				h.write(t, filepath.Join(h.cfg.Host.RHELBinDir, "http2_pref"), "", 0o755)
			}

			path, err := h.prober().LocateUtility("http2_pref")
			if path != "" {
				t.Errorf("path = %q, want empty", path)
			}
			if !errors.Is(err, ErrUtilityNotFound) {
				t.Errorf("err = %v, want ErrUtilityNotFound", err)
			}
		})
	}
}

func TestLocateUtility_DirectoryIsNotAUtility(t *testing.T) {
	h := newHostFixture(t)
	h.write(t, h.cfg.Host.VersionFile, "18.0.52 Debian 12 1", 0o644)
	if err := os.Mkdir(filepath.Join(h.cfg.Host.DebianBinDir, "http2_pref"), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := h.prober().LocateUtility("http2_pref"); !errors.Is(err, ErrUtilityNotFound) {
		t.Errorf("err = %v, want ErrUtilityNotFound", err)
	}
}

func TestIsCapabilityEnabled(t *testing.T) {
	tests := []struct {
		name string
		ini  *string // nil = no file
		want bool
	}{
		{"absent file", nil, false},
		{"malformed", strPtr("[webserver\nnginxHttp2 = true\n"), false},
		{"missing section", strPtr("[log]\nfilter.priority = 5\n"), false},
		{"missing key", strPtr("[webserver]\nsyncModeOnRemoveConfiguration = true\n"), false},
		{"empty value", strPtr("[webserver]\nnginxHttp2 =\n"), false},
		{"zero", strPtr("[webserver]\nnginxHttp2 = 0\n"), false},
		{"off", strPtr("[webserver]\nnginxHttp2 = off\n"), false},
		{"false", strPtr("[webserver]\nnginxHttp2 = false\n"), false},
		{"true", strPtr("[webserver]\nnginxHttp2 = true\n"), true},
		{"one", strPtr("[webserver]\nnginxHttp2 = 1\n"), true},
		{"on among other keys", strPtr("[ext-letsencrypt]\nrenew = true\n\n[webserver]\nnginxHttp2 = on\n"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHostFixture(t)
			if tt.ini != nil {
				h.write(t, h.cfg.Host.PanelINI, *tt.ini, 0o644)
			}
			if got := h.prober().IsCapabilityEnabled(HTTP2); got != tt.want {
				t.Errorf("IsCapabilityEnabled = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState(t *testing.T) {
	h := newHostFixture(t)
	h.write(t, h.cfg.Host.VersionFile, "18.0.52 RedHat 8 1", 0o644)
	h.write(t, h.cfg.Host.PanelINI, "[webserver]\nnginxHttp2 = true\n", 0o644)
	util := filepath.Join(h.cfg.Host.RHELBinDir, "http2_pref")
	h.write(t, util, "", 0o755)

	st := h.prober().State(HTTP2)
	if !st.Enabled {
		t.Error("expected enabled")
	}
	if st.UtilityPath != util {
		t.Errorf("UtilityPath = %q, want %q", st.UtilityPath, util)
	}
	if st.Name != "http2" {
		t.Errorf("Name = %q", st.Name)
	}
}

func strPtr(s string) *string { return &s }
