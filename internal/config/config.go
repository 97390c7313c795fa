package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/ini.v1"
)

// DefaultConfigPath is where the packaged YAML config is installed.
const DefaultConfigPath = "/etc/secw.yaml"

// configSearchPaths lists config file paths to try, in priority order.
var configSearchPaths = []string{
	"/etc/secw.yaml",
	"/etc/secw.yml",
	"/usr/local/psa/admin/conf/secw.conf", // legacy INI shipped with the panel extension
}

// Panel transport modes.
const (
	ModeLocal = "local"
	ModeAPI   = "api"
)

// FindConfigPath returns the first existing config file from the search paths.
// If none exist it returns an empty string and Load falls back to defaults.
func FindConfigPath() string {
	for _, path := range configSearchPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Config holds all configuration values for secw
type Config struct {
	Host      HostConfig      `koanf:"host"`
	Panel     PanelConfig     `koanf:"panel"`
	Invoker   InvokerConfig   `koanf:"invoker"`
	Output    OutputConfig    `koanf:"output"`
	Zabbix    ZabbixConfig    `koanf:"zabbix"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// HostConfig locates the host files and utilities the capability prober reads.
type HostConfig struct {
	VersionFile  string `koanf:"version_file"`
	PanelINI     string `koanf:"panel_ini"`
	DebianBinDir string `koanf:"debian_bin_dir"`
	RHELBinDir   string `koanf:"rhel_bin_dir"`
	HTTP2Utility string `koanf:"http2_utility"`
	// HTTP2Wrapper, when set, is executed with [utility, state] instead of
	// running the HTTP/2 utility directly. Other capabilities ignore it.
	HTTP2Wrapper string `koanf:"http2_wrapper"`
	Hostname     string `koanf:"hostname"`

	// PanelCertificate is the PEM bundle the panel web server presents.
	PanelCertificate string `koanf:"panel_certificate"`
}

// PanelConfig holds settings for reaching the Plesk CLI, locally or over REST.
type PanelConfig struct {
	Mode             string `koanf:"mode"`
	PleskBin         string `koanf:"plesk_bin"`
	APIURL           string `koanf:"api_url"`
	APIKey           string `koanf:"api_key"`
	VerifySSL        bool   `koanf:"verify_ssl"`
	Timeout          int    `koanf:"timeout"`
	RateLimit        int    `koanf:"rate_limit"`
	LetsEncryptEmail string `koanf:"letsencrypt_email"`
	IncludeWWW       bool   `koanf:"include_www"`
}

// InvokerConfig bounds external utility invocations.
type InvokerConfig struct {
	Timeout int `koanf:"timeout"`
}

// OutputConfig controls how batch messages are rendered.
type OutputConfig struct {
	HTMLEscape  bool `koanf:"html_escape"`
	LinkDomains bool `koanf:"link_domains"`
}

// ZabbixConfig holds zabbix_sender settings for reporting outcomes.
type ZabbixConfig struct {
	Enabled    bool   `koanf:"enabled"`
	SenderPath string `koanf:"sender_path"`
	ServerFQDN string `koanf:"server_fqdn"`
	ServerPort int    `koanf:"server_port"`
	Host       string `koanf:"host"`
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Host: HostConfig{
			VersionFile:  "/usr/local/psa/version",
			PanelINI:     "/usr/local/psa/admin/conf/panel.ini",
			DebianBinDir: "/opt/psa/bin",
			RHELBinDir:   "/usr/local/psa/bin",
			HTTP2Utility: "http2_pref",

			PanelCertificate: "/usr/local/psa/admin/conf/httpsd.pem",
		},
		Panel: PanelConfig{
			Mode:      ModeLocal,
			PleskBin:  "/usr/sbin/plesk",
			APIURL:    "https://localhost:8443",
			VerifySSL: true,
			Timeout:   30,
			RateLimit: 10,
		},
		Invoker: InvokerConfig{
			Timeout: 60,
		},
		Zabbix: ZabbixConfig{
			SenderPath: "zabbix_sender",
			ServerFQDN: "localhost",
			ServerPort: 10051,
		},
	}
}

// Load reads configuration from a file, auto-detecting format by extension.
// .yaml/.yml → YAML (Koanf), .conf/.ini or anything else → legacy INI.
// An empty path means defaults only. Environment variables (SECW_ prefix)
// always override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		return loadDefaultsOnly()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		return loadINI(path)
	}
}

func loadDefaultsOnly() (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, err
	}
	if err := loadEnvOverrides(k); err != nil {
		return nil, err
	}

	return unmarshalAndValidate(k)
}

// loadYAML loads config from a YAML file with Koanf.
func loadYAML(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file: %w", err)
	}

	if err := loadEnvOverrides(k); err != nil {
		return nil, err
	}

	return unmarshalAndValidate(k)
}

// loadINI loads config from the legacy INI file written by the panel extension.
func loadINI(path string) (*Config, error) {
	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse INI config file: %w", err)
	}

	m, warnings := iniToMap(iniFile)
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "WARNING: %s\n", w)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load INI values: %w", err)
	}

	if err := loadEnvOverrides(k); err != nil {
		return nil, err
	}

	return unmarshalAndValidate(k)
}

// LoadINIWithWarnings reads a legacy INI file without env overrides and
// returns warnings for keys that were skipped. Used by migrate-config.
func LoadINIWithWarnings(path string) (*Config, []string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("config file not found: %s", path)
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse INI config file: %w", err)
	}

	m, warnings := iniToMap(iniFile)

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, nil, err
	}

	if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
		return nil, nil, fmt.Errorf("failed to load INI values: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, warnings, nil
}

// iniKeyMap maps INI key names (lowercased) to koanf key paths.
var iniKeyMap = map[string]string{
	// HOST section
	"versionfile":  "host.version_file",
	"panelini":     "host.panel_ini",
	"debianbindir": "host.debian_bin_dir",
	"rhelbindir":   "host.rhel_bin_dir",
	"http2utility": "host.http2_utility",
	"http2wrapper": "host.http2_wrapper",
	"hostname":     "host.hostname",
	"panelcert":    "host.panel_certificate",
	// PANEL section
	"panelmode":        "panel.mode",
	"pleskbin":         "panel.plesk_bin",
	"apiurl":           "panel.api_url",
	"apikey":           "panel.api_key",
	"verifyssl":        "panel.verify_ssl",
	"apitimeout":       "panel.timeout",
	"apiratelimit":     "panel.rate_limit",
	"letsencryptemail": "panel.letsencrypt_email",
	"includewww":       "panel.include_www",
	// ADVANCED section
	"invokertimeout":   "invoker.timeout",
	"htmlescape":       "output.html_escape",
	"linkdomains":      "output.link_domains",
	"zabbixenabled":    "zabbix.enabled",
	"zabbixsender":     "zabbix.sender_path",
	"zabbixserverfqdn": "zabbix.server_fqdn",
	"zabbixserverport": "zabbix.server_port",
	"zabbixhost":       "zabbix.host",
	"telemetryenabled": "telemetry.enabled",
	"otlpendpoint":     "telemetry.otlp_endpoint",
}

// legacyINIKeys lists keys the PHP extension wrote that have no equivalent here.
var legacyINIKeys = map[string]bool{
	"letsencryptinstallurl": true, // extension catalog is built in
	"templatedir":           true, // no HTML rendering
	"badgestyle":            true, // no HTML rendering
	"accesslevel":           true, // CLI runs as root
}

// iniToMap maps legacy INI section/key names to the nested koanf key namespace.
// It returns the mapped values and a slice of warnings for unrecognized keys.
func iniToMap(f *ini.File) (map[string]interface{}, []string) {
	m := make(map[string]interface{})
	var warnings []string

	for _, section := range f.Sections() {
		for _, key := range section.Keys() {
			normalised := strings.ToLower(key.Name())
			if koanfKey, ok := iniKeyMap[normalised]; ok {
				m[koanfKey] = key.Value()
			} else if legacyINIKeys[normalised] {
				warnings = append(warnings, fmt.Sprintf("extension-only INI key [%s] %s is not supported (skipped)", section.Name(), key.Name()))
			} else if section.Name() != ini.DefaultSection {
				warnings = append(warnings, fmt.Sprintf("unrecognized INI key [%s] %s (skipped)", section.Name(), key.Name()))
			}
		}
	}

	return m, warnings
}

// --- helpers ---

func loadDefaults(k *koanf.Koanf) error {
	defaults := DefaultConfig()
	return k.Load(confmap.Provider(map[string]interface{}{
		"host.version_file":       defaults.Host.VersionFile,
		"host.panel_ini":          defaults.Host.PanelINI,
		"host.debian_bin_dir":     defaults.Host.DebianBinDir,
		"host.rhel_bin_dir":       defaults.Host.RHELBinDir,
		"host.http2_utility":      defaults.Host.HTTP2Utility,
		"host.http2_wrapper":      defaults.Host.HTTP2Wrapper,
		"host.hostname":           defaults.Host.Hostname,
		"host.panel_certificate":  defaults.Host.PanelCertificate,
		"panel.mode":              defaults.Panel.Mode,
		"panel.plesk_bin":         defaults.Panel.PleskBin,
		"panel.api_url":           defaults.Panel.APIURL,
		"panel.verify_ssl":        defaults.Panel.VerifySSL,
		"panel.timeout":           defaults.Panel.Timeout,
		"panel.rate_limit":        defaults.Panel.RateLimit,
		"panel.include_www":       defaults.Panel.IncludeWWW,
		"invoker.timeout":         defaults.Invoker.Timeout,
		"output.html_escape":      defaults.Output.HTMLEscape,
		"output.link_domains":     defaults.Output.LinkDomains,
		"zabbix.enabled":          defaults.Zabbix.Enabled,
		"zabbix.sender_path":      defaults.Zabbix.SenderPath,
		"zabbix.server_fqdn":      defaults.Zabbix.ServerFQDN,
		"zabbix.server_port":      defaults.Zabbix.ServerPort,
		"telemetry.enabled":       defaults.Telemetry.Enabled,
		"telemetry.otlp_endpoint": defaults.Telemetry.OTLPEndpoint,
	}, "."), nil)
}

func loadEnvOverrides(k *koanf.Koanf) error {
	// SECW_PANEL_API_KEY → panel.api_key
	return k.Load(env.Provider("SECW_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "SECW_")
		s = strings.ToLower(s)
		if idx := strings.Index(s, "_"); idx >= 0 {
			return s[:idx] + "." + s[idx+1:]
		}
		return s
	}), nil)
}

func unmarshalAndValidate(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that required fields are set and values are in range.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Host.VersionFile == "" {
		errs = append(errs, fmt.Errorf("host.version_file is required"))
	}
	if c.Host.HTTP2Utility == "" {
		errs = append(errs, fmt.Errorf("host.http2_utility is required"))
	}
	if strings.ContainsRune(c.Host.HTTP2Utility, '/') {
		errs = append(errs, fmt.Errorf("host.http2_utility must be a file name, not a path: %q", c.Host.HTTP2Utility))
	}

	switch c.Panel.Mode {
	case ModeLocal:
		if c.Panel.PleskBin == "" {
			errs = append(errs, fmt.Errorf("panel.plesk_bin is required in local mode"))
		}
	case ModeAPI:
		u, err := url.Parse(c.Panel.APIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("panel.api_url must be a valid URL with scheme and host"))
		}
		if c.Panel.APIKey == "" {
			errs = append(errs, fmt.Errorf("panel.api_key is required in api mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("panel.mode must be %q or %q, got %q", ModeLocal, ModeAPI, c.Panel.Mode))
	}

	if c.Panel.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("panel.timeout must be greater than 0, got %d", c.Panel.Timeout))
	}
	if c.Panel.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("panel.rate_limit must be >= 0, got %d", c.Panel.RateLimit))
	}
	if c.Panel.LetsEncryptEmail != "" && !strings.Contains(c.Panel.LetsEncryptEmail, "@") {
		errs = append(errs, fmt.Errorf("panel.letsencrypt_email is not an e-mail address: %q", c.Panel.LetsEncryptEmail))
	}
	if c.Invoker.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("invoker.timeout must be greater than 0, got %d", c.Invoker.Timeout))
	}

	if c.Zabbix.Enabled {
		if c.Zabbix.ServerPort < 1 || c.Zabbix.ServerPort > 65535 {
			errs = append(errs, fmt.Errorf("zabbix.server_port must be between 1 and 65535, got %d", c.Zabbix.ServerPort))
		}
		if c.Zabbix.Host == "" {
			errs = append(errs, fmt.Errorf("zabbix.host is required when zabbix reporting is enabled"))
		}
	}

	return errors.Join(errs...)
}

// PanelAPIURL returns the REST API base URL
func (c *Config) PanelAPIURL() string {
	return strings.TrimRight(c.Panel.APIURL, "/") + "/api/v2"
}
