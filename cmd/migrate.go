package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/spf13/cobra"

	"github.com/espitsyna/ext-security-advisor/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate-config <legacy.conf> [output.yaml]",
	Short: "Convert the legacy INI config written by the panel extension to YAML",
	Long: `Reads the legacy INI config and writes the equivalent YAML.
Only values that differ from the defaults are written. Without an
output path the YAML is printed to stdout.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		migrated, warnings, err := config.LoadINIWithWarnings(args[0])
		if err != nil {
			return err
		}
		for _, w := range warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", colorWarn("WARNING:"), w)
		}

		out, err := renderYAML(migrated)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			_, err := cmd.OutOrStdout().Write(out)
			return err
		}
		if err := os.WriteFile(args[1], out, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", args[1], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", colorSuccess("OK"), args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// yamlWriter emits one "section:" block per group, skipping defaults and
// sections with nothing to write.
type yamlWriter struct {
	buf     bytes.Buffer
	section string
	pending bool
}

func (w *yamlWriter) begin(section string) {
	w.section = section
	w.pending = true
}

func (w *yamlWriter) line(key, value string) {
	if w.pending {
		if w.buf.Len() > 0 {
			w.buf.WriteByte('\n')
		}
		fmt.Fprintf(&w.buf, "%s:\n", w.section)
		w.pending = false
	}
	fmt.Fprintf(&w.buf, "  %s: %s\n", key, value)
}

func (w *yamlWriter) str(key, value, def string) {
	if value != def {
		w.line(key, yamlQuote(value))
	}
}

func (w *yamlWriter) integer(key string, value, def int) {
	if value != def {
		w.line(key, strconv.Itoa(value))
	}
}

func (w *yamlWriter) boolean(key string, value, def bool) {
	if value != def {
		w.line(key, strconv.FormatBool(value))
	}
}

// renderYAML renders the non-default values of cfg and checks that the
// result parses.
func renderYAML(c *config.Config) ([]byte, error) {
	d := config.DefaultConfig()
	var w yamlWriter

	w.begin("host")
	w.str("version_file", c.Host.VersionFile, d.Host.VersionFile)
	w.str("panel_ini", c.Host.PanelINI, d.Host.PanelINI)
	w.str("debian_bin_dir", c.Host.DebianBinDir, d.Host.DebianBinDir)
	w.str("rhel_bin_dir", c.Host.RHELBinDir, d.Host.RHELBinDir)
	w.str("http2_utility", c.Host.HTTP2Utility, d.Host.HTTP2Utility)
	w.str("http2_wrapper", c.Host.HTTP2Wrapper, d.Host.HTTP2Wrapper)
	w.str("hostname", c.Host.Hostname, d.Host.Hostname)
	w.str("panel_certificate", c.Host.PanelCertificate, d.Host.PanelCertificate)

	w.begin("panel")
	w.str("mode", c.Panel.Mode, d.Panel.Mode)
	w.str("plesk_bin", c.Panel.PleskBin, d.Panel.PleskBin)
	w.str("api_url", c.Panel.APIURL, d.Panel.APIURL)
	w.str("api_key", c.Panel.APIKey, d.Panel.APIKey)
	w.boolean("verify_ssl", c.Panel.VerifySSL, d.Panel.VerifySSL)
	w.integer("timeout", c.Panel.Timeout, d.Panel.Timeout)
	w.integer("rate_limit", c.Panel.RateLimit, d.Panel.RateLimit)
	w.str("letsencrypt_email", c.Panel.LetsEncryptEmail, d.Panel.LetsEncryptEmail)
	w.boolean("include_www", c.Panel.IncludeWWW, d.Panel.IncludeWWW)

	w.begin("invoker")
	w.integer("timeout", c.Invoker.Timeout, d.Invoker.Timeout)

	w.begin("output")
	w.boolean("html_escape", c.Output.HTMLEscape, d.Output.HTMLEscape)
	w.boolean("link_domains", c.Output.LinkDomains, d.Output.LinkDomains)

	w.begin("zabbix")
	w.boolean("enabled", c.Zabbix.Enabled, d.Zabbix.Enabled)
	w.str("sender_path", c.Zabbix.SenderPath, d.Zabbix.SenderPath)
	w.str("server_fqdn", c.Zabbix.ServerFQDN, d.Zabbix.ServerFQDN)
	w.integer("server_port", c.Zabbix.ServerPort, d.Zabbix.ServerPort)
	w.str("host", c.Zabbix.Host, d.Zabbix.Host)

	w.begin("telemetry")
	w.boolean("enabled", c.Telemetry.Enabled, d.Telemetry.Enabled)
	w.str("otlp_endpoint", c.Telemetry.OTLPEndpoint, d.Telemetry.OTLPEndpoint)

	out := w.buf.Bytes()
	if _, err := yaml.Parser().Unmarshal(out); err != nil {
		return nil, fmt.Errorf("rendered YAML does not parse: %w", err)
	}
	return out, nil
}

// yamlQuote double-quotes values YAML would otherwise misread, including
// plain scalars that resolve to numbers, booleans or null.
func yamlQuote(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, ":#\"'") || strings.TrimSpace(s) != s ||
		strings.ContainsAny(s[:1], "@`!&*%{}[]|>-?,") || yaml11Keywords[strings.ToLower(s)] || !plainString(s) {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		return `"` + s + `"`
	}
	return s
}

// yaml11Keywords are read as booleans or null by YAML 1.1 readers even where
// the 1.2 core schema keeps them as strings.
var yaml11Keywords = map[string]bool{
	"y": true, "yes": true, "n": true, "no": true,
	"on": true, "off": true, "true": true, "false": true,
	"null": true, "~": true,
}

// plainString reports whether s written unquoted parses back as the same string.
func plainString(s string) bool {
	m, err := yaml.Parser().Unmarshal([]byte("v: " + s))
	if err != nil {
		return false
	}
	v, ok := m["v"].(string)
	return ok && v == s
}
