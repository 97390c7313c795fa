package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/espitsyna/ext-security-advisor/internal/capability"
	"github.com/espitsyna/ext-security-advisor/internal/plesk"
	"github.com/espitsyna/ext-security-advisor/internal/remediation"
	"github.com/espitsyna/ext-security-advisor/internal/zabbix"
)

var http2Cmd = &cobra.Command{
	Use:   "http2",
	Short: "Inspect or toggle nginx HTTP/2 support",
}

var http2EnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable HTTP/2 with the panel toggle utility",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHTTP2Toggle(cmd, remediation.EnableHTTP2, true)
	},
}

var http2DisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable HTTP/2 with the panel toggle utility",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHTTP2Toggle(cmd, remediation.DisableHTTP2, false)
	},
}

var http2StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether HTTP/2 is enabled and where the toggle utility lives",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			prober   *capability.Prober
			reporter *zabbix.Reporter
		)
		if err := buildApp(cfg, log, &prober, &reporter); err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}

		state := prober.State(capability.HTTP2For(cfg))
		reporter.ReportHTTP2(cmd.Context(), state.Enabled)

		w := cmd.OutOrStdout()
		if jsonOutput {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		}
		fmt.Fprintf(w, "HTTP/2:  %s\n", formatStatusWithColor(enabledWord(state.Enabled)))
		if state.UtilityPath != "" {
			fmt.Fprintf(w, "Utility: %s\n", state.UtilityPath)
		} else {
			fmt.Fprintf(w, "Utility: %s\n", colorWarn("not installed"))
		}
		return nil
	},
}

// runHTTP2Toggle runs the toggle as a single-target batch. The toggle never
// re-reads panel.ini, so --verify probes again afterwards.
func runHTTP2Toggle(cmd *cobra.Command, action remediation.Action, want bool) error {
	err := runBatch(cmd, remediation.Request{Action: action, TargetIDs: []string{plesk.ServerTarget}})
	if err != nil {
		return err
	}

	verify, _ := cmd.Flags().GetBool("verify")
	if !verify {
		return nil
	}
	enabled := capability.NewProber(cfg, log).IsCapabilityEnabled(capability.HTTP2For(cfg))
	if enabled != want {
		return fmt.Errorf("toggle utility succeeded but HTTP/2 is still %s in panel.ini", enabledWord(enabled))
	}
	return nil
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func init() {
	for _, c := range []*cobra.Command{http2EnableCmd, http2DisableCmd} {
		c.Flags().Bool("verify", false, "re-read panel.ini after toggling and fail if the state did not change")
	}
	http2Cmd.AddCommand(http2EnableCmd, http2DisableCmd, http2StatusCmd)
	rootCmd.AddCommand(http2Cmd)
}
