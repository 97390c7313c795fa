package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/espitsyna/ext-security-advisor/internal/plesk"
	"github.com/espitsyna/ext-security-advisor/internal/remediation"
)

// errBatchFailed makes the process exit 1 after a batch whose status is error.
var errBatchFailed = errors.New("batch failed")

// signalContext cancels on SIGINT/SIGTERM so in-flight utilities are killed.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// runBatch executes one remediation request, reports it and prints the outcome.
func runBatch(cmd *cobra.Command, req remediation.Request) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	runner, err := initBatchRunner(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	out := runner.orchestrator.RunBatch(ctx, req)
	runner.reporter.ReportBatch(ctx, req.Action, out)

	if err := printOutcome(cmd.OutOrStdout(), out, jsonOutput); err != nil {
		return err
	}
	if !out.OK() {
		return errBatchFailed
	}
	return nil
}

// printOutcome writes the outcome as the {status, statusMessages} document or
// as one coloured line per message.
func printOutcome(w io.Writer, out remediation.BatchOutcome, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, m := range out.Messages {
		label := colorInfo("[info]")
		if m.Status == remediation.MessageError {
			label = colorError("[error]")
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", label, m.Content); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Status: %s (%d succeeded, %d failed)\n",
		formatStatusWithColor(string(out.Status)), len(out.Succeeded), len(out.Failures()))
	return err
}

var letsencryptCmd = &cobra.Command{
	Use:   "letsencrypt <domain-id|domain-name>...",
	Short: "Issue Let's Encrypt certificates for domains",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, remediation.Request{Action: remediation.IssueCertificate, TargetIDs: args})
	},
}

var wordpressHTTPSCmd = &cobra.Command{
	Use:   "wordpress-https <instance-id>...",
	Short: "Switch WordPress sites to HTTPS URLs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, remediation.Request{Action: remediation.SwitchToHTTPS, TargetIDs: args})
	},
}

var securePanelCmd = &cobra.Command{
	Use:   "secure-panel",
	Short: "Secure the panel with a Let's Encrypt certificate for the server hostname",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		www, _ := cmd.Flags().GetBool("www")
		return runBatch(cmd, remediation.Request{
			Action:    remediation.SecurePanel,
			TargetIDs: []string{plesk.ServerTarget},
			Panel:     remediation.PanelOptions{Email: email, IncludeWWW: www},
		})
	},
}

var installExtensionCmd = &cobra.Command{
	Use:   "install-extension <extension-id>...",
	Short: "Install security extensions from the built-in catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, remediation.Request{Action: remediation.InstallScanner, TargetIDs: args})
	},
}

func init() {
	securePanelCmd.Flags().String("email", "", "administrator e-mail for the certificate (defaults to panel.letsencrypt_email)")
	securePanelCmd.Flags().Bool("www", false, "also cover the www. alias of the hostname")

	rootCmd.AddCommand(letsencryptCmd, wordpressHTTPSCmd, securePanelCmd, installExtensionCmd)
}
