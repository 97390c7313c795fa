package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/capability"
	"github.com/espitsyna/ext-security-advisor/internal/plesk"
)

// securityStatus is the server overview. Counts are nil when they could not
// be determined.
type securityStatus struct {
	Hostname          string           `json:"hostname,omitempty"`
	OSFamily          string           `json:"os_family,omitempty"`
	HTTP2             capability.State `json:"http2"`
	PanelSecured      *bool            `json:"panel_secured"`
	InsecureDomains   *int             `json:"insecure_domains"`
	InsecureWordPress *int             `json:"insecure_wordpress"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the security state of the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		deps, err := initStatus(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}

		st := collectStatus(ctx, deps, time.Now())
		deps.reporter.ReportHTTP2(ctx, st.HTTP2.Enabled)

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		printStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

// collectStatus gathers every field it can; failures are logged and leave
// the field unset.
func collectStatus(ctx context.Context, deps *statusDeps, now time.Time) securityStatus {
	st := securityStatus{HTTP2: deps.prober.State(capability.HTTP2For(cfg))}

	if name, err := deps.host.Hostname(); err == nil {
		st.Hostname = name
	} else {
		log.Warn("Failed to determine hostname", zap.Error(err))
	}
	if family, err := deps.prober.OSFamily(); err == nil {
		st.OSFamily = string(family)
	} else {
		log.Debug("OS family unknown", zap.Error(err))
	}

	if secured, err := plesk.PanelSecured(cfg.Host.PanelCertificate, now); err == nil {
		st.PanelSecured = &secured
	} else {
		log.Warn("Failed to check panel certificate", zap.Error(err))
	}

	if n, err := plesk.CountInsecureDomains(ctx, deps.domains); err == nil {
		st.InsecureDomains = &n
	} else if errors.Is(err, plesk.ErrCertificatesUnknown) {
		log.Debug("Domain certificates unavailable", zap.Error(err))
	} else {
		log.Warn("Failed to count insecure domains", zap.Error(err))
	}

	if n, err := deps.wordpress.CountInsecureWordPress(ctx); err == nil {
		st.InsecureWordPress = &n
	} else {
		log.Warn("Failed to count insecure WordPress sites", zap.Error(err))
	}

	return st
}

func printStatus(w io.Writer, st securityStatus) {
	fmt.Fprintf(w, "Hostname:           %s\n", orUnknown(st.Hostname))
	fmt.Fprintf(w, "OS family:          %s\n", orUnknown(st.OSFamily))
	fmt.Fprintf(w, "HTTP/2:             %s\n", formatStatusWithColor(enabledWord(st.HTTP2.Enabled)))
	fmt.Fprintf(w, "HTTP/2 utility:     %s\n", orUnknown(st.HTTP2.UtilityPath))

	panel := "unknown"
	if st.PanelSecured != nil {
		panel = "insecure"
		if *st.PanelSecured {
			panel = "secured"
		}
	}
	fmt.Fprintf(w, "Panel certificate:  %s\n", formatStatusWithColor(panel))
	fmt.Fprintf(w, "Insecure domains:   %s\n", countOrUnknown(st.InsecureDomains))
	fmt.Fprintf(w, "Insecure WordPress: %s\n", countOrUnknown(st.InsecureWordPress))
}

func orUnknown(s string) string {
	if s == "" {
		return colorWarn("unknown")
	}
	return s
}

func countOrUnknown(n *int) string {
	switch {
	case n == nil:
		return colorWarn("unknown")
	case *n == 0:
		return colorSuccess("0")
	default:
		return colorError(fmt.Sprint(*n))
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
