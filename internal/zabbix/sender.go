// Package zabbix reports remediation outcomes and capability state to Zabbix
// trapper items through zabbix_sender.
package zabbix

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/config"
	"github.com/espitsyna/ext-security-advisor/internal/invoker"
	"github.com/espitsyna/ext-security-advisor/internal/remediation"
)

// Trapper item keys.
const (
	KeyBatchOutcome = "secw.batch.outcome"
	KeyHTTP2        = "secw.http2"
)

// Sender wraps zabbix_sender for sending data to Zabbix.
type Sender struct {
	cfg     *config.ZabbixConfig
	log     *zap.Logger
	invoker invoker.Invoker
}

// SenderData represents data to be sent to Zabbix.
type SenderData struct {
	Host  string
	Key   string
	Value string
}

// NewSender creates a new Zabbix sender.
func NewSender(cfg *config.Config, log *zap.Logger, inv invoker.Invoker) *Sender {
	return &Sender{cfg: &cfg.Zabbix, log: log, invoker: inv}
}

// quote renders a value for the zabbix_sender input file.
func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	return `"` + v + `"`
}

// formatInput builds the "host key value" lines zabbix_sender reads with -i.
func formatInput(data []SenderData) string {
	var b strings.Builder
	for _, d := range data {
		fmt.Fprintf(&b, "%s %s %s\n", quote(d.Host), quote(d.Key), quote(d.Value))
	}
	return b.String()
}

// Send sends data to Zabbix using zabbix_sender.
func (s *Sender) Send(ctx context.Context, data []SenderData) error {
	if len(data) == 0 {
		return nil
	}

	f, err := os.CreateTemp("", "secw-sender-*.txt")
	if err != nil {
		return fmt.Errorf("failed to create sender input: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()

	if _, err := f.WriteString(formatInput(data)); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write sender input: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write sender input: %w", err)
	}

	s.log.Debug("Sending data to Zabbix", zap.Int("items", len(data)))

	res, err := s.invoker.Run(ctx, s.cfg.SenderPath,
		"-z", s.cfg.ServerFQDN,
		"-p", strconv.Itoa(s.cfg.ServerPort),
		"-i", f.Name(),
	)
	if err != nil {
		return fmt.Errorf("zabbix_sender failed: %w", err)
	}
	if !res.OK() {
		return fmt.Errorf("zabbix_sender failed: %w", res.Err())
	}

	s.log.Debug("zabbix_sender completed", zap.String("output", strings.TrimSpace(res.Stdout)))
	return nil
}

// SendJSON sends JSON data to a trapper item.
func (s *Sender) SendJSON(ctx context.Context, host, key string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	return s.Send(ctx, []SenderData{{Host: host, Key: key, Value: string(jsonData)}})
}

// batchReport is the secw.batch.outcome payload.
type batchReport struct {
	Action    string                      `json:"action"`
	Status    remediation.Status          `json:"status"`
	Succeeded int                         `json:"succeeded"`
	Failed    int                         `json:"failed"`
	Messages  []remediation.StatusMessage `json:"statusMessages"`
}

// Reporter pushes outcomes when reporting is enabled. Delivery failures are
// logged and never returned.
type Reporter struct {
	cfg    *config.ZabbixConfig
	log    *zap.Logger
	sender *Sender
}

// NewReporter creates a Reporter.
func NewReporter(cfg *config.Config, log *zap.Logger, sender *Sender) *Reporter {
	return &Reporter{cfg: &cfg.Zabbix, log: log, sender: sender}
}

// ReportBatch sends the aggregated outcome of one batch.
func (r *Reporter) ReportBatch(ctx context.Context, action remediation.Action, out remediation.BatchOutcome) {
	if !r.cfg.Enabled {
		return
	}
	report := batchReport{
		Action:    string(action),
		Status:    out.Status,
		Succeeded: len(out.Succeeded),
		Failed:    len(out.Results) - len(out.Succeeded),
		Messages:  out.Messages,
	}
	if err := r.sender.SendJSON(ctx, r.cfg.Host, KeyBatchOutcome, report); err != nil {
		r.log.Warn("Failed to report batch outcome to Zabbix", zap.Error(err))
	}
}

// ReportHTTP2 sends the HTTP/2 state as 1 or 0.
func (r *Reporter) ReportHTTP2(ctx context.Context, enabled bool) {
	if !r.cfg.Enabled {
		return
	}
	value := "0"
	if enabled {
		value = "1"
	}
	if err := r.sender.Send(ctx, []SenderData{{Host: r.cfg.Host, Key: KeyHTTP2, Value: value}}); err != nil {
		r.log.Warn("Failed to report HTTP/2 state to Zabbix", zap.Error(err))
	}
}
