package plesk

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/config"
	"github.com/espitsyna/ext-security-advisor/internal/invoker"
)

// CLI runs a Plesk command line utility, e.g. "extension --list".
// A non-zero exit is reported through the Result, not the error.
type CLI interface {
	Call(ctx context.Context, command string, args ...string) (invoker.Result, error)
}

// DomainSource lists hosted domains.
type DomainSource interface {
	Domains(ctx context.Context) ([]Domain, error)
}

// LocalCLI runs "plesk bin <command>" on this host.
type LocalCLI struct {
	bin     string
	invoker invoker.Invoker
	log     *zap.Logger
}

// NewLocalCLI creates a LocalCLI.
func NewLocalCLI(cfg *config.Config, inv invoker.Invoker, log *zap.Logger) *LocalCLI {
	return &LocalCLI{bin: cfg.Panel.PleskBin, invoker: inv, log: log}
}

// Call implements CLI.
func (c *LocalCLI) Call(ctx context.Context, command string, args ...string) (invoker.Result, error) {
	c.log.Debug("Calling Plesk CLI", zap.String("command", command), zap.Strings("args", args))
	return c.invoker.Run(ctx, c.bin, append([]string{"bin", command}, args...)...)
}

const domainsQuery = `SELECT d.id, d.name, d.htype, d.guid, IFNULL(c.name, '') ` +
	`FROM domains d LEFT JOIN hosting h ON h.dom_id = d.id ` +
	`LEFT JOIN certificates c ON c.id = h.certificate_id ORDER BY d.id`

// Domains implements DomainSource by querying the panel database.
func (c *LocalCLI) Domains(ctx context.Context) ([]Domain, error) {
	res, err := c.invoker.Run(ctx, c.bin, "db", "-N", "-B", "-e", domainsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query domains: %w", err)
	}
	if !res.OK() {
		return nil, &CLIError{Command: "db", Result: res}
	}
	return parseDomainRows(res.Stdout)
}

// parseDomainRows parses tab separated "id name htype guid certificate" rows.
func parseDomainRows(out string) ([]Domain, error) {
	var domains []Domain
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 2 {
			return nil, fmt.Errorf("unexpected domain row %q", line)
		}
		id, err := strconv.Atoi(strings.TrimSpace(cols[0]))
		if err != nil {
			return nil, fmt.Errorf("unexpected domain id in row %q: %w", line, err)
		}
		d := Domain{ID: id, Name: strings.TrimSpace(cols[1]), CertificateKnown: true}
		if len(cols) > 2 {
			d.HostingType = strings.TrimSpace(cols[2])
		}
		if len(cols) > 3 {
			d.GUID = strings.TrimSpace(cols[3])
		}
		if len(cols) > 4 {
			d.Certificate = strings.TrimSpace(cols[4])
		}
		domains = append(domains, d)
	}
	return domains, nil
}

// run calls command and returns its stdout, or a *CLIError on non-zero exit.
func run(ctx context.Context, cli CLI, command string, args ...string) (string, error) {
	res, err := cli.Call(ctx, command, args...)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", &CLIError{Command: command, Result: res}
	}
	return res.Stdout, nil
}
