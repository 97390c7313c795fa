package plesk

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/config"
	"github.com/espitsyna/ext-security-advisor/internal/remediation"
)

// LetsEncrypt issues certificates through the Let's Encrypt extension CLI.
type LetsEncrypt struct {
	cli        CLI
	log        *zap.Logger
	email      string
	includeWWW bool
}

// NewLetsEncrypt creates a LetsEncrypt collaborator.
func NewLetsEncrypt(cfg *config.Config, cli CLI, log *zap.Logger) *LetsEncrypt {
	return &LetsEncrypt{
		cli:        cli,
		log:        log,
		email:      cfg.Panel.LetsEncryptEmail,
		includeWWW: cfg.Panel.IncludeWWW,
	}
}

// certArgs builds the letsencrypt cli.php arguments for domain.
func certArgs(domain, email string, includeWWW bool, extra ...string) []string {
	args := []string{"--exec", "letsencrypt", "cli.php"}
	args = append(args, extra...)
	args = append(args, "-d", domain)
	if includeWWW {
		args = append(args, "-d", "www."+domain)
	}
	if email != "" {
		args = append(args, "-m", email)
	}
	return args
}

// IssueCertificate issues and installs a certificate for domain.
func (l *LetsEncrypt) IssueCertificate(ctx context.Context, domain string) error {
	if err := ValidateDomain(domain); err != nil {
		return err
	}
	if l.email != "" {
		if err := ValidateEmail(l.email); err != nil {
			return err
		}
	}

	l.log.Info("Issuing certificate", zap.String("domain", domain), zap.Bool("www", l.includeWWW))
	if _, err := run(ctx, l.cli, "extension", certArgs(domain, l.email, l.includeWWW)...); err != nil {
		return fmt.Errorf("failed to issue certificate: %w", err)
	}
	return nil
}

// SecurePanel issues a certificate for the panel host name and assigns it to
// the panel. opts.Email falls back to the configured address.
func (l *LetsEncrypt) SecurePanel(ctx context.Context, hostname string, opts remediation.PanelOptions) error {
	if err := ValidateDomain(hostname); err != nil {
		return err
	}
	email := opts.Email
	if email == "" {
		email = l.email
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}

	l.log.Info("Securing panel", zap.String("hostname", hostname), zap.Bool("www", opts.IncludeWWW))
	args := certArgs(hostname, email, opts.IncludeWWW, "--letsencrypt-plesk:plesk-secure-panel")
	if _, err := run(ctx, l.cli, "extension", args...); err != nil {
		return fmt.Errorf("failed to secure panel: %w", err)
	}
	return nil
}
