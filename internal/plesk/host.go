package plesk

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/espitsyna/ext-security-advisor/internal/config"
	"github.com/espitsyna/ext-security-advisor/internal/remediation"
)

// ServerTarget is the target ID for host-wide actions.
const ServerTarget = "server"

// HostResolver resolves the host target used by HTTP/2 and panel actions.
type HostResolver struct {
	hostname string
}

// NewHostResolver creates a HostResolver. An empty configured host name
// falls back to the system host name.
func NewHostResolver(cfg *config.Config) *HostResolver {
	return &HostResolver{hostname: cfg.Host.Hostname}
}

// Hostname returns the panel host name.
func (r *HostResolver) Hostname() (string, error) {
	if r.hostname != "" {
		return r.hostname, nil
	}
	name, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to determine host name: %w", err)
	}
	return name, nil
}

// Resolve implements remediation.Resolver. It accepts "server", "localhost"
// and the host name itself.
func (r *HostResolver) Resolve(_ context.Context, id string) (remediation.Target, error) {
	hostname, err := r.Hostname()
	if err != nil {
		return remediation.Target{}, err
	}
	switch {
	case id == ServerTarget, id == "localhost", strings.EqualFold(id, hostname):
		return remediation.Target{ID: id, Name: hostname, Kind: remediation.KindHost}, nil
	default:
		return remediation.Target{}, &remediation.UnresolvedError{Kind: remediation.KindHost, ID: id}
	}
}

// PanelSecured reports whether the panel certificate at path is currently
// valid and not self-signed.
func PanelSecured(path string, now time.Time) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read panel certificate: %w", err)
	}

	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return false, errors.New("no certificate in panel PEM bundle")
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return false, fmt.Errorf("failed to parse panel certificate: %w", err)
		}
		if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
			return false, nil
		}
		return !bytes.Equal(cert.RawIssuer, cert.RawSubject), nil
	}
}
