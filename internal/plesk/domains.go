package plesk

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/espitsyna/ext-security-advisor/internal/remediation"
)

// ErrCertificatesUnknown means the domain source cannot report bound
// certificates.
var ErrCertificatesUnknown = errors.New("domain certificates are not available from this source")

// DomainResolver resolves numeric domain IDs or domain names.
type DomainResolver struct {
	source DomainSource
}

// NewDomainResolver creates a DomainResolver.
func NewDomainResolver(source DomainSource) *DomainResolver {
	return &DomainResolver{source: source}
}

// Resolve implements remediation.Resolver. The domain list is fetched on
// every call.
func (r *DomainResolver) Resolve(ctx context.Context, id string) (remediation.Target, error) {
	id = strings.TrimSpace(id)
	numericID, idErr := strconv.Atoi(id)
	if idErr != nil && ValidateDomain(id) != nil {
		return remediation.Target{}, &remediation.UnresolvedError{Kind: remediation.KindDomain, ID: id}
	}

	domains, err := r.source.Domains(ctx)
	if err != nil {
		return remediation.Target{}, err
	}
	for _, d := range domains {
		if (idErr == nil && d.ID == numericID) || strings.EqualFold(d.Name, id) {
			return remediation.Target{ID: id, Name: d.Name, Kind: remediation.KindDomain}, nil
		}
	}
	return remediation.Target{}, &remediation.UnresolvedError{Kind: remediation.KindDomain, ID: id}
}

// CountInsecureDomains returns how many domains have no certificate bound.
func CountInsecureDomains(ctx context.Context, source DomainSource) (int, error) {
	domains, err := source.Domains(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range domains {
		if !d.CertificateKnown {
			return 0, ErrCertificatesUnknown
		}
		if d.Certificate == "" {
			n++
		}
	}
	return n, nil
}
