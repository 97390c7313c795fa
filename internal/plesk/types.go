// Package plesk implements the remediation collaborators on top of the Plesk
// command line, reached either locally or through the REST API gateway.
package plesk

import (
	"fmt"
	"strings"

	"github.com/espitsyna/ext-security-advisor/internal/invoker"
)

// Domain is a hosted domain.
type Domain struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	HostingType string `json:"hosting_type"`
	GUID        string `json:"guid"`

	// Certificate is the name of the certificate bound to the hosting, empty
	// when the site is served without one. Only meaningful when
	// CertificateKnown is set; the REST API does not expose it.
	Certificate      string `json:"-"`
	CertificateKnown bool   `json:"-"`
}

// ServerInfo is the GET /server payload.
type ServerInfo struct {
	Platform     string `json:"platform"`
	Hostname     string `json:"hostname"`
	GUID         string `json:"guid"`
	PanelVersion string `json:"panel_version"`
	PanelUpdate  string `json:"panel_update_version"`
}

// WordPressInstance is one entry of the WP Toolkit instance list.
type WordPressInstance struct {
	ID           int    `json:"id"`
	SiteURL      string `json:"siteUrl"`
	Path         string `json:"fullPath"`
	MainDomainID int    `json:"mainDomainId"`
	Name         string `json:"name"`
}

// Secure reports whether the site URL is served over https.
func (w WordPressInstance) Secure() bool {
	return strings.HasPrefix(strings.ToLower(w.SiteURL), "https://")
}

// cliRequest and cliResponse are the REST CLI gateway wire format.
type cliRequest struct {
	Params []string `json:"params"`
}

type cliResponse struct {
	Code   int    `json:"code"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// APIError is an error body returned by the REST API.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("Plesk API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("Plesk API error %d: %s", e.Code, e.Message)
}

// CLIError is a Plesk command that ran and exited non-zero.
type CLIError struct {
	Command string
	Result  invoker.Result
}

func (e *CLIError) Error() string {
	out := strings.TrimSpace(e.Result.Output())
	if out == "" {
		return fmt.Sprintf("plesk bin %s exited with code %d", e.Command, e.Result.ExitCode)
	}
	return out
}
