package plesk

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/remediation"
)

// CatalogEntry is an extension the wizard can install.
type CatalogEntry struct {
	ID   string
	Name string
}

// Catalog lists the installable extensions.
var Catalog = []CatalogEntry{
	{ID: "letsencrypt", Name: "Let's Encrypt"},
	{ID: "dgri", Name: "Datagrid Reliability Engine"},
	{ID: "patchmaninstaller", Name: "Patchman"},
}

// Extensions installs panel extensions from the catalog.
type Extensions struct {
	cli CLI
	log *zap.Logger
}

// NewExtensions creates an Extensions collaborator.
func NewExtensions(cli CLI, log *zap.Logger) *Extensions {
	return &Extensions{cli: cli, log: log}
}

func lookupCatalog(id string) (CatalogEntry, bool) {
	for _, e := range Catalog {
		if e.ID == id {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

// Resolve implements remediation.Resolver for catalog IDs.
func (x *Extensions) Resolve(_ context.Context, id string) (remediation.Target, error) {
	entry, ok := lookupCatalog(strings.ToLower(strings.TrimSpace(id)))
	if !ok {
		return remediation.Target{}, &remediation.UnresolvedError{Kind: remediation.KindExtension, ID: id}
	}
	return remediation.Target{ID: entry.ID, Name: entry.Name, Kind: remediation.KindExtension}, nil
}

// Installed returns the IDs of installed extensions.
func (x *Extensions) Installed(ctx context.Context) (map[string]bool, error) {
	out, err := run(ctx, x.cli, "extension", "--list")
	if err != nil {
		return nil, fmt.Errorf("failed to list extensions: %w", err)
	}
	installed := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			installed[fields[0]] = true
		}
	}
	return installed, nil
}

// IsInstalled reports whether extension id is installed.
func (x *Extensions) IsInstalled(ctx context.Context, id string) (bool, error) {
	installed, err := x.Installed(ctx)
	if err != nil {
		return false, err
	}
	return installed[id], nil
}

// InstallExtension installs a catalog extension. Installing an extension
// that is already present succeeds without calling the installer.
func (x *Extensions) InstallExtension(ctx context.Context, id string) error {
	if err := ValidateExtensionID(id); err != nil {
		return err
	}
	if _, ok := lookupCatalog(id); !ok {
		return fmt.Errorf("extension %q is not in the catalog", id)
	}

	installed, err := x.IsInstalled(ctx, id)
	if err != nil {
		return err
	}
	if installed {
		x.log.Info("Extension already installed", zap.String("extension", id))
		return nil
	}

	x.log.Info("Installing extension", zap.String("extension", id))
	if _, err := run(ctx, x.cli, "extension", "--install", id); err != nil {
		return fmt.Errorf("failed to install %s: %w", id, err)
	}
	return nil
}
