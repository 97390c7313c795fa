package plesk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/remediation"
)

const wpToolkit = "wp-toolkit"

// WordPress manages WP Toolkit instances.
type WordPress struct {
	cli CLI
	log *zap.Logger
}

// NewWordPress creates a WordPress collaborator.
func NewWordPress(cli CLI, log *zap.Logger) *WordPress {
	return &WordPress{cli: cli, log: log}
}

// Instances lists every WordPress instance.
func (w *WordPress) Instances(ctx context.Context) ([]WordPressInstance, error) {
	out, err := run(ctx, w.cli, "extension", "--exec", wpToolkit, "--list", "-format", "json")
	if err != nil {
		return nil, fmt.Errorf("failed to list WordPress instances: %w", err)
	}
	var list []WordPressInstance
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		return nil, fmt.Errorf("failed to parse WordPress instance list: %w", err)
	}
	return list, nil
}

// Instance returns a single instance.
func (w *WordPress) Instance(ctx context.Context, id string) (*WordPressInstance, error) {
	if err := ValidateInstanceID(id); err != nil {
		return nil, err
	}
	out, err := run(ctx, w.cli, "extension", "--exec", wpToolkit, "--info", "-instance-id", id, "-format", "json")
	if err != nil {
		return nil, err
	}
	var inst WordPressInstance
	if err := json.Unmarshal([]byte(out), &inst); err != nil {
		return nil, fmt.Errorf("failed to parse WordPress instance %s: %w", id, err)
	}
	return &inst, nil
}

// Resolve implements remediation.Resolver for instance IDs.
func (w *WordPress) Resolve(ctx context.Context, id string) (remediation.Target, error) {
	numericID, err := strconv.Atoi(id)
	if err != nil || ValidateInstanceID(id) != nil {
		return remediation.Target{}, &remediation.UnresolvedError{Kind: remediation.KindWordPress, ID: id}
	}

	list, err := w.Instances(ctx)
	if err != nil {
		return remediation.Target{}, err
	}
	for _, inst := range list {
		if inst.ID == numericID {
			name := inst.SiteURL
			if name == "" {
				name = inst.Name
			}
			return remediation.Target{ID: id, Name: name, Kind: remediation.KindWordPress}, nil
		}
	}
	return remediation.Target{}, &remediation.UnresolvedError{Kind: remediation.KindWordPress, ID: id}
}

// SwitchToHTTPS rewrites the instance's home and siteurl options to https.
func (w *WordPress) SwitchToHTTPS(ctx context.Context, instanceID string) error {
	inst, err := w.Instance(ctx, instanceID)
	if err != nil {
		return err
	}

	u, err := url.Parse(inst.SiteURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("instance %s has an invalid site URL %q", instanceID, inst.SiteURL)
	}
	if u.Scheme == "https" {
		w.log.Info("WordPress instance already uses HTTPS", zap.String("instance", instanceID))
		return nil
	}
	u.Scheme = "https"
	secureURL := u.String()

	for _, option := range []string{"home", "siteurl"} {
		if _, err := run(ctx, w.cli, "extension", "--exec", wpToolkit, "--wp-cli",
			"-instance-id", instanceID, "--", "option", "update", option, secureURL); err != nil {
			return fmt.Errorf("failed to update %s: %w", option, err)
		}
	}

	w.log.Info("WordPress instance switched to HTTPS",
		zap.String("instance", instanceID),
		zap.String("url", secureURL),
	)
	return nil
}

// CountInsecureWordPress returns how many instances are not served over https.
func (w *WordPress) CountInsecureWordPress(ctx context.Context) (int, error) {
	list, err := w.Instances(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, inst := range list {
		if !inst.Secure() {
			n++
		}
	}
	return n, nil
}
