package plesk

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

var (
	instanceIDRe  = regexp.MustCompile(`^[0-9]{1,10}$`)
	extensionIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
	// fqdnRe validates a hostname: starts and ends with alphanumeric, allows
	// dots and hyphens in between. Label and total lengths are checked in
	// isValidFQDN.
	fqdnRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.-]{0,251}[a-zA-Z0-9])?$`)
)

// ValidateDomain checks that name is a hostname safe to put on a command line.
func ValidateDomain(name string) error {
	if name == "" {
		return fmt.Errorf("domain name is empty")
	}
	if !isValidFQDN(name) {
		return fmt.Errorf("invalid domain name: %q", name)
	}
	return nil
}

// isValidFQDN checks if s is a valid fully-qualified domain name.
func isValidFQDN(s string) bool {
	if len(s) > 253 {
		return false
	}
	if !fqdnRe.MatchString(s) {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
	}
	return true
}

// ValidateInstanceID checks a WP Toolkit instance ID.
func ValidateInstanceID(id string) error {
	if !instanceIDRe.MatchString(id) {
		return fmt.Errorf("invalid WordPress instance ID: %q", id)
	}
	return nil
}

// ValidateExtensionID checks a panel extension ID.
func ValidateExtensionID(id string) error {
	if !extensionIDRe.MatchString(id) {
		return fmt.Errorf("invalid extension ID: %q", id)
	}
	return nil
}

// ValidateEmail checks a bare e-mail address. Display names and anything
// starting with "-" are rejected.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("e-mail address is empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || strings.HasPrefix(email, "-") {
		return fmt.Errorf("invalid e-mail address: %q", email)
	}
	return nil
}
