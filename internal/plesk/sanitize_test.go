package plesk

import (
	"strings"
	"testing"
)

func TestValidateDomain(t *testing.T) {
	tests := []struct {
		name    string
		domain  string
		wantErr bool
	}{
		{"valid FQDN", "web.example.com", false},
		{"valid short hostname", "myhost", false},
		{"valid subdomain", "db-01.prod.example.com", false},
		{"punycode", "xn--80ak6aa92e.com", false},
		{"injection attempt", "example.com; rm -rf /", true},
		{"option injection", "-d", true},
		{"empty", "", true},
		{"consecutive dots", "host..example.com", true},
		{"starts with dot", ".example.com", true},
		{"label too long", strings.Repeat("a", 64) + ".com", true},
		{"too long", strings.Repeat("a.", 127) + "com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDomain(tt.domain)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDomain(%q) error = %v, wantErr %v", tt.domain, err, tt.wantErr)
			}
		})
	}
}

func TestValidateInstanceID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"1", false},
		{"1234567890", false},
		{"", true},
		{"12345678901", true},
		{"-1", true},
		{"3 4", true},
		{"$(id)", true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateInstanceID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInstanceID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateExtensionID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"letsencrypt", false},
		{"patchmaninstaller", false},
		{"wp-toolkit", false},
		{"", true},
		{"-install", true},
		{"Dgri", true},
		{"../dgri", true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateExtensionID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateExtensionID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"admin@example.com", false},
		{"ops+certs@example.co.uk", false},
		{"", true},
		{"not-an-address", true},
		{"Admin <admin@example.com>", true},
		{"-m@example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}
