package tenants_test

import (
	"testing"

	"github.com/jrsteele09/go-console-session/tenants"
	"github.com/stretchr/testify/require"
)

func TestParseHost_IsTenant(t *testing.T) {
	local := []string{"localhost"}
	tests := []struct {
		host      string
		tenant    bool
		subdomain string
	}{
		{"example.com", false, "example"},
		{"app.example.com", true, "app"},
		{"acme.app.example.com:8443", true, "acme"},
		{"localhost:3000", false, "localhost"},
		{"acme.localhost:3000", true, "acme"},
		{"a.b.localhost", false, "a"},
		{"127.0.0.1:3000", false, ""},
		{"[::1]:3000", false, ""},
		{"ACME.Example.COM.", true, "acme"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			h := tenants.ParseHost(tt.host, local)
			require.Equal(t, tt.tenant, h.IsTenant())
			require.Equal(t, tt.subdomain, h.Subdomain())
		})
	}
}

func TestHost_WithSubdomain(t *testing.T) {
	local := []string{"localhost"}
	tests := []struct {
		host string
		want string
	}{
		{"app.example.com", "acme.example.com"},
		{"example.com", "acme.example.com"},
		{"app.example.com:8443", "acme.example.com:8443"},
		{"localhost:3000", "acme.localhost:3000"},
		{"other.localhost:3000", "acme.localhost:3000"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			require.Equal(t, tt.want, tenants.ParseHost(tt.host, local).WithSubdomain("acme"))
		})
	}
}
