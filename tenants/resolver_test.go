package tenants_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-console-session/api"
	"github.com/jrsteele09/go-console-session/internal/backendfake"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/navigation"
	"github.com/jrsteele09/go-console-session/tenants"
	"github.com/stretchr/testify/require"
)

type resolverFixture struct {
	backend  *backendfake.Backend
	server   *httptest.Server
	location *navigation.StaticLocation
	resolver *tenants.Resolver
}

func setupResolver(t *testing.T, rawURL string) *resolverFixture {
	t.Helper()

	backend := backendfake.New()
	backend.AddCompany(backendfake.Company{ID: "c-1", Name: "Acme Ltd", Subdomain: "acme"})
	require.NoError(t, backend.AddUser(backendfake.User{ID: "u-1", Email: "jane@acme.test", CompanyID: "c-1"}, "pw"))

	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	client, err := api.New(server.URL+backendfake.BasePath, server.Client())
	require.NoError(t, err)

	loc, err := navigation.NewStaticLocation(rawURL)
	require.NoError(t, err)

	return &resolverFixture{
		backend:  backend,
		server:   server,
		location: loc,
		resolver: tenants.NewResolver(loc, client),
	}
}

func TestResolver_CurrentHost(t *testing.T) {
	f := setupResolver(t, "https://acme.example.com/dashboard")

	require.True(t, f.resolver.HasTenantHost())
	require.Equal(t, "acme", f.resolver.CurrentSubdomain())
	require.Equal(t, tenants.Context{Subdomain: "acme", IsTenantHost: true}, f.resolver.Context())
}

func TestResolver_RedirectURL(t *testing.T) {
	tests := []struct {
		name    string
		current string
		path    string
		want    string
	}{
		{"replaces subdomain", "https://app.example.com/", "/login?email=x", "https://acme.example.com/login?email=x"},
		{"keeps port once", "https://app.example.com:8443/", "/login", "https://acme.example.com:8443/login"},
		{"bare domain", "https://example.com/", "/", "https://acme.example.com/"},
		{"local dev", "http://localhost:3000/login", "/login?email=jane%40acme.test", "http://acme.localhost:3000/login?email=jane%40acme.test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupResolver(t, tt.current)
			got, err := f.resolver.RedirectURL("acme", tt.path)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_RedirectToTenantNavigates(t *testing.T) {
	f := setupResolver(t, "https://app.example.com/")

	require.NoError(t, f.resolver.RedirectToTenant("acme", "/login?email=x"))
	require.Equal(t, []string{"https://acme.example.com/login?email=x"}, f.location.History())
}

func TestResolver_RedirectURLRejectsIPHost(t *testing.T) {
	f := setupResolver(t, "http://127.0.0.1:3000/")

	_, err := f.resolver.RedirectURL("acme", "/")
	require.Error(t, err)
}

func TestResolver_ResolveTenantByEmail(t *testing.T) {
	f := setupResolver(t, "https://app.example.com/")
	ctx := context.Background()

	require.Equal(t, tenants.TenantLookupResult{Subdomain: "acme"}, f.resolver.ResolveTenantByEmail(ctx, "jane@acme.test"))
	require.Equal(t, tenants.TenantLookupResult{Reason: tenants.ReasonNotFound}, f.resolver.ResolveTenantByEmail(ctx, "nobody@acme.test"))

	f.backend.Fail("GET /api/tenant-subdomain", http.StatusInternalServerError, `{"status":"error"}`)
	require.Equal(t, tenants.TenantLookupResult{Reason: tenants.ReasonServerError}, f.resolver.ResolveTenantByEmail(ctx, "jane@acme.test"))
}

func TestResolver_ResolveTenantByEmailNetworkFailure(t *testing.T) {
	f := setupResolver(t, "https://app.example.com/")
	f.server.Close()

	result := f.resolver.ResolveTenantByEmail(context.Background(), "jane@acme.test")
	require.Equal(t, tenants.ReasonServerError, result.Reason)
	require.False(t, result.Found())
}

func TestResolver_VerifyTenantExists(t *testing.T) {
	f := setupResolver(t, "https://acme.example.com/")
	ctx := context.Background()

	result, err := f.resolver.VerifyTenantExists(ctx, "acme")
	require.NoError(t, err)
	require.True(t, result.IsFound)

	result, err = f.resolver.VerifyTenantExists(ctx, "gone")
	require.NoError(t, err)
	require.False(t, result.IsFound)

	f.backend.Fail("GET /api/check-subdomain/{subdomain}", http.StatusBadGateway, ``)
	_, err = f.resolver.VerifyTenantExists(ctx, "acme")
	require.ErrorIs(t, err, apperrors.ErrTenantUnverified)
	require.Contains(t, err.Error(), "[Resolver.VerifyTenantExists]")
}
