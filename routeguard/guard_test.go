package routeguard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-console-session/api"
	"github.com/jrsteele09/go-console-session/internal/backendfake"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/navigation"
	"github.com/jrsteele09/go-console-session/routeguard"
	"github.com/jrsteele09/go-console-session/tenants"
	"github.com/stretchr/testify/require"
)

const checkRoute = "GET /api/check-subdomain/{subdomain}"

type guardFixture struct {
	backend  *backendfake.Backend
	location *navigation.StaticLocation
	guard    *routeguard.Guard
}

func setupGuard(t *testing.T, rawURL string) *guardFixture {
	t.Helper()

	backend := backendfake.New()
	backend.AddCompany(backendfake.Company{ID: "c-1", Name: "Acme Ltd", Subdomain: "acme"})

	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	client, err := api.New(server.URL+backendfake.BasePath, &http.Client{Timeout: 5 * time.Second})
	require.NoError(t, err)

	loc, err := navigation.NewStaticLocation(rawURL)
	require.NoError(t, err)

	return &guardFixture{
		backend:  backend,
		location: loc,
		guard:    routeguard.New(tenants.NewResolver(loc, client), loc),
	}
}

func TestGuard_AdmitsLiveTenant(t *testing.T) {
	f := setupGuard(t, "https://acme.example.com/dashboard")

	require.NoError(t, f.guard.Admit(context.Background()))
	require.Equal(t, "/dashboard", f.location.URL().Path)
	require.Equal(t, 1, f.backend.Calls(checkRoute))
}

func TestGuard_AdmitsNonTenantHost(t *testing.T) {
	f := setupGuard(t, "https://example.com/login")

	require.NoError(t, f.guard.Admit(context.Background()))
	require.Zero(t, f.backend.Calls(checkRoute))
}

func TestGuard_RemovedTenant(t *testing.T) {
	f := setupGuard(t, "https://acme.example.com/dashboard")
	f.backend.RemoveCompany("acme")

	err := f.guard.Admit(context.Background())
	require.ErrorIs(t, err, routeguard.ErrNoWorkspace)
	require.EqualError(t, err, "[Guard.Admit] acme: no workspace for host")
	require.Equal(t, "/no-workspace", f.location.URL().Path)
	require.Equal(t, "acme.example.com", f.location.URL().Host)
}

func TestGuard_VerificationFailureFailsClosed(t *testing.T) {
	f := setupGuard(t, "https://acme.example.com/dashboard")
	f.backend.Fail(checkRoute, http.StatusBadGateway, `{"status":"error"}`)

	err := f.guard.Admit(context.Background())
	require.ErrorIs(t, err, apperrors.ErrTenantUnverified)
	require.Equal(t, "/error", f.location.URL().Path)
}

func TestGuard_AlreadyOnNoWorkspacePage(t *testing.T) {
	f := setupGuard(t, "https://ghost.example.com/no-workspace")

	err := f.guard.Admit(context.Background())
	require.ErrorIs(t, err, routeguard.ErrNoWorkspace)
	require.Empty(t, f.location.History())
}

func TestGuard_Middleware(t *testing.T) {
	f := setupGuard(t, "https://example.com/")
	handler := f.guard.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		host     string
		path     string
		status   int
		location string
	}{
		{"live tenant", "acme.example.com", "/dashboard", http.StatusNoContent, ""},
		{"apex host", "example.com", "/dashboard", http.StatusNoContent, ""},
		{"local live tenant", "acme.localhost:3000", "/dashboard", http.StatusNoContent, ""},
		{"missing tenant", "ghost.example.com", "/dashboard", http.StatusSeeOther, "/no-workspace"},
		{"missing tenant on target", "ghost.example.com", "/no-workspace", http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://"+tt.host+tt.path, nil)
			rec := httptest.NewRecorder()

			handler(rec, req)
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}
}
