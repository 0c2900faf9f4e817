// Package routeguard admits navigations to protected views only when the host's
// tenant still exists.
package routeguard

import (
	"context"
	"net/http"

	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/navigation"
	"github.com/jrsteele09/go-console-session/tenants"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrNoWorkspace is returned by Admit when the tenant does not exist.
var ErrNoWorkspace = apperrors.ErrNoWorkspace

// Verifier is the tenant resolver surface the guard needs.
type Verifier interface {
	Context() tenants.Context
	VerifyTenantExists(ctx context.Context, subdomain string) (tenants.VerifyResult, error)
}

// Guard checks the tenant before a protected view renders. It does not check
// authentication.
type Guard struct {
	verifier      Verifier
	location      navigation.Location
	pages         navigation.Pages
	localSuffixes []string
	logger        zerolog.Logger
}

type Option func(*Guard)

func WithPages(pages navigation.Pages) Option {
	return func(g *Guard) {
		g.pages = pages
	}
}

// WithLocalSuffixes sets the local development host suffixes used by Middleware.
func WithLocalSuffixes(suffixes []string) Option {
	return func(g *Guard) {
		g.localSuffixes = suffixes
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// New creates a Guard for the browsing context at location.
func New(verifier Verifier, location navigation.Location, options ...Option) *Guard {
	g := &Guard{
		verifier:      verifier,
		location:      location,
		pages:         navigation.DefaultPages(),
		localSuffixes: []string{"localhost"},
		logger:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Admit returns nil when the current host is not a tenant host or its tenant
// exists. Otherwise it navigates away and returns an error: ErrNoWorkspace for
// a missing tenant, ErrTenantUnverified when the check itself failed.
func (g *Guard) Admit(ctx context.Context) error {
	tc := g.verifier.Context()
	if !tc.IsTenantHost {
		return nil
	}

	target, err := g.check(ctx, tc.Subdomain)
	if err != nil {
		navigation.Navigate(g.location, target)
	}
	return err
}

// check returns the page to send the user to alongside any admission error.
func (g *Guard) check(ctx context.Context, subdomain string) (string, error) {
	result, err := g.verifier.VerifyTenantExists(ctx, subdomain)
	if err != nil {
		g.logger.Warn().Err(err).Str("subdomain", subdomain).Msg("tenant verification failed")
		return g.pages.Error, errors.Wrapf(err, "[Guard.Admit] %s", subdomain)
	}
	if !result.IsFound {
		g.logger.Info().Str("subdomain", subdomain).Msg("no workspace for tenant host")
		return g.pages.NoWorkspace, errors.Wrapf(ErrNoWorkspace, "[Guard.Admit] %s", subdomain)
	}
	return "", nil
}

// Middleware guards server-rendered console routes. The tenant is taken from the
// request host rather than the guard's location.
func (g *Guard) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := tenants.ParseHost(r.Host, g.localSuffixes)
		if !host.IsTenant() {
			next(w, r)
			return
		}

		target, err := g.check(r.Context(), host.Subdomain())
		if err == nil || r.URL.Path == target {
			next(w, r)
			return
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}
