package tenants

import (
	"context"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-console-session/api"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/navigation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Failure reasons for ResolveTenantByEmail.
const (
	ReasonNotFound    = "not_found"
	ReasonServerError = "server_error"
)

// Lookup is the backend surface the resolver needs.
type Lookup interface {
	TenantSubdomain(ctx context.Context, email string) (*api.TenantSubdomainResponse, error)
	CheckSubdomain(ctx context.Context, subdomain string) (*api.CheckSubdomainResponse, error)
}

// TenantLookupResult is either a subdomain to redirect to or a failure reason.
type TenantLookupResult struct {
	Subdomain string
	Reason    string
}

// Found reports whether the lookup produced a subdomain.
func (r TenantLookupResult) Found() bool {
	return r.Subdomain != "" && r.Reason == ""
}

// VerifyResult is the outcome of VerifyTenantExists.
type VerifyResult struct {
	IsFound bool
}

// Resolver maps the current host, or a user's email, to a tenant.
type Resolver struct {
	location      navigation.Location
	lookup        Lookup
	localSuffixes []string
	logger        zerolog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLocalSuffixes sets the top-level labels of local development hosts.
func WithLocalSuffixes(suffixes []string) ResolverOption {
	return func(r *Resolver) {
		r.localSuffixes = suffixes
	}
}

func WithLogger(logger zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver for location.
func NewResolver(location navigation.Location, lookup Lookup, options ...ResolverOption) *Resolver {
	r := &Resolver{
		location:      location,
		lookup:        lookup,
		localSuffixes: []string{"localhost"},
		logger:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *Resolver) host() Host {
	return ParseHost(r.location.URL().Host, r.localSuffixes)
}

// Context returns the tenant context of the current location. It is derived on
// every call and never persisted.
func (r *Resolver) Context() Context {
	h := r.host()
	c := Context{IsTenantHost: h.IsTenant()}
	if c.IsTenantHost {
		c.Subdomain = h.Subdomain()
	}
	return c
}

// HasTenantHost reports whether the current host encodes a tenant subdomain.
func (r *Resolver) HasTenantHost() bool {
	return r.host().IsTenant()
}

// CurrentSubdomain returns the first label of the current host.
func (r *Resolver) CurrentSubdomain() string {
	return r.host().Subdomain()
}

// ResolveTenantByEmail asks the backend which tenant owns email.
func (r *Resolver) ResolveTenantByEmail(ctx context.Context, email string) TenantLookupResult {
	resp, err := r.lookup.TenantSubdomain(ctx, strings.TrimSpace(email))
	if err != nil {
		var statusErr *api.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < 500 {
			return TenantLookupResult{Reason: ReasonNotFound}
		}
		r.logger.Warn().Err(err).Msg("tenant lookup failed")
		return TenantLookupResult{Reason: ReasonServerError}
	}
	if !resp.Succeeded() || resp.Subdomain == "" {
		return TenantLookupResult{Reason: ReasonNotFound}
	}
	return TenantLookupResult{Subdomain: resp.Subdomain}
}

// RedirectURL builds the tenant-qualified URL for subdomain on the current
// scheme, parent domain and port, keeping path and query.
func (r *Resolver) RedirectURL(subdomain, path string) (string, error) {
	if subdomain == "" {
		return "", errors.Wrap(apperrors.ErrTenantNotFound, "[Resolver.RedirectURL] empty subdomain")
	}
	current := r.location.URL()
	h := ParseHost(current.Host, r.localSuffixes)
	if len(h.Labels) == 0 {
		return "", errors.Errorf("[Resolver.RedirectURL] host %q cannot carry a subdomain", current.Host)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return "", errors.Wrap(err, "[Resolver.RedirectURL] invalid path")
	}
	target := &url.URL{
		Scheme:   current.Scheme,
		Host:     h.WithSubdomain(subdomain),
		Path:     ref.Path,
		RawPath:  ref.RawPath,
		RawQuery: ref.RawQuery,
		Fragment: ref.Fragment,
	}
	if target.Path == "" {
		target.Path = "/"
	}
	return target.String(), nil
}

// RedirectToTenant performs a full navigation to subdomain's origin.
func (r *Resolver) RedirectToTenant(subdomain, path string) error {
	target, err := r.RedirectURL(subdomain, path)
	if err != nil {
		return err
	}
	r.location.Assign(target)
	return nil
}

// VerifyTenantExists checks that subdomain is still a live tenant. Errors mean
// the tenant is unverified and callers must fail closed.
func (r *Resolver) VerifyTenantExists(ctx context.Context, subdomain string) (VerifyResult, error) {
	resp, err := r.lookup.CheckSubdomain(ctx, subdomain)
	if err != nil {
		return VerifyResult{}, errors.Wrapf(apperrors.ErrTenantUnverified, "[Resolver.VerifyTenantExists] %v", err)
	}
	return VerifyResult{IsFound: resp.IsFound}, nil
}
