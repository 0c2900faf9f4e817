package transport

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/navigation"
)

// Structured codes the backend sends with 403 responses.
const (
	CodeTenantMismatch      = "TENANT_MISMATCH"
	CodeUserInactive        = "USER_INACTIVE"
	CodeCompanyInactive     = "COMPANY_INACTIVE"
	CodeSubscriptionExpired = "SUBSCRIPTION_EXPIRED"
)

type policy struct {
	target func(navigation.Pages) string
	deauth bool // Whether the credential is dropped before navigating
}

var forbiddenPolicies = map[string]policy{
	CodeTenantMismatch:      {target: func(p navigation.Pages) string { return p.NoWorkspace }, deauth: true},
	CodeUserInactive:        {target: func(p navigation.Pages) string { return p.InactiveUser }, deauth: true},
	CodeCompanyInactive:     {target: func(p navigation.Pages) string { return p.InactiveCompany }, deauth: true},
	CodeSubscriptionExpired: {target: func(p navigation.Pages) string { return p.SubscriptionExpired }},
}

var (
	unauthorizedPolicy = policy{target: func(p navigation.Pages) string { return p.AuthFailure }, deauth: true}
	forbiddenFallback  = policy{target: func(p navigation.Pages) string { return p.Forbidden }}
)

// forbiddenPolicy returns the policy for a 403 code. Unknown codes fall back to
// the generic forbidden page.
func forbiddenPolicy(code string) policy {
	if p, ok := forbiddenPolicies[code]; ok {
		return p
	}
	return forbiddenFallback
}

// PolicyError is returned in place of a response that triggered a forced navigation.
type PolicyError struct {
	StatusCode      int    // 401 or 403
	Code            string // Structured 403 code, empty for 401
	Target          string // Page the browsing context was sent to
	Navigated       bool   // False when already on Target
	Deauthenticated bool
}

func (e *PolicyError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("policy violation %d %s: redirected to %s", e.StatusCode, e.Code, e.Target)
	}
	return fmt.Sprintf("policy violation %d: redirected to %s", e.StatusCode, e.Target)
}

func (e *PolicyError) Unwrap() error {
	return apperrors.ErrForcedNavigation
}
