package config

import "github.com/jrsteele09/go-console-session/navigation"

type Routes struct{}

var _ RouteConfig = Routes{}

func (Routes) GetPages() navigation.Pages {
	return navigation.DefaultPages()
}

// GetLoginSurface lists the endpoints whose 401 responses are validation failures
// rather than a revoked credential.
func (Routes) GetLoginSurface() []string {
	return []string{
		"/login",
		"/code-verification",
		"/resend-code",
		"/request-password-reset",
		"/reset-password",
		"/tenant-subdomain",
		"/check-subdomain",
	}
}
