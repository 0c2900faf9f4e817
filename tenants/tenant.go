package tenants

// Context is the tenant view of the current location.
type Context struct {
	Subdomain    string
	IsTenantHost bool
}
