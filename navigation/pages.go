package navigation

// Pages holds the in-app paths used for forced navigations and flow redirects.
type Pages struct {
	Login               string `json:"login"`
	OTP                 string `json:"otp"`
	AuthFailure         string `json:"auth_failure"` // Maintenance page shown when the server rejects the credential
	NoWorkspace         string `json:"no_workspace"`
	InactiveUser        string `json:"inactive_user"`
	InactiveCompany     string `json:"inactive_company"`
	SubscriptionExpired string `json:"subscription_expired"`
	Forbidden           string `json:"forbidden"`
	Error               string `json:"error"`
}

// DefaultPages returns the console's standard route table.
func DefaultPages() Pages {
	return Pages{
		Login:               "/login",
		OTP:                 "/verify-code",
		AuthFailure:         "/maintenance",
		NoWorkspace:         "/no-workspace",
		InactiveUser:        "/inactive-user",
		InactiveCompany:     "/inactive-company",
		SubscriptionExpired: "/subscription-expired",
		Forbidden:           "/forbidden",
		Error:               "/error",
	}
}
