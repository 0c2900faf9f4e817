package api

import (
	"context"
	"net/http"
	"net/url"
)

type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Subdomain string `json:"subdomain"`
}

type LoginResponse struct {
	Envelope
	Data struct {
		UserEmail string `json:"user_email"`
	} `json:"data"`
}

type VerifyCodeRequest struct {
	OTP   string `json:"otp"`
	Email string `json:"email"`
}

type VerifyCodeResponse struct {
	Envelope
	Data struct {
		AccessToken string `json:"access_token"`
	} `json:"data"`
}

type TenantSubdomainResponse struct {
	Envelope
	Subdomain string `json:"subdomain"`
}

type CheckSubdomainResponse struct {
	Envelope
	IsFound bool `json:"isFound"`
}

// CompanyInfo is the tenant company returned by /company-info.
type CompanyInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Subdomain    string `json:"subdomain,omitempty"`
	Status       string `json:"status,omitempty"`
	Subscription string `json:"subscription,omitempty"`
	LogoURL      string `json:"logo_url,omitempty"`
}

type CompanyInfoResponse struct {
	Envelope
	Data CompanyInfo `json:"data"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login submits credentials and triggers the one-time code challenge.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	resp := &LoginResponse{}
	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "login"), req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// VerifyCode exchanges a one-time code for an access token.
func (c *Client) VerifyCode(ctx context.Context, req VerifyCodeRequest) (*VerifyCodeResponse, error) {
	resp := &VerifyCodeResponse{}
	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "code-verification"), req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ResendCode reissues the one-time code for email.
func (c *Client) ResendCode(ctx context.Context, email string) (*Envelope, error) {
	resp := &Envelope{}
	body := map[string]string{"email": email}
	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "resend-code"), body, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// TenantSubdomain looks up the tenant that owns email.
func (c *Client) TenantSubdomain(ctx context.Context, email string) (*TenantSubdomainResponse, error) {
	resp := &TenantSubdomainResponse{}
	query := url.Values{"email": {email}}
	if err := c.do(ctx, http.MethodGet, c.endpoint(query, "tenant-subdomain"), nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CheckSubdomain reports whether a tenant with subdomain exists.
func (c *Client) CheckSubdomain(ctx context.Context, subdomain string) (*CheckSubdomainResponse, error) {
	resp := &CheckSubdomainResponse{}
	if err := c.do(ctx, http.MethodGet, c.endpoint(nil, "check-subdomain", subdomain), nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CompanyInfo fetches the company identified by companyID.
func (c *Client) CompanyInfo(ctx context.Context, companyID string) (*CompanyInfoResponse, error) {
	resp := &CompanyInfoResponse{}
	if err := c.do(ctx, http.MethodGet, c.endpoint(nil, "company-info", companyID), nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) RequestPasswordReset(ctx context.Context, email, subdomain string) (*Envelope, error) {
	resp := &Envelope{}
	body := map[string]string{"email": email, "subdomain": subdomain}
	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "request-password-reset"), body, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*Envelope, error) {
	resp := &Envelope{}
	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "reset-password"), req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) (*Envelope, error) {
	resp := &Envelope{}
	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "employee", "change-password", userID), req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
