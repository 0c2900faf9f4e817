package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"golang.org/x/oauth2"
)

// Claims are the identity claims the console reads from its bearer credential.
// The client never verifies the signature; that is the backend's job.
type Claims struct {
	jwt.RegisteredClaims

	UserID         string `json:"user_id,omitempty"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	CompanyID      string `json:"company_id,omitempty"`
	BusinessUnitID string `json:"business_unit_id,omitempty"`
	Subdomain      string `json:"subdomain,omitempty"`
	Role           string `json:"role,omitempty"`
	Subscription   string `json:"subscription,omitempty"` // Plan hint, e.g. "trial" or "pro"
}

// User returns the user id, falling back to the subject claim.
func (c *Claims) User() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// Credential is an opaque bearer token together with its decoded claims.
type Credential struct {
	Raw    string
	Claims *Claims
}

// Decode parses raw without verifying its signature. Any structural problem,
// including a missing exp claim, yields ErrInvalidToken.
func Decode(raw string) (*Credential, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.ErrInvalidToken
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[token.Decode] %v", err)
	}
	if claims.ExpiresAt == nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[token.Decode] missing exp")
	}

	return &Credential{Raw: raw, Claims: claims}, nil
}

// Expiry returns the exp claim.
func (c *Credential) Expiry() time.Time {
	if c == nil || c.Claims == nil || c.Claims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.Claims.ExpiresAt.Time
}

// Valid reports whether the credential is still usable at now. The comparison
// is strict and in whole seconds: a token expiring in the current second is expired.
func (c *Credential) Valid(now time.Time) bool {
	if c == nil || c.Raw == "" {
		return false
	}
	exp := c.Expiry()
	if exp.IsZero() {
		return false
	}
	return exp.Unix() > now.Unix()
}

// OAuth2Token adapts the credential for attaching to outbound requests.
func (c *Credential) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: c.Raw,
		TokenType:   "Bearer",
		Expiry:      c.Expiry(),
	}
}
