package errors

import (
	"errors"
	"fmt"
)

// Common error types for the console session core
var (
	// Credential errors
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrNoCredential       = errors.New("no credential")
	ErrNoPendingChallenge = errors.New("no pending challenge")

	// Tenant errors
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrTenantUnverified = errors.New("tenant could not be verified")
	ErrNoWorkspace      = errors.New("no workspace for host")

	// Transport errors
	ErrTransport        = errors.New("transport failure")
	ErrForcedNavigation = errors.New("forced navigation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
