package auth

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-console-session/api"
	"github.com/jrsteele09/go-console-session/credential"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/navigation"
	"github.com/jrsteele09/go-console-session/tenants"
	"github.com/jrsteele09/go-console-session/token"
	"github.com/jrsteele09/go-console-session/transport"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Backend is the part of the console API the manager calls.
type Backend interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	VerifyCode(ctx context.Context, req api.VerifyCodeRequest) (*api.VerifyCodeResponse, error)
	ResendCode(ctx context.Context, email string) (*api.Envelope, error)
	CompanyInfo(ctx context.Context, companyID string) (*api.CompanyInfoResponse, error)
	RequestPasswordReset(ctx context.Context, email, subdomain string) (*api.Envelope, error)
	ResetPassword(ctx context.Context, req api.ResetPasswordRequest) (*api.Envelope, error)
	ChangePassword(ctx context.Context, userID string, req api.ChangePasswordRequest) (*api.Envelope, error)
}

// CredentialHolder attaches the credential to outbound requests. The transport
// guard implements it.
type CredentialHolder interface {
	SetCredential(cred *token.Credential)
	ClearCredential()
}

// TenantResolver is used by LoginWithTenantLookup.
type TenantResolver interface {
	HasTenantHost() bool
	CurrentSubdomain() string
	ResolveTenantByEmail(ctx context.Context, email string) tenants.TenantLookupResult
	RedirectToTenant(subdomain, path string) error
}

// TitleSetter sets the document title from the company name.
type TitleSetter func(title string)

// Result carries the outcome of a request the user can get wrong. A failed
// Result is not an error; callers render Message inline.
type Result struct {
	OK         bool
	StatusCode int
	Message    string
	Code       string
}

// VerifyResult is returned by VerifyOneTimeCode for post-login routing.
type VerifyResult struct {
	Result
	Subdomain string
	CompanyID string
}

// LookupResult is returned by LoginWithTenantLookup.
type LookupResult struct {
	Result
	Reason     string // tenants.ReasonNotFound or tenants.ReasonServerError
	Redirected bool   // The browsing context was sent to the tenant origin
}

// Manager owns the authentication state machine.
type Manager struct {
	backend  Backend
	store    credential.Store
	holder   CredentialHolder
	location navigation.Location
	pages    navigation.Pages
	resolver TenantResolver
	setTitle TitleSetter
	nowTime  func() time.Time
	logger   zerolog.Logger

	initOnce sync.Once

	lock        sync.Mutex
	state       State
	initialized bool
	listeners   map[int]func(AuthState)
	nextID      int
}

// Option configures a Manager.
type Option func(*Manager)

// WithPages sets the navigation targets.
func WithPages(pages navigation.Pages) Option {
	return func(m *Manager) {
		m.pages = pages
	}
}

// WithResolver enables LoginWithTenantLookup.
func WithResolver(resolver TenantResolver) Option {
	return func(m *Manager) {
		m.resolver = resolver
	}
}

// WithTitleSetter sets the function used to title the console after the company.
func WithTitleSetter(setter TitleSetter) Option {
	return func(m *Manager) {
		m.setTitle = setter
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager in the Uninitialized state.
func NewManager(backend Backend, store credential.Store, holder CredentialHolder, location navigation.Location, options ...Option) *Manager {
	m := &Manager{
		backend:   backend,
		store:     store,
		holder:    holder,
		location:  location,
		pages:     navigation.DefaultPages(),
		nowTime:   time.Now,
		logger:    zerolog.Nop(),
		state:     Uninitialized{},
		listeners: make(map[int]func(AuthState)),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// State returns the current state machine variant.
func (m *Manager) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

// Snapshot returns the current AuthState.
func (m *Manager) Snapshot() AuthState {
	m.lock.Lock()
	defer m.lock.Unlock()
	return snapshot(m.state, m.initialized)
}

// Subscribe registers f to be called with every new AuthState. The returned
// function removes it.
func (m *Manager) Subscribe(f func(AuthState)) func() {
	m.lock.Lock()
	defer m.lock.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = f
	return func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		delete(m.listeners, id)
	}
}

// apply runs e through Transition and notifies listeners when the visible
// AuthState changed. finishInit marks the manager initialized in the same step.
func (m *Manager) apply(e Event, finishInit bool) {
	m.lock.Lock()
	before := snapshot(m.state, m.initialized)
	m.state = Transition(m.state, e)
	if finishInit {
		m.initialized = true
	}
	after := snapshot(m.state, m.initialized)

	var listeners []func(AuthState)
	if before != after {
		for _, f := range m.listeners {
			listeners = append(listeners, f)
		}
	}
	m.lock.Unlock()

	for _, f := range listeners {
		f(after)
	}
}

// Initialize restores the stored credential. It runs once; later calls return
// the current AuthState without doing anything.
func (m *Manager) Initialize(ctx context.Context) AuthState {
	m.initOnce.Do(func() {
		m.initialize(ctx)
	})
	return m.Snapshot()
}

func (m *Manager) initialize(ctx context.Context) {
	m.apply(InitStarted{}, false)

	raw, ok, err := m.store.Get(credential.KeyAccessToken)
	if err != nil {
		m.logger.Warn().Err(err).Msg("reading stored credential")
	}
	if err != nil || !ok {
		m.apply(LoggedOut{}, true)
		return
	}

	cred, err := token.Decode(raw)
	if err == nil && !cred.Valid(m.nowTime()) {
		err = apperrors.ErrTokenExpired
	}
	if err != nil {
		m.logger.Info().Err(err).Msg("discarding stored credential")
		m.clearStored()
		m.apply(LoggedOut{}, true)
		return
	}

	m.holder.SetCredential(cred)

	company, err := m.fetchCompany(ctx, cred.Claims.CompanyID)
	if err != nil {
		var policyErr *transport.PolicyError
		if errors.As(err, &policyErr) && policyErr.Deauthenticated {
			m.clearStored()
			m.apply(LoggedOut{}, true)
			return
		}
		m.logger.Warn().Err(err).Str("company_id", cred.Claims.CompanyID).Msg("fetching company info")
	}

	m.apply(LoggedIn{User: cred.Claims, Company: company}, true)
}

func (m *Manager) fetchCompany(ctx context.Context, companyID string) (*api.CompanyInfo, error) {
	if companyID == "" {
		return nil, errors.New("[Manager.fetchCompany] credential carries no company id")
	}
	resp, err := m.backend.CompanyInfo(ctx, companyID)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.fetchCompany]")
	}
	if !resp.Succeeded() {
		return nil, errors.Errorf("[Manager.fetchCompany] status %q: %s", resp.Status, resp.Message)
	}
	company := resp.Data
	if m.setTitle != nil && company.Name != "" {
		m.setTitle(company.Name)
	}
	return &company, nil
}

// Login submits credentials. On success the email is staged as the pending
// challenge and the browsing context is sent to the one-time code page. The
// stored credential is restored first if Initialize has not run.
func (m *Manager) Login(ctx context.Context, email, password, subdomain string) (Result, error) {
	m.Initialize(ctx)

	email = strings.TrimSpace(email)
	resp, err := m.backend.Login(ctx, api.LoginRequest{Email: email, Password: password, Subdomain: subdomain})
	if err != nil {
		return failedResult(err)
	}
	if !resp.Succeeded() {
		return Result{Message: resp.Message, Code: resp.Code}, nil
	}

	challengeEmail := resp.Data.UserEmail
	if challengeEmail == "" {
		challengeEmail = email
	}
	if err := m.store.Set(credential.KeyPendingEmail, challengeEmail); err != nil {
		return Result{}, errors.Wrap(err, "[Manager.Login] staging pending challenge")
	}
	m.apply(ChallengeIssued{Email: challengeEmail}, false)
	navigation.Navigate(m.location, m.pages.OTP)

	return Result{OK: true, Message: resp.Message}, nil
}

// LoginWithTenantLookup logs in on a tenant host. On any other host it looks up
// the tenant that owns email and sends the browsing context to its login page.
func (m *Manager) LoginWithTenantLookup(ctx context.Context, email, password string) (LookupResult, error) {
	if m.resolver == nil {
		return LookupResult{}, errors.New("[Manager.LoginWithTenantLookup] no tenant resolver configured")
	}

	if m.resolver.HasTenantHost() {
		res, err := m.Login(ctx, email, password, m.resolver.CurrentSubdomain())
		return LookupResult{Result: res}, err
	}

	lookup := m.resolver.ResolveTenantByEmail(ctx, email)
	if !lookup.Found() {
		return LookupResult{Reason: lookup.Reason}, nil
	}

	loginPath := m.pages.Login + "?email=" + url.QueryEscape(email)
	if err := m.resolver.RedirectToTenant(lookup.Subdomain, loginPath); err != nil {
		return LookupResult{}, errors.Wrap(err, "[Manager.LoginWithTenantLookup]")
	}
	return LookupResult{Result: Result{OK: true}, Redirected: true}, nil
}

// VerifyOneTimeCode exchanges code for a credential. A rejected code leaves the
// challenge pending so the user can retry or resend.
func (m *Manager) VerifyOneTimeCode(ctx context.Context, code string) (VerifyResult, error) {
	email, err := m.pendingEmail()
	if err != nil {
		return VerifyResult{}, errors.Wrap(err, "[Manager.VerifyOneTimeCode]")
	}

	resp, err := m.backend.VerifyCode(ctx, api.VerifyCodeRequest{OTP: strings.TrimSpace(code), Email: email})
	if err != nil {
		res, err := failedResult(err)
		return VerifyResult{Result: res}, err
	}
	if !resp.Succeeded() {
		return VerifyResult{Result: Result{Message: resp.Message, Code: resp.Code}}, nil
	}

	cred, err := token.Decode(resp.Data.AccessToken)
	if err == nil && !cred.Valid(m.nowTime()) {
		err = apperrors.ErrTokenExpired
	}
	if err != nil {
		return VerifyResult{}, errors.Wrap(err, "[Manager.VerifyOneTimeCode] issued credential")
	}

	if err := m.store.Set(credential.KeyAccessToken, cred.Raw); err != nil {
		return VerifyResult{}, errors.Wrap(err, "[Manager.VerifyOneTimeCode] persisting credential")
	}
	m.holder.SetCredential(cred)
	if err := m.store.Delete(credential.KeyPendingEmail); err != nil {
		m.logger.Warn().Err(err).Msg("clearing pending challenge")
	}

	company, err := m.fetchCompany(ctx, cred.Claims.CompanyID)
	if err != nil {
		var policyErr *transport.PolicyError
		if errors.As(err, &policyErr) && policyErr.Deauthenticated {
			m.dropCredential()
			m.apply(LoggedOut{}, false)
			return VerifyResult{Result: Result{
				StatusCode: policyErr.StatusCode,
				Message:    policyErr.Error(),
				Code:       policyErr.Code,
			}}, nil
		}
		m.logger.Warn().Err(err).Str("company_id", cred.Claims.CompanyID).Msg("fetching company info")
	}
	m.apply(LoggedIn{User: cred.Claims, Company: company}, false)

	return VerifyResult{
		Result:    Result{OK: true, Message: resp.Message},
		Subdomain: cred.Claims.Subdomain,
		CompanyID: cred.Claims.CompanyID,
	}, nil
}

// ResendChallenge reissues the one-time code for the pending email.
func (m *Manager) ResendChallenge(ctx context.Context) (Result, error) {
	email, err := m.pendingEmail()
	if err != nil {
		return Result{}, errors.Wrap(err, "[Manager.ResendChallenge]")
	}
	resp, err := m.backend.ResendCode(ctx, email)
	if err != nil {
		return failedResult(err)
	}
	return envelopeResult(resp), nil
}

// Logout drops the credential and any pending challenge. It is safe to call in
// any state, any number of times. Subscribers are notified while the credential
// is still attached, so their sign-off calls are authenticated.
func (m *Manager) Logout() {
	m.apply(LoggedOut{}, false)
	m.dropCredential()
}

// Deauthenticate is Logout for revocations signalled by the backend. It is
// registered with the transport guard. The revoked credential is dropped before
// subscribers are notified.
func (m *Manager) Deauthenticate() {
	m.logger.Info().Msg("credential revoked by backend")
	m.dropCredential()
	m.apply(LoggedOut{}, false)
}

func (m *Manager) dropCredential() {
	m.holder.ClearCredential()
	m.clearStored()
	if err := m.store.Delete(credential.KeyPendingEmail); err != nil {
		m.logger.Warn().Err(err).Msg("clearing pending challenge")
	}
}

// ChangePassword changes the signed-in user's password.
func (m *Manager) ChangePassword(ctx context.Context, currentPassword, newPassword string) (Result, error) {
	snap := m.Snapshot()
	if !snap.IsLoggedIn || snap.User == nil {
		return Result{}, errors.Wrap(apperrors.ErrNoCredential, "[Manager.ChangePassword]")
	}
	resp, err := m.backend.ChangePassword(ctx, snap.User.User(), api.ChangePasswordRequest{
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	})
	if err != nil {
		return failedResult(err)
	}
	return envelopeResult(resp), nil
}

// ResetPasswordRequest asks the backend to send a reset link to email.
func (m *Manager) ResetPasswordRequest(ctx context.Context, email, subdomain string) (Result, error) {
	resp, err := m.backend.RequestPasswordReset(ctx, strings.TrimSpace(email), subdomain)
	if err != nil {
		return failedResult(err)
	}
	return envelopeResult(resp), nil
}

// ResetPassword sets a new password using the token from a reset link.
func (m *Manager) ResetPassword(ctx context.Context, resetToken, password, confirmPassword string) (Result, error) {
	resp, err := m.backend.ResetPassword(ctx, api.ResetPasswordRequest{
		Token:           resetToken,
		Password:        password,
		ConfirmPassword: confirmPassword,
	})
	if err != nil {
		return failedResult(err)
	}
	return envelopeResult(resp), nil
}

func (m *Manager) pendingEmail() (string, error) {
	email, ok, err := m.store.Get(credential.KeyPendingEmail)
	if err != nil {
		return "", err
	}
	if !ok || email == "" {
		return "", apperrors.ErrNoPendingChallenge
	}
	return email, nil
}

func (m *Manager) clearStored() {
	if err := m.store.Delete(credential.KeyAccessToken); err != nil {
		m.logger.Warn().Err(err).Msg("clearing stored credential")
	}
}

// failedResult turns a backend rejection into a Result. Transport failures and
// forced navigations stay errors.
func failedResult(err error) (Result, error) {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		return Result{
			StatusCode: statusErr.StatusCode,
			Message:    statusErr.Envelope.Message,
			Code:       statusErr.Envelope.Code,
		}, nil
	}
	return Result{}, err
}

func envelopeResult(env *api.Envelope) Result {
	return Result{OK: env.Succeeded(), Message: env.Message, Code: env.Code}
}
