package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/internal/metrics"
	"github.com/jrsteele09/go-console-session/navigation"
	"github.com/jrsteele09/go-console-session/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 64 << 10
)

// ErrTransport is returned when no response was received.
var ErrTransport = apperrors.ErrTransport

// Guard is the request pipeline every backend call goes through. It attaches the
// current credential and turns authentication and policy failures into forced
// navigations of the browsing context.
type Guard struct {
	base         http.RoundTripper
	location     navigation.Location
	pages        navigation.Pages
	loginSurface []string
	nowTime      func() time.Time
	logger       zerolog.Logger
	metrics      metrics.Recorder

	credential atomic.Pointer[token.Credential]

	deauthLock sync.RWMutex
	onDeauth   func()
}

var _ http.RoundTripper = (*Guard)(nil)

// Option configures a Guard.
type Option func(*Guard)

// WithBase sets the underlying transport. Defaults to http.DefaultTransport.
func WithBase(base http.RoundTripper) Option {
	return func(g *Guard) {
		g.base = base
	}
}

// WithPages overrides the forced-navigation targets.
func WithPages(pages navigation.Pages) Option {
	return func(g *Guard) {
		g.pages = pages
	}
}

// WithLoginSurface sets the endpoint paths whose 401 responses are passed through.
func WithLoginSurface(paths []string) Option {
	return func(g *Guard) {
		g.loginSurface = paths
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(g *Guard) {
		g.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithMetrics(recorder metrics.Recorder) Option {
	return func(g *Guard) {
		g.metrics = recorder
	}
}

// New creates a Guard that navigates location on policy failures.
func New(location navigation.Location, options ...Option) *Guard {
	g := &Guard{
		base:     http.DefaultTransport,
		location: location,
		pages:    navigation.DefaultPages(),
		loginSurface: []string{
			"/login",
			"/code-verification",
			"/resend-code",
			"/request-password-reset",
			"/reset-password",
			"/tenant-subdomain",
			"/check-subdomain",
		},
		nowTime: time.Now,
		logger:  zerolog.Nop(),
		metrics: metrics.Nop{},
	}

	for _, opt := range options {
		opt(g)
	}
	return g
}

// Client returns an http.Client using the guard as its transport.
func (g *Guard) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: g, Timeout: timeout}
}

// SetCredential swaps in the credential attached to subsequent requests.
func (g *Guard) SetCredential(cred *token.Credential) {
	g.credential.Store(cred)
}

// ClearCredential detaches the credential.
func (g *Guard) ClearCredential() {
	g.credential.Store(nil)
}

// Credential returns the attached credential, or nil.
func (g *Guard) Credential() *token.Credential {
	return g.credential.Load()
}

// OnDeauthenticate registers the function called when a response revokes the
// session. It runs after the guard has dropped its own credential.
func (g *Guard) OnDeauthenticate(f func()) {
	g.deauthLock.Lock()
	defer g.deauthLock.Unlock()
	g.onDeauth = f
}

// RoundTrip implements http.RoundTripper.
func (g *Guard) RoundTrip(req *http.Request) (*http.Response, error) {
	outbound := req.Clone(req.Context())
	if outbound.Header.Get(requestIDHeader) == "" {
		outbound.Header.Set(requestIDHeader, uuid.NewString())
	}

	// Expired credentials are never sent
	if cred := g.credential.Load(); cred.Valid(g.nowTime()) {
		cred.OAuth2Token().SetAuthHeader(outbound)
	}

	resp, err := g.base.RoundTrip(outbound)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "[Guard.RoundTrip] %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized && !g.onLoginSurface(req):
		drain(resp)
		return nil, g.enforce(resp.StatusCode, "", unauthorizedPolicy)

	case resp.StatusCode == http.StatusForbidden:
		code := forbiddenCode(resp)
		return nil, g.enforce(resp.StatusCode, code, forbiddenPolicy(code))
	}

	return resp, nil
}

func (g *Guard) enforce(status int, code string, p policy) *PolicyError {
	target := p.target(g.pages)
	if p.deauth {
		g.deauthenticate()
	}

	navigated := navigation.Navigate(g.location, target)
	if navigated {
		g.metrics.RecordForcedNavigation(target)
	}

	g.logger.Warn().
		Int("status", status).
		Str("code", code).
		Str("target", target).
		Bool("navigated", navigated).
		Msg("policy violation")

	return &PolicyError{
		StatusCode:      status,
		Code:            code,
		Target:          target,
		Navigated:       navigated,
		Deauthenticated: p.deauth,
	}
}

func (g *Guard) deauthenticate() {
	g.ClearCredential()

	g.deauthLock.RLock()
	hook := g.onDeauth
	g.deauthLock.RUnlock()
	if hook != nil {
		hook()
	}
}

func (g *Guard) onLoginSurface(req *http.Request) bool {
	path := strings.TrimRight(req.URL.Path, "/") + "/"
	for _, surface := range g.loginSurface {
		if strings.Contains(path, strings.TrimRight(surface, "/")+"/") {
			return true
		}
	}
	return false
}

// forbiddenCode reads the structured code from a 403 body and closes it.
func forbiddenCode(resp *http.Response) string {
	defer resp.Body.Close()

	var payload struct {
		Code      string `json:"code"`
		ErrorCode string `json:"error_code"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || json.Unmarshal(data, &payload) != nil {
		return ""
	}
	if payload.Code != "" {
		return payload.Code
	}
	return payload.ErrorCode
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
