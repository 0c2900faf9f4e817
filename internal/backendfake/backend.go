// Package backendfake is an in-process implementation of the console backend
// endpoints used by package tests and local CLI runs.
package backendfake

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BasePath prefixes every route.
	BasePath = "/api"

	DefaultOTP        = "123456"
	DefaultResetToken = "reset-token"
)

type Company struct {
	ID           string
	Name         string
	Subdomain    string
	Subscription string
}

type User struct {
	ID             string
	Email          string
	Name           string
	CompanyID      string
	BusinessUnitID string
	Role           string
	PasswordHash   string
}

// LiveSession is the server side of an activity tracker session.
type LiveSession struct {
	ID             string
	UserID         string
	CompanyID      string
	BusinessUnitID string
	StartedAt      time.Time
	ActiveSeconds  int64
	Heartbeats     []int64
	Idle           bool
	IdleMarks      []int64
	Ended          bool
	EndedAt        time.Time
}

type failure struct {
	status int
	body   string
}

// Backend holds all fake state. The zero value is not usable; call New.
type Backend struct {
	lock       sync.Mutex
	mux        *http.ServeMux
	secret     []byte
	tokenTTL   time.Duration
	nowTime    func() time.Time
	otp        string
	companies  map[string]*Company // By subdomain
	users      map[string]*User    // By email
	challenges map[string]string   // Email to pending code
	sessions   map[string]*LiveSession
	failures   map[string]failure
	calls      map[string]int

	sessionAuth bool // Live session routes answer 401 without a valid bearer token
}

// Option configures a Backend.
type Option func(*Backend)

// WithNowTime sets the now time function used for token expiry and sessions.
func WithNowTime(nowFunc func() time.Time) Option {
	return func(b *Backend) {
		b.nowTime = nowFunc
	}
}

// WithTokenTTL sets the lifetime of issued access tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		b.tokenTTL = ttl
	}
}

// WithSessionAuth makes the live session routes require a valid bearer token.
func WithSessionAuth() Option {
	return func(b *Backend) {
		b.sessionAuth = true
	}
}

// New creates an empty Backend.
func New(options ...Option) *Backend {
	b := &Backend{
		mux:        http.NewServeMux(),
		secret:     []byte("backendfake-secret"),
		tokenTTL:   time.Hour,
		nowTime:    time.Now,
		otp:        DefaultOTP,
		companies:  make(map[string]*Company),
		users:      make(map[string]*User),
		challenges: make(map[string]string),
		sessions:   make(map[string]*LiveSession),
		failures:   make(map[string]failure),
		calls:      make(map[string]int),
	}
	for _, opt := range options {
		opt(b)
	}
	b.initRoutes()
	return b
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

// AddCompany registers a tenant.
func (b *Backend) AddCompany(c Company) {
	b.lock.Lock()
	defer b.lock.Unlock()
	company := c
	b.companies[c.Subdomain] = &company
}

// RemoveCompany deletes the tenant with subdomain.
func (b *Backend) RemoveCompany(subdomain string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	delete(b.companies, subdomain)
}

// AddUser registers a user with a plain-text password.
func (b *Backend) AddUser(u User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	user := u
	user.PasswordHash = string(hash)
	b.users[strings.ToLower(u.Email)] = &user
	return nil
}

// Fail makes every request to route answer with status and body until Recover
// is called. route is the mux pattern, e.g. "PUT /api/session/heartbeat/{id}".
func (b *Backend) Fail(route string, status int, body string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.failures[route] = failure{status: status, body: body}
}

// Recover clears a failure set with Fail.
func (b *Backend) Recover(route string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	delete(b.failures, route)
}

// Calls returns how many requests route has received.
func (b *Backend) Calls(route string) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.calls[route]
}

// Session returns a copy of the live session with id.
func (b *Backend) Session(id string) (LiveSession, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	s, ok := b.sessions[id]
	if !ok {
		return LiveSession{}, false
	}
	copied := *s
	copied.Heartbeats = append([]int64(nil), s.Heartbeats...)
	copied.IdleMarks = append([]int64(nil), s.IdleMarks...)
	return copied, true
}

// Sessions returns the number of live session records created.
func (b *Backend) Sessions() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.sessions)
}

// PendingCode returns the outstanding one-time code for email.
func (b *Backend) PendingCode(email string) (string, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	code, ok := b.challenges[strings.ToLower(email)]
	return code, ok
}

// Mint signs an access token for user expiring at exp.
func (b *Backend) Mint(u User, subdomain string, exp time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":              u.ID,
		"user_id":          u.ID,
		"email":            u.Email,
		"name":             u.Name,
		"company_id":       u.CompanyID,
		"business_unit_id": u.BusinessUnitID,
		"subdomain":        subdomain,
		"role":             u.Role,
		"iat":              b.nowTime().Unix(),
		"exp":              exp.Unix(),
		"jti":              uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
}

func (b *Backend) newSessionID() string {
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeStatus(w http.ResponseWriter, status int, state, message string) {
	writeJSON(w, status, map[string]string{"status": state, "message": message})
}
