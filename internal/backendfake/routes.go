package backendfake

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func (b *Backend) initRoutes() {
	b.handle("POST "+BasePath+"/login", b.login)
	b.handle("POST "+BasePath+"/code-verification", b.verifyCode)
	b.handle("POST "+BasePath+"/resend-code", b.resendCode)
	b.handle("GET "+BasePath+"/tenant-subdomain", b.tenantSubdomain)
	b.handle("GET "+BasePath+"/check-subdomain/{subdomain}", b.checkSubdomain)
	b.handle("GET "+BasePath+"/company-info/{companyID}", b.companyInfo)
	b.handle("POST "+BasePath+"/request-password-reset", b.requestPasswordReset)
	b.handle("POST "+BasePath+"/reset-password", b.resetPassword)
	b.handle("POST "+BasePath+"/employee/change-password/{userID}", b.changePassword)
	b.handle("POST "+BasePath+"/employee/session", b.sessionRoute(b.startSession))
	b.handle("PUT "+BasePath+"/session/heartbeat/{id}", b.sessionRoute(b.heartbeat))
	b.handle("PUT "+BasePath+"/employee/session/idle/{id}", b.sessionRoute(b.markIdle))
	b.handle("PUT "+BasePath+"/employee/session/end/{id}", b.sessionRoute(b.endSession))
}

// sessionRoute puts h behind bearer authentication when the backend was built
// WithSessionAuth.
func (b *Backend) sessionRoute(h http.HandlerFunc) http.HandlerFunc {
	if !b.sessionAuth {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := b.bearerUser(r); !ok {
			writeStatus(w, http.StatusUnauthorized, "error", "Unauthorized")
			return
		}
		h(w, r)
	}
}

// handle wraps h with call counting and failure injection.
func (b *Backend) handle(pattern string, h http.HandlerFunc) {
	b.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		b.lock.Lock()
		b.calls[pattern]++
		f, failing := b.failures[pattern]
		b.lock.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.body)
			return
		}
		h(w, r)
	})
}

func decode(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func (b *Backend) bearerUser(r *http.Request) (*User, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil, false
	}
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return b.secret, nil
	}, jwt.WithTimeFunc(b.nowTime), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return nil, false
	}
	email, _ := claims["email"].(string)

	b.lock.Lock()
	defer b.lock.Unlock()
	u, ok := b.users[strings.ToLower(email)]
	return u, ok
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		Subdomain string `json:"subdomain"`
	}
	if !decode(r, &req) {
		writeStatus(w, http.StatusBadRequest, "error", "Invalid request")
		return
	}

	b.lock.Lock()
	u, ok := b.users[strings.ToLower(req.Email)]
	company := b.companies[req.Subdomain]
	b.lock.Unlock()

	if !ok || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		writeStatus(w, http.StatusUnauthorized, "error", "Invalid email or password")
		return
	}
	if company == nil || company.ID != u.CompanyID {
		writeStatus(w, http.StatusUnauthorized, "error", "User does not belong to this workspace")
		return
	}

	b.lock.Lock()
	b.challenges[strings.ToLower(u.Email)] = b.otp
	b.lock.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]string{"user_email": u.Email},
	})
}

func (b *Backend) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OTP   string `json:"otp"`
		Email string `json:"email"`
	}
	if !decode(r, &req) {
		writeStatus(w, http.StatusBadRequest, "error", "Invalid request")
		return
	}

	key := strings.ToLower(req.Email)
	b.lock.Lock()
	code, pending := b.challenges[key]
	u := b.users[key]
	var subdomain string
	if u != nil {
		for _, c := range b.companies {
			if c.ID == u.CompanyID {
				subdomain = c.Subdomain
			}
		}
	}
	if pending && code == req.OTP {
		delete(b.challenges, key)
	}
	b.lock.Unlock()

	if !pending || code != req.OTP || u == nil {
		writeStatus(w, http.StatusBadRequest, "error", "Invalid or expired code")
		return
	}

	raw, err := b.Mint(*u, subdomain, b.nowTime().Add(b.tokenTTL))
	if err != nil {
		writeStatus(w, http.StatusInternalServerError, "error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]string{"access_token": raw},
	})
}

func (b *Backend) resendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(r, &req) {
		writeStatus(w, http.StatusBadRequest, "error", "Invalid request")
		return
	}

	b.lock.Lock()
	_, pending := b.challenges[strings.ToLower(req.Email)]
	if pending {
		b.challenges[strings.ToLower(req.Email)] = b.otp
	}
	b.lock.Unlock()

	if !pending {
		writeStatus(w, http.StatusNotFound, "error", "No pending verification")
		return
	}
	writeStatus(w, http.StatusOK, "success", "Code sent")
}

func (b *Backend) tenantSubdomain(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(r.URL.Query().Get("email"))

	b.lock.Lock()
	defer b.lock.Unlock()
	if u, ok := b.users[email]; ok {
		for _, c := range b.companies {
			if c.ID == u.CompanyID {
				writeJSON(w, http.StatusOK, map[string]string{"status": "success", "subdomain": c.Subdomain})
				return
			}
		}
	}
	writeStatus(w, http.StatusNotFound, "error", "No workspace for this email")
}

func (b *Backend) checkSubdomain(w http.ResponseWriter, r *http.Request) {
	b.lock.Lock()
	_, found := b.companies[r.PathValue("subdomain")]
	b.lock.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "isFound": found})
}

func (b *Backend) companyInfo(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.bearerUser(r); !ok {
		writeStatus(w, http.StatusUnauthorized, "error", "Unauthorized")
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()
	for _, c := range b.companies {
		if c.ID == r.PathValue("companyID") {
			writeJSON(w, http.StatusOK, map[string]any{
				"status": "success",
				"data": map[string]string{
					"id":           c.ID,
					"name":         c.Name,
					"subdomain":    c.Subdomain,
					"subscription": c.Subscription,
					"status":       "active",
				},
			})
			return
		}
	}
	writeStatus(w, http.StatusNotFound, "error", "Company not found")
}

func (b *Backend) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(r, &req) || req.Email == "" {
		writeStatus(w, http.StatusBadRequest, "error", "Email is required")
		return
	}
	writeStatus(w, http.StatusOK, "success", "If the account exists a reset link was sent")
}

func (b *Backend) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decode(r, &req) || req.Token != DefaultResetToken || req.Password == "" {
		writeStatus(w, http.StatusBadRequest, "error", "Invalid or expired reset link")
		return
	}
	writeStatus(w, http.StatusOK, "success", "Password updated")
}

func (b *Backend) changePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := b.bearerUser(r)
	if !ok {
		writeStatus(w, http.StatusUnauthorized, "error", "Unauthorized")
		return
	}
	if u.ID != r.PathValue("userID") {
		writeJSON(w, http.StatusForbidden, map[string]string{"status": "error", "code": "FORBIDDEN"})
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decode(r, &req) || req.NewPassword == "" {
		writeStatus(w, http.StatusBadRequest, "error", "New password is required")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)) != nil {
		writeStatus(w, http.StatusBadRequest, "error", "Current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.MinCost)
	if err != nil {
		writeStatus(w, http.StatusInternalServerError, "error", err.Error())
		return
	}
	b.lock.Lock()
	u.PasswordHash = string(hash)
	b.lock.Unlock()
	writeStatus(w, http.StatusOK, "success", "Password changed")
}

func (b *Backend) startSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID         string    `json:"user_id"`
		CompanyID      string    `json:"company_id"`
		BusinessUnitID string    `json:"business_unit_id"`
		StartedAt      time.Time `json:"started_at"`
	}
	if !decode(r, &req) || req.UserID == "" || req.CompanyID == "" {
		writeStatus(w, http.StatusBadRequest, "error", "user_id and company_id are required")
		return
	}

	s := &LiveSession{
		ID:             b.newSessionID(),
		UserID:         req.UserID,
		CompanyID:      req.CompanyID,
		BusinessUnitID: req.BusinessUnitID,
		StartedAt:      req.StartedAt,
	}
	b.lock.Lock()
	b.sessions[s.ID] = s
	b.lock.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "success",
		"data":   map[string]string{"session_id": s.ID},
	})
}

// liveSession returns the open session for the request, writing 404 or 410 when
// there is none. Must be called with b.lock held.
func (b *Backend) liveSession(w http.ResponseWriter, r *http.Request) (*LiveSession, bool) {
	s, ok := b.sessions[r.PathValue("id")]
	if !ok {
		writeStatus(w, http.StatusNotFound, "error", "Session not found")
		return nil, false
	}
	if s.Ended {
		writeStatus(w, http.StatusGone, "error", "Session has ended")
		return nil, false
	}
	return s, true
}

func (b *Backend) heartbeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IncrementSeconds int64 `json:"increment_seconds"`
	}
	if !decode(r, &req) || req.IncrementSeconds < 0 {
		writeStatus(w, http.StatusBadRequest, "error", "Invalid increment")
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()
	s, ok := b.liveSession(w, r)
	if !ok {
		return
	}
	s.ActiveSeconds += req.IncrementSeconds
	s.Heartbeats = append(s.Heartbeats, req.IncrementSeconds)
	s.Idle = false
	writeStatus(w, http.StatusOK, "success", "ok")
}

func (b *Backend) markIdle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IdleSeconds int64 `json:"idle_seconds"`
	}
	if !decode(r, &req) {
		writeStatus(w, http.StatusBadRequest, "error", "Invalid request")
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()
	s, ok := b.liveSession(w, r)
	if !ok {
		return
	}
	s.Idle = true
	s.IdleMarks = append(s.IdleMarks, req.IdleSeconds)
	writeStatus(w, http.StatusOK, "success", "ok")
}

func (b *Backend) endSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EndedAt time.Time `json:"ended_at"`
	}
	if !decode(r, &req) {
		writeStatus(w, http.StatusBadRequest, "error", "Invalid request")
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()
	s, ok := b.liveSession(w, r)
	if !ok {
		return
	}
	s.Ended = true
	s.EndedAt = req.EndedAt
	writeStatus(w, http.StatusOK, "success", "ok")
}
