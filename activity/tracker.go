// Package activity keeps a server-side live session record up to date while a
// user is signed in.
package activity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jrsteele09/go-console-session/api"
	"github.com/jrsteele09/go-console-session/credential"
	"github.com/jrsteele09/go-console-session/internal/clock"
	"github.com/jrsteele09/go-console-session/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultHeartbeatInterval = 5 * time.Minute
	DefaultIdleTimeout       = 10 * time.Minute
)

// Tracker call names used in logs and metrics.
const (
	opStart     = "start"
	opResume    = "resume"
	opHeartbeat = "heartbeat"
	opIdle      = "idle"
	opEnd       = "end"
)

// Phase is the tracker's position in NoSession -> Active <-> Idle -> Ended.
type Phase int

const (
	NoSession Phase = iota
	Starting
	Active
	Idle
	Ended
)

func (p Phase) String() string {
	switch p {
	case NoSession:
		return "NO_SESSION"
	case Starting:
		return "STARTING"
	case Active:
		return "ACTIVE"
	case Idle:
		return "IDLE"
	case Ended:
		return "ENDED"
	}
	return "UNKNOWN"
}

// InputKind names the user input that counts as activity.
type InputKind string

const (
	PointerMove InputKind = "pointer_move"
	KeyPress    InputKind = "key_press"
	Focus       InputKind = "focus"
)

// Backend is the live session API.
type Backend interface {
	StartSession(ctx context.Context, req api.StartSessionRequest) (string, error)
	Heartbeat(ctx context.Context, sessionID string, incrementSeconds int64) error
	MarkIdle(ctx context.Context, sessionID string, idleSeconds int64) error
	EndSession(ctx context.Context, sessionID string, endedAt time.Time) error
}

// Identity is who a live session belongs to.
type Identity struct {
	UserID         string
	CompanyID      string
	BusinessUnitID string
}

// Tracker is the single owner of a browsing context's live session. All of its
// time accounting runs from one lastActive marker. Network calls are made
// without holding the lock and their failures are only logged.
type Tracker struct {
	backend           Backend
	store             credential.Store
	clock             clock.Clock
	heartbeatInterval time.Duration
	idleTimeout       time.Duration
	inputLimiter      *rate.Limiter // Nil sends a heartbeat on every input
	logger            zerolog.Logger
	metrics           metrics.Recorder

	lock       sync.Mutex
	phase      Phase
	generation uint64 // Bumped on every Start and End so stale callbacks can tell
	ctx        context.Context
	identity   Identity
	sessionID  string
	lastActive time.Time
	heartbeat  clock.Timer
	idle       clock.Timer
}

type Option func(*Tracker)

// WithClock sets the clock driving the heartbeat and idle timers.
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) {
		t.clock = c
	}
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.heartbeatInterval = d
		}
	}
}

func WithIdleTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.idleTimeout = d
		}
	}
}

// WithInputThrottle limits input-driven heartbeats to one per every. Time from
// throttled inputs is carried by the next heartbeat sent.
func WithInputThrottle(every time.Duration) Option {
	return func(t *Tracker) {
		if every > 0 {
			t.inputLimiter = rate.NewLimiter(rate.Every(every), 1)
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func WithMetrics(recorder metrics.Recorder) Option {
	return func(t *Tracker) {
		t.metrics = recorder
	}
}

// New creates a Tracker with no session.
func New(backend Backend, store credential.Store, options ...Option) *Tracker {
	t := &Tracker{
		backend:           backend,
		store:             store,
		clock:             clock.Real(),
		heartbeatInterval: DefaultHeartbeatInterval,
		idleTimeout:       DefaultIdleTimeout,
		logger:            zerolog.Nop(),
		metrics:           metrics.Nop{},
		phase:             NoSession,
		ctx:               context.Background(),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.phase
}

// SessionID returns the live session id, empty outside Active and Idle.
func (t *Tracker) SessionID() string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.sessionID
}

// Start adopts the stored session id, or opens a new session when there is
// none. It does nothing if a session is already starting or running.
func (t *Tracker) Start(ctx context.Context, id Identity) {
	if id.UserID == "" || id.CompanyID == "" {
		return
	}

	t.lock.Lock()
	switch t.phase {
	case Starting, Active, Idle:
		t.lock.Unlock()
		return
	}
	t.phase = Starting
	t.generation++
	gen := t.generation
	t.identity = id
	t.ctx = context.WithoutCancel(ctx)
	t.lock.Unlock()

	t.open(gen)
}

// open runs the network part of Start for generation gen.
func (t *Tracker) open(gen uint64) {
	t.lock.Lock()
	ctx, id := t.ctx, t.identity
	t.lock.Unlock()

	sessionID, resumed := t.resumable(ctx)
	if !resumed {
		var err error
		sessionID, err = t.backend.StartSession(ctx, api.StartSessionRequest{
			UserID:         id.UserID,
			CompanyID:      id.CompanyID,
			BusinessUnitID: id.BusinessUnitID,
			StartedAt:      t.clock.Now().UTC(),
		})
		t.metrics.RecordTrackerCall(opStart, err)
		if err != nil {
			t.logger.Warn().Err(err).Str("op", opStart).Str("user_id", id.UserID).Msg("opening live session")
			t.lock.Lock()
			if t.generation == gen {
				t.phase = NoSession
			}
			t.lock.Unlock()
			return
		}
		if err := t.store.Set(credential.KeySessionID, sessionID); err != nil {
			t.logger.Warn().Err(err).Str("session_id", sessionID).Msg("persisting session id")
		}
	}

	t.lock.Lock()
	if t.generation != gen || t.phase != Starting {
		// Ended while the start was in flight
		t.lock.Unlock()
		t.close(ctx, sessionID)
		return
	}
	t.sessionID = sessionID
	t.phase = Active
	t.lastActive = t.clock.Now()
	t.heartbeat = t.clock.AfterFunc(t.heartbeatInterval, t.tickFor(gen))
	t.idle = t.clock.AfterFunc(t.idleTimeout, t.idleFor(gen))
	t.lock.Unlock()

	t.logger.Info().Str("session_id", sessionID).Bool("resumed", resumed).Msg("live session started")
}

// resumable returns the stored session id if the backend still accepts it. A
// stored id the backend has closed is dropped.
func (t *Tracker) resumable(ctx context.Context) (string, bool) {
	sessionID, ok, err := t.store.Get(credential.KeySessionID)
	if err != nil {
		t.logger.Warn().Err(err).Msg("reading stored session id")
		return "", false
	}
	if !ok || sessionID == "" {
		return "", false
	}

	err = t.backend.Heartbeat(ctx, sessionID, 0)
	t.metrics.RecordTrackerCall(opResume, err)
	switch {
	case err == nil:
		return sessionID, true
	case isGone(err):
		t.logger.Info().Str("session_id", sessionID).Msg("stored session closed by backend, starting fresh")
		t.forgetStored()
		return "", false
	default:
		// The backend is the source of truth; resume and let heartbeats decide.
		t.logger.Warn().Err(err).Str("op", opResume).Str("session_id", sessionID).Msg("probing stored session")
		return sessionID, true
	}
}

func (t *Tracker) tickFor(gen uint64) func() {
	return func() {
		t.lock.Lock()
		current := t.generation == gen
		t.lock.Unlock()
		if current {
			t.Tick()
		}
	}
}

func (t *Tracker) idleFor(gen uint64) func() {
	return func() {
		t.lock.Lock()
		current := t.generation == gen
		t.lock.Unlock()
		if current {
			t.IdleFired()
		}
	}
}

// Tick is the heartbeat interval firing. It sends a heartbeat while active and
// re-arms the interval while a session is live.
func (t *Tracker) Tick() {
	t.sendHeartbeat()

	t.lock.Lock()
	defer t.lock.Unlock()
	if (t.phase == Active || t.phase == Idle) && t.heartbeat != nil {
		t.heartbeat.Reset(t.heartbeatInterval)
	}
}

// OnInput records user input. It restarts the idle timeout, resumes an idle
// session and sends a heartbeat for the time since the last one.
func (t *Tracker) OnInput(kind InputKind) {
	t.lock.Lock()
	switch t.phase {
	case Active:
	case Idle:
		// The idle gap is not active time
		t.phase = Active
		t.lastActive = t.clock.Now()
		t.logger.Debug().Str("session_id", t.sessionID).Str("input", string(kind)).Msg("live session resumed")
	default:
		t.lock.Unlock()
		return
	}
	if t.idle != nil {
		t.idle.Reset(t.idleTimeout)
	}
	throttled := t.inputLimiter != nil && !t.inputLimiter.AllowN(t.clock.Now(), 1)
	t.lock.Unlock()

	if !throttled {
		t.sendHeartbeat()
	}
}

// IdleFired is the idle timeout firing. The session is marked idle and stops
// accruing active time until the next input.
func (t *Tracker) IdleFired() {
	t.lock.Lock()
	if t.phase != Active {
		t.lock.Unlock()
		return
	}
	t.phase = Idle
	ctx, sessionID, gen := t.ctx, t.sessionID, t.generation
	t.lock.Unlock()

	err := t.backend.MarkIdle(ctx, sessionID, int64(t.idleTimeout/time.Second))
	t.record(opIdle, sessionID, gen, err)
}

// sendHeartbeat sends the whole seconds elapsed since lastActive and advances
// the marker by exactly that much. It is a no-op unless the session is active.
func (t *Tracker) sendHeartbeat() {
	t.lock.Lock()
	if t.phase != Active {
		t.lock.Unlock()
		return
	}
	increment := int64(t.clock.Now().Sub(t.lastActive) / time.Second)
	if increment <= 0 {
		t.lock.Unlock()
		return
	}
	t.lastActive = t.lastActive.Add(time.Duration(increment) * time.Second)
	ctx, sessionID, gen := t.ctx, t.sessionID, t.generation
	t.lock.Unlock()

	err := t.backend.Heartbeat(ctx, sessionID, increment)
	t.record(opHeartbeat, sessionID, gen, err)
}

// record logs and counts a best-effort call. A session the backend reports as
// closed is replaced with a fresh one.
func (t *Tracker) record(op, sessionID string, gen uint64, err error) {
	t.metrics.RecordTrackerCall(op, err)
	if err == nil {
		return
	}
	t.logger.Warn().Err(err).Str("op", op).Str("session_id", sessionID).Msg("live session call failed")

	if isGone(err) {
		t.restart(gen)
	}
}

// restart drops the closed session of generation gen and opens a new one.
func (t *Tracker) restart(gen uint64) {
	t.lock.Lock()
	if t.generation != gen || (t.phase != Active && t.phase != Idle) {
		t.lock.Unlock()
		return
	}
	t.stopTimersLocked()
	t.sessionID = ""
	t.phase = Starting
	t.generation++
	next := t.generation
	t.lock.Unlock()

	t.forgetStored()
	t.open(next)
}

// End closes the live session and forgets the stored id. Calling it without a
// session does nothing. The end mark is sent even when ctx is already
// cancelled, as it is on teardown.
func (t *Tracker) End(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	t.lock.Lock()
	switch t.phase {
	case NoSession, Ended:
		t.lock.Unlock()
		return
	}
	wasStarting := t.phase == Starting
	t.phase = Ended
	t.generation++
	t.stopTimersLocked()
	sessionID := t.sessionID
	t.sessionID = ""
	t.lock.Unlock()

	if wasStarting {
		// open sees the new generation and closes what it obtained
		return
	}
	t.close(ctx, sessionID)
}

func (t *Tracker) close(ctx context.Context, sessionID string) {
	t.forgetStored()
	if sessionID == "" {
		return
	}
	err := t.backend.EndSession(ctx, sessionID, t.clock.Now().UTC())
	t.metrics.RecordTrackerCall(opEnd, err)
	if err != nil {
		t.logger.Warn().Err(err).Str("op", opEnd).Str("session_id", sessionID).Msg("ending live session")
		return
	}
	t.logger.Info().Str("session_id", sessionID).Msg("live session ended")
}

func (t *Tracker) stopTimersLocked() {
	if t.heartbeat != nil {
		t.heartbeat.Stop()
		t.heartbeat = nil
	}
	if t.idle != nil {
		t.idle.Stop()
		t.idle = nil
	}
}

func (t *Tracker) forgetStored() {
	if err := t.store.Delete(credential.KeySessionID); err != nil {
		t.logger.Warn().Err(err).Msg("removing stored session id")
	}
}

// isGone reports whether err says the session no longer exists server-side.
func isGone(err error) bool {
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusNotFound || statusErr.StatusCode == http.StatusGone
}
