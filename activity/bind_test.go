package activity_test

import (
	"context"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-console-session/activity"
	"github.com/jrsteele09/go-console-session/api"
	"github.com/jrsteele09/go-console-session/auth"
	"github.com/jrsteele09/go-console-session/credential"
	credentialrepofakes "github.com/jrsteele09/go-console-session/credential/repofakes"
	"github.com/jrsteele09/go-console-session/internal/backendfake"
	"github.com/jrsteele09/go-console-session/internal/clock"
	"github.com/jrsteele09/go-console-session/token"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	lock      sync.Mutex
	state     auth.AuthState
	listeners []func(auth.AuthState)
}

func (s *fakeSource) Snapshot() auth.AuthState {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

func (s *fakeSource) Subscribe(f func(auth.AuthState)) func() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.listeners = append(s.listeners, f)
	index := len(s.listeners) - 1
	return func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		s.listeners[index] = nil
	}
}

func (s *fakeSource) publish(state auth.AuthState) {
	s.lock.Lock()
	s.state = state
	listeners := slices.Clone(s.listeners)
	s.lock.Unlock()
	for _, f := range listeners {
		if f != nil {
			f(state)
		}
	}
}

func loggedIn(userID, companyID string) auth.AuthState {
	return auth.AuthState{
		IsLoggedIn:    true,
		IsInitialized: true,
		User:          &token.Claims{UserID: userID, CompanyID: companyID},
	}
}

func TestTracker_BindFollowsAuthState(t *testing.T) {
	f := setupTracker(t)
	source := &fakeSource{state: auth.AuthState{IsInitialized: true}}

	unbind := f.tracker.Bind(context.Background(), source, "bu-default")
	require.Equal(t, activity.NoSession, f.tracker.Phase())

	source.publish(loggedIn("u-1", "c-1"))
	require.Equal(t, activity.Active, f.tracker.Phase())
	require.Len(t, f.backend.ops("start"), 1)

	// Authenticated without a company id does not track
	source.publish(loggedIn("u-1", ""))
	require.Equal(t, activity.Ended, f.tracker.Phase())
	require.Len(t, f.backend.ops("end"), 1)

	source.publish(loggedIn("u-1", "c-1"))
	require.Equal(t, activity.Active, f.tracker.Phase())

	// A different user replaces the session
	source.publish(loggedIn("u-2", "c-1"))
	require.Len(t, f.backend.ops("start"), 3)
	require.Len(t, f.backend.ops("end"), 2)

	source.publish(auth.AuthState{IsInitialized: true})
	require.Equal(t, activity.Ended, f.tracker.Phase())
	require.Len(t, f.backend.ops("end"), 3)

	source.publish(loggedIn("u-1", "c-1"))
	unbind()
	require.Equal(t, activity.Ended, f.tracker.Phase())
	require.Len(t, f.backend.ops("end"), 4)

	source.publish(loggedIn("u-1", "c-1"))
	require.Equal(t, activity.Ended, f.tracker.Phase())
}

func TestTracker_AgainstBackend(t *testing.T) {
	c := clock.Fake(t0)
	backend := backendfake.New(backendfake.WithNowTime(c.Now))
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	client, err := api.New(server.URL+backendfake.BasePath, server.Client())
	require.NoError(t, err)

	store := credentialrepofakes.NewFakeStore()
	tracker := activity.New(client, store, activity.WithClock(c))

	tracker.Start(context.Background(), testIdentity)
	sessionID := tracker.SessionID()
	require.NotEmpty(t, sessionID)

	c.Advance(3 * time.Minute)
	tracker.OnInput(activity.KeyPress)
	c.Advance(20 * time.Minute)
	tracker.End(context.Background())

	live, ok := backend.Session(sessionID)
	require.True(t, ok)
	require.Equal(t, "u-1", live.UserID)
	require.Equal(t, "bu-7", live.BusinessUnitID)
	require.Equal(t, []int64{180, 120, 300}, live.Heartbeats)
	require.Equal(t, int64(600), live.ActiveSeconds)
	require.Equal(t, []int64{600}, live.IdleMarks)
	require.True(t, live.Ended)
	require.Equal(t, t0.Add(23*time.Minute), live.EndedAt)

	// A new tracker for the same browsing context finds nothing to resume
	_, stored, err := store.Get(credential.KeySessionID)
	require.NoError(t, err)
	require.False(t, stored)
}

func TestTracker_StaleResumeAgainstBackend(t *testing.T) {
	c := clock.Fake(t0)
	backend := backendfake.New(backendfake.WithNowTime(c.Now))
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	client, err := api.New(server.URL+backendfake.BasePath, server.Client())
	require.NoError(t, err)

	store := credentialrepofakes.NewFakeStore()
	require.NoError(t, store.Set(credential.KeySessionID, "closed-days-ago"))

	tracker := activity.New(client, store, activity.WithClock(c))
	tracker.Start(context.Background(), testIdentity)

	require.NotEqual(t, "closed-days-ago", tracker.SessionID())
	require.Equal(t, 1, backend.Sessions())

	stored, _, err := store.Get(credential.KeySessionID)
	require.NoError(t, err)
	require.Equal(t, tracker.SessionID(), stored)
}

func TestTracker_UnbindAfterCancelStillEndsSession(t *testing.T) {
	c := clock.Fake(t0)
	backend := backendfake.New(backendfake.WithNowTime(c.Now))
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	client, err := api.New(server.URL+backendfake.BasePath, server.Client())
	require.NoError(t, err)

	tracker := activity.New(client, credentialrepofakes.NewFakeStore(), activity.WithClock(c))
	source := &fakeSource{state: loggedIn("u-1", "c-1")}

	ctx, cancel := context.WithCancel(context.Background())
	unbind := tracker.Bind(ctx, source, "bu-7")
	sessionID := tracker.SessionID()
	require.NotEmpty(t, sessionID)

	c.Advance(time.Minute)
	cancel()
	unbind()

	live, ok := backend.Session(sessionID)
	require.True(t, ok)
	require.True(t, live.Ended)
	require.Equal(t, t0.Add(time.Minute), live.EndedAt)
}
