package auth

import (
	"github.com/jrsteele09/go-console-session/api"
	"github.com/jrsteele09/go-console-session/token"
)

// State is one of Uninitialized, Initializing, ChallengePending, Authenticated
// or Unauthenticated.
type State interface {
	String() string
	isState()
}

type Uninitialized struct{}

type Initializing struct{}

// ChallengePending means credentials were accepted and a one-time code was sent
// to Email.
type ChallengePending struct {
	Email string
}

type Authenticated struct {
	User    *token.Claims
	Company *api.CompanyInfo // Nil when company info could not be fetched
}

type Unauthenticated struct{}

func (Uninitialized) isState()    {}
func (Initializing) isState()     {}
func (ChallengePending) isState() {}
func (Authenticated) isState()    {}
func (Unauthenticated) isState()  {}

func (Uninitialized) String() string    { return "UNINITIALIZED" }
func (Initializing) String() string     { return "INITIALIZING" }
func (ChallengePending) String() string { return "CHALLENGE_PENDING" }
func (Authenticated) String() string    { return "AUTHENTICATED" }
func (Unauthenticated) String() string  { return "UNAUTHENTICATED" }

// Event drives Transition.
type Event interface {
	isEvent()
}

type InitStarted struct{}

type ChallengeIssued struct {
	Email string
}

type LoggedIn struct {
	User    *token.Claims
	Company *api.CompanyInfo
}

type LoggedOut struct{}

func (InitStarted) isEvent()     {}
func (ChallengeIssued) isEvent() {}
func (LoggedIn) isEvent()        {}
func (LoggedOut) isEvent()       {}

// Transition returns the state that follows s on e. Events that do not apply to
// s leave it unchanged.
func Transition(s State, e Event) State {
	switch ev := e.(type) {
	case LoggedOut:
		return Unauthenticated{}

	case LoggedIn:
		return Authenticated{User: ev.User, Company: ev.Company}

	case InitStarted:
		if _, ok := s.(Uninitialized); ok {
			return Initializing{}
		}

	case ChallengeIssued:
		switch s.(type) {
		case Unauthenticated, ChallengePending:
			return ChallengePending{Email: ev.Email}
		}
	}
	return s
}

// AuthState is the view of the state machine the rest of the console reads.
type AuthState struct {
	IsLoggedIn    bool
	IsInitialized bool
	User          *token.Claims
	Company       *api.CompanyInfo
}

func snapshot(s State, initialized bool) AuthState {
	as := AuthState{IsInitialized: initialized}
	if a, ok := s.(Authenticated); ok {
		as.IsLoggedIn = true
		as.User = a.User
		as.Company = a.Company
	}
	return as
}
