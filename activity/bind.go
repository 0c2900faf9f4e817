package activity

import (
	"context"

	"github.com/jrsteele09/go-console-session/auth"
)

// StateSource publishes auth state changes. *auth.Manager implements it.
type StateSource interface {
	Snapshot() auth.AuthState
	Subscribe(f func(auth.AuthState)) func()
}

// Bind runs the tracker for as long as source reports a signed-in user with a
// company. businessUnitID is used when the credential carries none. The
// returned function unbinds and ends any running session.
func (t *Tracker) Bind(ctx context.Context, source StateSource, businessUnitID string) func() {
	apply := func(s auth.AuthState) {
		id, ok := identityOf(s, businessUnitID)
		if !ok {
			t.End(ctx)
			return
		}

		t.lock.Lock()
		running := t.phase == Starting || t.phase == Active || t.phase == Idle
		changed := running && t.identity != id
		t.lock.Unlock()
		if changed {
			t.End(ctx)
		}
		t.Start(ctx, id)
	}

	unsubscribe := source.Subscribe(apply)
	apply(source.Snapshot())

	return func() {
		unsubscribe()
		t.End(ctx)
	}
}

func identityOf(s auth.AuthState, businessUnitID string) (Identity, bool) {
	if !s.IsLoggedIn || s.User == nil {
		return Identity{}, false
	}
	id := Identity{
		UserID:         s.User.User(),
		CompanyID:      s.User.CompanyID,
		BusinessUnitID: s.User.BusinessUnitID,
	}
	if id.BusinessUnitID == "" {
		id.BusinessUnitID = businessUnitID
	}
	if id.UserID == "" || id.CompanyID == "" {
		return Identity{}, false
	}
	return id, true
}
