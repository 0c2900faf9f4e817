package navigation

import (
	"net/url"
	"sync"
)

// Location is the address of the current browsing context. Assign performs a
// full navigation, which may cross origins.
type Location interface {
	URL() *url.URL
	Assign(target string)
}

// Navigate force-navigates loc to path on the current origin. It is a no-op when
// loc is already on path and reports whether a navigation happened.
func Navigate(loc Location, path string) bool {
	if loc == nil || path == "" {
		return false
	}
	ref, err := url.Parse(path)
	if err != nil {
		return false
	}
	current := loc.URL()
	if current.Path == ref.Path {
		return false
	}
	loc.Assign(current.ResolveReference(ref).String())
	return true
}

// StaticLocation is an in-process Location. Assign replaces the current URL and
// appends to the history.
type StaticLocation struct {
	lock    sync.RWMutex
	current *url.URL
	history []string
}

var _ Location = (*StaticLocation)(nil)

// NewStaticLocation parses rawURL as the starting location.
func NewStaticLocation(rawURL string) (*StaticLocation, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return &StaticLocation{current: u}, nil
}

func (l *StaticLocation) URL() *url.URL {
	l.lock.RLock()
	defer l.lock.RUnlock()
	u := *l.current
	return &u
}

func (l *StaticLocation) Assign(target string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	u, err := l.current.Parse(target)
	if err != nil {
		return
	}
	l.current = u
	l.history = append(l.history, u.String())
}

// History returns every URL assigned so far, oldest first.
func (l *StaticLocation) History() []string {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return append([]string(nil), l.history...)
}
