package config

import "time"

const (
	defaultHeartbeatInterval = 5 * time.Minute
	defaultIdleTimeout       = 10 * time.Minute
)

type Session struct {
	vars *EnvVars
}

var _ SessionConfig = Session{}

func (s Session) GetHeartbeatInterval() time.Duration {
	if s.vars == nil || s.vars.HeartbeatInterval <= 0 {
		return defaultHeartbeatInterval
	}
	return s.vars.HeartbeatInterval
}

func (s Session) GetIdleTimeout() time.Duration {
	if s.vars == nil || s.vars.IdleTimeout <= 0 {
		return defaultIdleTimeout
	}
	return s.vars.IdleTimeout
}

func (s Session) GetBusinessUnitID() string {
	if s.vars == nil {
		return ""
	}
	return s.vars.BusinessUnitID
}

// GetInputHeartbeatMinInterval is the least time between input-driven
// heartbeats. Zero sends one on every input.
func (s Session) GetInputHeartbeatMinInterval() time.Duration {
	if s.vars == nil || s.vars.InputHeartbeatMin < 0 {
		return 0
	}
	return s.vars.InputHeartbeatMin
}
