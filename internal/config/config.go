package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jrsteele09/go-console-session/navigation"
	"github.com/pkg/errors"
)

type Config interface {
	EnvConfig
	SessionConfig
	RouteConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetAPIBaseURL() string
	GetAppURL() string
	GetStateFile() string
	GetLogLevel() string
	GetLocalHostSuffixes() []string
	GetRequestTimeout() time.Duration
	GetStateRedisURL() string
	GetStateNamespace() string
	GetOTLPEndpoint() string
	GetOTLPInsecure() bool
}

type SessionConfig interface {
	GetHeartbeatInterval() time.Duration
	GetIdleTimeout() time.Duration
	GetBusinessUnitID() string
	GetInputHeartbeatMinInterval() time.Duration
}

type RouteConfig interface {
	GetPages() navigation.Pages
	GetLoginSurface() []string
}

type mainConfig struct {
	*EnvVars
	Session
	Routes
}

// New loads the configuration from the environment.
func New() (Config, error) {
	vars := &EnvVars{}
	if err := env.Parse(vars); err != nil {
		return nil, errors.Wrap(err, "[config.New] failed to parse environment")
	}
	return mainConfig{
		EnvVars: vars,
		Session: Session{vars: vars},
	}, nil
}
