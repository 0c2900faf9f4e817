package config

import (
	"strings"
	"time"
)

// EnvVars holds every setting read from the process environment.
type EnvVars struct {
	AppName           string        `env:"APP_NAME"             envDefault:"Business Console"`
	Env               string        `env:"ENV"                  envDefault:"DEV"`
	APIBaseURL        string        `env:"CONSOLE_API_URL"      envDefault:"http://localhost:4000/api"`
	AppURL            string        `env:"CONSOLE_APP_URL"      envDefault:"http://localhost:3000/"`
	StateFile         string        `env:"CONSOLE_STATE_FILE"   envDefault:"./data/console-state.json"`
	LogLevel          string        `env:"LOG_LEVEL"            envDefault:"info"`
	LocalHostSuffixes string        `env:"LOCAL_HOST_SUFFIXES"  envDefault:"localhost"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT"      envDefault:"15s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL"   envDefault:"5m"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT"         envDefault:"10m"`
	BusinessUnitID    string        `env:"BUSINESS_UNIT_ID"`
	InputHeartbeatMin time.Duration `env:"INPUT_HEARTBEAT_MIN_INTERVAL" envDefault:"0s"`
	StateRedisURL     string        `env:"CONSOLE_STATE_REDIS_URL"`
	StateNamespace    string        `env:"CONSOLE_STATE_NAMESPACE" envDefault:"default"`
	OTLPEndpoint      string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure      bool          `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
}

var _ EnvConfig = (*EnvVars)(nil)

func (e *EnvVars) GetAppName() string {
	return e.AppName
}

func (e *EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}

func (e *EnvVars) GetAPIBaseURL() string {
	return strings.TrimRight(e.APIBaseURL, "/")
}

func (e *EnvVars) GetAppURL() string {
	return e.AppURL
}

func (e *EnvVars) GetStateFile() string {
	return e.StateFile
}

func (e *EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetLocalHostSuffixes returns the top-level labels treated as local development hosts.
func (e *EnvVars) GetLocalHostSuffixes() []string {
	var suffixes []string
	for _, s := range strings.Split(e.LocalHostSuffixes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			suffixes = append(suffixes, strings.ToLower(s))
		}
	}
	return suffixes
}

func (e *EnvVars) GetRequestTimeout() time.Duration {
	return e.RequestTimeout
}

// GetStateRedisURL returns the Redis URL for client state, empty for the state file.
func (e *EnvVars) GetStateRedisURL() string {
	return e.StateRedisURL
}

func (e *EnvVars) GetStateNamespace() string {
	if e.StateNamespace == "" {
		return "default"
	}
	return e.StateNamespace
}

func (e *EnvVars) GetOTLPEndpoint() string {
	return e.OTLPEndpoint
}

func (e *EnvVars) GetOTLPInsecure() bool {
	return e.OTLPInsecure
}
