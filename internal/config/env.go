package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every override variable name.
const EnvPrefix = "PULSE_ANALYTICS_"

// envOverrides lists the variables that may override file values.
// Pointers stay nil when the variable is unset.
type envOverrides struct {
	Host                *string  `env:"HOST"`
	Interval            *float64 `env:"INTERVAL"`
	Debug               *bool    `env:"DEBUG"`
	BasicAuthToken      *string  `env:"BASIC_AUTH_TOKEN"`
	BearerAuthToken     *string  `env:"BEARER_AUTH_TOKEN"`
	IncludeTeamMetadata *bool    `env:"INCLUDE_TEAM_METADATA"`
}

// ApplyEnv overlays PULSE_ANALYTICS_* variables from the process
// environment onto v.
func ApplyEnv(v Values) error {
	return ApplyEnvFrom(v, nil)
}

// ApplyEnvFrom overlays override variables from environment onto v.
// A nil environment reads the process environment.
func ApplyEnvFrom(v Values, environment map[string]string) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{
		Prefix:      EnvPrefix,
		Environment: environment,
	}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.Host != nil {
		v.Set(KeyHost, *o.Host)
	}
	if o.Interval != nil {
		v.Set(KeyInterval, *o.Interval)
	}
	if o.Debug != nil {
		v.Set(KeyDebug, *o.Debug)
	}
	if o.BasicAuthToken != nil {
		v.Set(KeyBasicAuthToken, *o.BasicAuthToken)
	}
	if o.BearerAuthToken != nil {
		v.Set(KeyBearerAuthToken, *o.BearerAuthToken)
	}
	if o.IncludeTeamMetadata != nil {
		v.Set(KeyIncludeTeamMetadata, *o.IncludeTeamMetadata)
	}
	return nil
}
