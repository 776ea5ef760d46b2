package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnvFrom_Overrides(t *testing.T) {
	v := Values{KeyHost: "http://file", KeyInterval: 30}

	err := ApplyEnvFrom(v, map[string]string{
		"PULSE_ANALYTICS_HOST":                  "http://env",
		"PULSE_ANALYTICS_INTERVAL":              "0",
		"PULSE_ANALYTICS_DEBUG":                 "true",
		"PULSE_ANALYTICS_BEARER_AUTH_TOKEN":     "tok",
		"PULSE_ANALYTICS_INCLUDE_TEAM_METADATA": "false",
		"UNRELATED":                             "x",
	})
	require.NoError(t, err)

	s, err := Read(v)
	require.NoError(t, err)
	assert.Equal(t, "http://env", s.Host)
	assert.Zero(t, s.Interval)
	assert.True(t, s.Debug)
	assert.Equal(t, "tok", s.BearerAuthToken)
	assert.False(t, s.IncludeTeamMetadata)
	assert.Empty(t, s.BasicAuthToken)
}

func TestApplyEnvFrom_UnsetLeavesFileValues(t *testing.T) {
	v := Values{KeyHost: "http://file", KeyBasicAuthToken: "basic"}

	require.NoError(t, ApplyEnvFrom(v, map[string]string{}))

	assert.Equal(t, Values{KeyHost: "http://file", KeyBasicAuthToken: "basic"}, v)
}

func TestApplyEnvFrom_BadValue(t *testing.T) {
	err := ApplyEnvFrom(Values{}, map[string]string{"PULSE_ANALYTICS_INTERVAL": "soon"})
	assert.Error(t, err)
}

func TestApplyEnv_ProcessEnvironment(t *testing.T) {
	t.Setenv("PULSE_ANALYTICS_HOST", "http://process-env")

	v := Values{}
	require.NoError(t, ApplyEnv(v))

	host, err := v.String(KeyHost)
	require.NoError(t, err)
	assert.Equal(t, "http://process-env", host)
}
