package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `
name: example
description: "Example scenario"
user: user:default/test-user
config:
  interval: 10
  includeTeamMetadata: true
directory:
  user:default/test-user:
    kind: Group
responses: [500]
steps:
  - capture: { action: click, subject: button, value: 1.5, routeRef: root }
  - advance: 10m
  - session: signed_in
  - flush: true
  - await: 1
assertions:
  - type: request_count
    count: 1
  - type: batch_sizes
    sizes: [1]
`

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(validScenario))
	require.NoError(t, err)

	assert.Equal(t, "example", s.Name)
	assert.Equal(t, "user:default/test-user", s.User)
	assert.Equal(t, 10, s.Config["interval"])
	assert.Equal(t, []int{500}, s.Responses)
	require.Len(t, s.Steps, 5)

	ev := s.Steps[0].Capture.Event()
	assert.Equal(t, "click", ev.Action)
	assert.Equal(t, "root", ev.Context.RouteRef)
	require.NotNil(t, ev.Value)
	assert.Equal(t, 1.5, *ev.Value)

	assert.Equal(t, "10m", s.Steps[1].Advance)
	assert.Equal(t, StepSignedIn, s.Steps[2].Session)
	assert.True(t, s.Steps[3].Flush)
	assert.Equal(t, 1, s.Steps[4].Await)
}

func TestLoadScenario_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "example", s.Name)
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: d\nstepz: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{flush: true}]\nassertions: [{type: request_count}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nsteps: [{flush: true}]\nassertions: [{type: request_count}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: x\ndescription: d\nassertions: [{type: request_count}]\n",
			wantErr: "steps list is required",
		},
		{
			name:    "no assertions",
			yaml:    "name: x\ndescription: d\nsteps: [{flush: true}]\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "empty step",
			yaml:    "name: x\ndescription: d\nsteps: [{}]\nassertions: [{type: request_count}]\n",
			wantErr: "exactly one of",
		},
		{
			name:    "two actions in one step",
			yaml:    "name: x\ndescription: d\nsteps: [{flush: true, advance: 1m}]\nassertions: [{type: request_count}]\n",
			wantErr: "exactly one of",
		},
		{
			name:    "capture without action",
			yaml:    "name: x\ndescription: d\nsteps: [{capture: {subject: s}}]\nassertions: [{type: request_count}]\n",
			wantErr: "capture action is required",
		},
		{
			name:    "bad duration",
			yaml:    "name: x\ndescription: d\nsteps: [{advance: soon}]\nassertions: [{type: request_count}]\n",
			wantErr: "advance",
		},
		{
			name:    "negative duration",
			yaml:    "name: x\ndescription: d\nsteps: [{advance: -1m}]\nassertions: [{type: request_count}]\n",
			wantErr: "advance must be positive",
		},
		{
			name:    "unknown session transition",
			yaml:    "name: x\ndescription: d\nsteps: [{session: expired}]\nassertions: [{type: request_count}]\n",
			wantErr: "unknown session transition",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: d\nsteps: [{flush: true}]\nassertions: [{type: trace_order}]\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "batch sizes without sizes",
			yaml:    "name: x\ndescription: d\nsteps: [{flush: true}]\nassertions: [{type: batch_sizes}]\n",
			wantErr: "sizes list is required",
		},
		{
			name:    "session ids without ids",
			yaml:    "name: x\ndescription: d\nsteps: [{flush: true}]\nassertions: [{type: session_ids}]\n",
			wantErr: "ids list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
