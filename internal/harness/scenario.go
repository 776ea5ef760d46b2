package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pulse/internal/event"
	"github.com/roach88/pulse/internal/session"
)

// Scenario defines an end-to-end pipeline scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// User is the signed-in user reference. Empty means the identity
	// provider fails.
	User string `yaml:"user"`

	// Config holds app.analytics.generic keys. host is always overridden.
	Config map[string]any `yaml:"config,omitempty"`

	// Directory maps user references to team entities.
	Directory map[string]any `yaml:"directory,omitempty"`

	// Responses are the collector's statuses for the first requests.
	Responses []int `yaml:"responses,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the collected traffic.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scripted action. Exactly one field is set.
type Step struct {
	Capture *CaptureStep `yaml:"capture,omitempty"`
	Advance string       `yaml:"advance,omitempty"`
	Session string       `yaml:"session,omitempty"`
	Flush   bool         `yaml:"flush,omitempty"`
	Await   int          `yaml:"await,omitempty"`
}

// CaptureStep describes the event submitted by a capture step.
type CaptureStep struct {
	Action     string         `yaml:"action"`
	Subject    string         `yaml:"subject"`
	Value      *float64       `yaml:"value,omitempty"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
	PluginID   string         `yaml:"pluginId,omitempty"`
	RouteRef   string         `yaml:"routeRef,omitempty"`
	Extension  string         `yaml:"extension,omitempty"`
}

// Event converts the step into a pipeline event.
func (c *CaptureStep) Event() event.Event {
	return event.Event{
		Action:     c.Action,
		Subject:    c.Subject,
		Value:      c.Value,
		Attributes: c.Attributes,
		Context: event.Context{
			PluginID:  c.PluginID,
			RouteRef:  c.RouteRef,
			Extension: c.Extension,
		},
	}
}

// Assertion validates the result of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Count is used by request_count and report_count.
	Count int `yaml:"count,omitempty"`

	// Sizes is used by batch_sizes.
	Sizes []int `yaml:"sizes,omitempty"`

	// Value is used by authorization. Empty means no header.
	Value string `yaml:"value,omitempty"`

	// IDs is used by session_ids.
	IDs []string `yaml:"ids,omitempty"`

	// Present is used by team_metadata.
	Present bool `yaml:"present,omitempty"`
}

// Assertion type constants.
const (
	AssertRequestCount  = "request_count"
	AssertBatchSizes    = "batch_sizes"
	AssertReportCount   = "report_count"
	AssertAuthorization = "authorization"
	AssertSessionIDs    = "session_ids"
	AssertTeamMetadata  = "team_metadata"
)

// Session step values.
const (
	StepSignedIn  = "signed_in"
	StepSignedOut = "signed_out"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s Step) error {
	set := 0
	if s.Capture != nil {
		set++
		if s.Capture.Action == "" {
			return fmt.Errorf("steps[%d]: capture action is required", index)
		}
	}
	if s.Advance != "" {
		set++
		d, err := time.ParseDuration(s.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d]: advance: %w", index, err)
		}
		if d <= 0 {
			return fmt.Errorf("steps[%d]: advance must be positive", index)
		}
	}
	if s.Session != "" {
		set++
		if _, err := sessionState(s.Session); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	}
	if s.Flush {
		set++
	}
	if s.Await != 0 {
		set++
		if s.Await < 0 {
			return fmt.Errorf("steps[%d]: await must be positive", index)
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of capture, advance, session, flush, await is required", index)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRequestCount, AssertReportCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertBatchSizes:
		if len(a.Sizes) == 0 {
			return fmt.Errorf("assertions[%d]: sizes list is required for batch_sizes", index)
		}
	case AssertSessionIDs:
		if len(a.IDs) == 0 {
			return fmt.Errorf("assertions[%d]: ids list is required for session_ids", index)
		}
	case AssertAuthorization, AssertTeamMetadata:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func sessionState(s string) (session.State, error) {
	switch s {
	case StepSignedIn:
		return session.SignedIn, nil
	case StepSignedOut:
		return session.SignedOut, nil
	}
	return "", fmt.Errorf("unknown session transition %q", s)
}
