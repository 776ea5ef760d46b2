package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pulse/internal/event"
)

// WireSnapshot captures the collector traffic of a scenario run.
// It is serialized in canonical JSON for deterministic comparison.
type WireSnapshot struct {
	ScenarioName string    `json:"scenario"`
	Requests     []Request `json:"requests"`
	Reports      []string  `json:"reports"`
}

// Marshal returns the canonical JSON form of the snapshot.
func (s *WireSnapshot) Marshal() ([]byte, error) {
	requests := s.Requests
	if requests == nil {
		requests = []Request{}
	}
	reports := s.Reports
	if reports == nil {
		reports = []string{}
	}
	return event.MarshalCanonical(WireSnapshot{
		ScenarioName: s.ScenarioName,
		Requests:     requests,
		Reports:      reports,
	})
}

// RunWithGolden executes a scenario and compares its wire traffic against
// testdata/golden/{scenario.Name}.golden. Assertion failures fail t.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		t.Fatalf("run %s: %v", scenario.Name, err)
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	AssertGolden(t, scenario.Name, result)
	return result
}

// AssertGolden compares an existing result against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	snapshot := WireSnapshot{
		ScenarioName: name,
		Requests:     result.Requests,
		Reports:      result.Reports,
	}
	data, err := snapshot.Marshal()
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
