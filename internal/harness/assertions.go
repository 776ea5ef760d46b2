package harness

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the traffic summary to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Requests []Request
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nRequests:\n")
	for _, req := range e.Requests {
		fmt.Fprintf(&buf, "  [%d] %d records", req.Seq, len(req.Records))
		if req.Authorization != "" {
			fmt.Fprintf(&buf, " (%s)", authScheme(req.Authorization))
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// authScheme hides credentials in failure output.
func authScheme(header string) string {
	scheme, _, _ := strings.Cut(header, " ")
	return scheme + " ***"
}

// wireRecord is the subset of a delivered record the assertions inspect.
type wireRecord struct {
	SessionID    string          `json:"sessionId"`
	TeamMetadata json.RawMessage `json:"teamMetadata"`
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. An empty slice means all assertions held.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertRequestCount:
		return assertRequestCount(result, a)
	case AssertBatchSizes:
		return assertBatchSizes(result, a)
	case AssertReportCount:
		return assertReportCount(result, a)
	case AssertAuthorization:
		return assertAuthorization(result, a)
	case AssertSessionIDs:
		return assertSessionIDs(result, a)
	case AssertTeamMetadata:
		return assertTeamMetadata(result, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertRequestCount(result *Result, a Assertion) error {
	if len(result.Requests) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRequestCount,
		Expected: fmt.Sprintf("%d requests", a.Count),
		Actual:   fmt.Sprintf("%d requests", len(result.Requests)),
		Requests: result.Requests,
	}
}

func assertBatchSizes(result *Result, a Assertion) error {
	sizes := make([]int, len(result.Requests))
	for i, req := range result.Requests {
		sizes[i] = len(req.Records)
	}
	if slices.Equal(sizes, a.Sizes) {
		return nil
	}
	return &AssertionError{
		Type:     AssertBatchSizes,
		Expected: fmt.Sprintf("batch sizes %v", a.Sizes),
		Actual:   fmt.Sprintf("batch sizes %v", sizes),
		Requests: result.Requests,
	}
}

func assertReportCount(result *Result, a Assertion) error {
	if len(result.Reports) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertReportCount,
		Expected: fmt.Sprintf("%d reports", a.Count),
		Actual:   fmt.Sprintf("%d reports %v", len(result.Reports), result.Reports),
		Requests: result.Requests,
	}
}

func assertAuthorization(result *Result, a Assertion) error {
	for _, req := range result.Requests {
		if req.Authorization != a.Value {
			return &AssertionError{
				Type:     AssertAuthorization,
				Expected: fmt.Sprintf("Authorization %q on every request", a.Value),
				Actual:   fmt.Sprintf("request %d has %q", req.Seq, req.Authorization),
				Requests: result.Requests,
			}
		}
	}
	return nil
}

func assertSessionIDs(result *Result, a Assertion) error {
	records, err := decodeRecords(result)
	if err != nil {
		return err
	}
	var seen []string
	for _, r := range records {
		if !slices.Contains(seen, r.SessionID) {
			seen = append(seen, r.SessionID)
		}
	}
	if slices.Equal(seen, a.IDs) {
		return nil
	}
	return &AssertionError{
		Type:     AssertSessionIDs,
		Expected: fmt.Sprintf("session ids %v", a.IDs),
		Actual:   fmt.Sprintf("session ids %v", seen),
		Requests: result.Requests,
	}
}

func assertTeamMetadata(result *Result, a Assertion) error {
	records, err := decodeRecords(result)
	if err != nil {
		return err
	}
	for i, r := range records {
		has := len(r.TeamMetadata) > 0
		if has != a.Present {
			return &AssertionError{
				Type:     AssertTeamMetadata,
				Expected: fmt.Sprintf("team metadata present=%t on every record", a.Present),
				Actual:   fmt.Sprintf("record %d has present=%t", i+1, has),
				Requests: result.Requests,
			}
		}
	}
	return nil
}

func decodeRecords(result *Result) ([]wireRecord, error) {
	var out []wireRecord
	for _, req := range result.Requests {
		for _, raw := range req.Records {
			var r wireRecord
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, fmt.Errorf("request %d: decode record: %w", req.Seq, err)
			}
			out = append(out, r)
		}
	}
	return out, nil
}
