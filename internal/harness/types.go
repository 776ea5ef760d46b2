package harness

import "encoding/json"

// Request is one batch received by the collector during a run.
type Request struct {
	Seq           int               `json:"seq"`
	Authorization string            `json:"authorization,omitempty"`
	Records       []json.RawMessage `json:"records"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Requests holds the collector traffic in arrival order.
	Requests []Request `json:"requests"`

	// Reports holds the error code of every coded sink post, in order.
	Reports []string `json:"reports"`

	// Diagnostics counts uncoded, debug-gated sink posts.
	Diagnostics int `json:"diagnostics"`

	// Errors contains assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Requests: []Request{},
		Reports:  []string{},
		Errors:   []string{},
	}
}

// AddError records an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// RecordCount returns the total number of records across all requests.
func (r *Result) RecordCount() int {
	n := 0
	for _, req := range r.Requests {
		n += len(req.Records)
	}
	return n
}
