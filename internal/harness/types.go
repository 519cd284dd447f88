package harness

// StepTrace records what one step did. Traces are compared against golden
// files, so every field is deterministic for a given scenario.
type StepTrace struct {
	Step       int      `json:"step"`
	Name       string   `json:"name,omitempty"`
	Op         string   `json:"op"`
	Strategy   string   `json:"strategy,omitempty"`
	Keys       []string `json:"keys"`
	Subqueries int      `json:"subqueries"`
	PointGets  int      `json:"point_gets"`
	Error      string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every step matched its expectation.
	Pass bool `json:"pass"`

	// Trace holds one entry per executed step, in order.
	Trace []StepTrace `json:"trace"`

	// Errors contains expectation mismatch messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError adds a mismatch message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step trace.
func (r *Result) AddTrace(t StepTrace) {
	r.Trace = append(r.Trace, t)
}
