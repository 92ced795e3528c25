package engine

import (
	"time"

	"github.com/joelsfoster/gizmo/internal/signal"
)

// Outcome summarizes how a signal was handled.
type Outcome string

const (
	OutcomeExecuted   Outcome = "executed"
	OutcomeDegraded   Outcome = "degraded"
	OutcomeUnfilled   Outcome = "unfilled"
	OutcomeNoop       Outcome = "noop"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeRejected   Outcome = "rejected"
	OutcomeFailed     Outcome = "failed"
)

type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Step is one exchange interaction (or decision) in a pipeline.
type Step struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
	Error  string     `json:"error,omitempty"`
	Err    error      `json:"-"`
}

// Result is what Execute reports instead of returning an error.
type Result struct {
	Action    string           `json:"action"`
	OrderType signal.OrderType `json:"orderType"`
	Outcome   Outcome          `json:"outcome"`
	Error     string           `json:"error,omitempty"`
	Err       error            `json:"-"`
	Steps     []Step           `json:"steps"`
	Snapshot  *Snapshot        `json:"snapshot,omitempty"`
	Direction signal.Direction `json:"direction"`
	StartedAt time.Time        `json:"startedAt"`
	Duration  time.Duration    `json:"duration"`
}

func (r *Result) ok(name, detail string) {
	r.Steps = append(r.Steps, Step{Name: name, Status: StepOK, Detail: detail})
}

func (r *Result) skip(name, detail string) {
	r.Steps = append(r.Steps, Step{Name: name, Status: StepSkipped, Detail: detail})
}

func (r *Result) fail(name string, err error) {
	r.Steps = append(r.Steps, Step{Name: name, Status: StepFailed, Error: err.Error(), Err: err})
}

// end fixes the outcome. The first call wins.
func (r *Result) end(o Outcome, err error) {
	if r.Outcome != "" {
		return
	}
	r.Outcome = o
	if err != nil {
		r.Err = err
		r.Error = err.Error()
	}
}

func (r *Result) observe(s Snapshot) {
	snap := s
	r.Snapshot = &snap
}

// HasFailures reports whether any step failed.
func (r *Result) HasFailures() bool {
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return true
		}
	}
	return false
}

// Step returns the first step with the given name.
func (r *Result) Step(name string) (Step, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}
