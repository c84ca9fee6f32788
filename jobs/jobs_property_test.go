package jobs

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"toolhub.dev/hub"
)

// opCode is one state-machine operation the property test applies, one per
// Manager transition method the tests in jobs_test.go call directly.
type opCode int

const (
	opMarkRunning opCode = iota
	opComplete
	opFail
	opCancel
)

// TestJobStateLegalityProperty verifies §8's job-state-legality invariant:
// applying any sequence of operations to a job never leaves it in anything
// but one of the five declared statuses, and once a job reaches a terminal
// status no further operation changes it.
func TestJobStateLegalityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("terminal status is absorbing under any op sequence", prop.ForAll(
		func(ops []int) bool {
			m := New(Options{})
			defer m.Dispose()

			job := m.Submit("demo/tool", "r", "t", nil)
			sawTerminal := false
			for _, raw := range ops {
				before := m.GetStatus(job.JobID)
				if before.Terminal() {
					sawTerminal = true
				}

				switch opCode(raw % 4) {
				case opMarkRunning:
					m.MarkRunning(job.JobID)
				case opComplete:
					m.Complete(job.JobID, "result")
				case opFail:
					m.Fail(job.JobID, &toolhub.ResultError{Kind: toolhub.ErrorUpstream, Message: "x"})
				case opCancel:
					m.Cancel(job.JobID)
				}

				after := m.GetStatus(job.JobID)
				if !validStatus(after) {
					return false
				}
				if sawTerminal && after != before {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}

func validStatus(s toolhub.JobStatus) bool {
	switch s {
	case toolhub.JobStatusQueued, toolhub.JobStatusRunning, toolhub.JobStatusCompleted,
		toolhub.JobStatusFailed, toolhub.JobStatusCanceled:
		return true
	default:
		return false
	}
}
