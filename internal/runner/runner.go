// Package runner defines the pluggable task-execution capability and
// ships the default subprocess implementation.
package runner

import (
	"context"

	"github.com/taskctl/supervisor/internal/domain"
)

// OutcomeKind is the closed vocabulary a Runner reports for one attempt.
// There is no timed-out kind: the driver owns timeout enforcement and
// records a Canceled outcome caused by its own timeout timer as a Timeout
// status.
type OutcomeKind string

const (
	Ok          OutcomeKind = "ok"
	NonZeroExit OutcomeKind = "non_zero_exit"
	SpawnError  OutcomeKind = "spawn_error"
	Canceled    OutcomeKind = "canceled"
)

// Outcome is the result of one attempt.
type Outcome struct {
	Kind     OutcomeKind
	ExitCode int
	Err      error
}

// AttemptContext carries everything a Runner needs for one attempt: the
// resolved kind and which attempt number this is (for logging/diagnostics).
type AttemptContext struct {
	Kind    domain.Kind
	Attempt int
}

// Runner executes one attempt of a task. Implementations MUST honor ctx
// cancellation within a bounded grace period by terminating any child
// process and returning Canceled; the driver, not the Runner, decides
// whether that cancellation should ultimately be reported as Timedout.
type Runner interface {
	Run(ctx context.Context, ac AttemptContext) Outcome
}
