package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/taskctl/supervisor/internal/backoff"
	"github.com/taskctl/supervisor/internal/clock"
	"github.com/taskctl/supervisor/internal/domain"
	"github.com/taskctl/supervisor/internal/registry"
	"github.com/taskctl/supervisor/internal/runner"
)

// errAttemptTimeout is the internal cancellation cause used to distinguish a
// driver-enforced timeout from a user/replace-driven cancellation when an
// attempt's context ends.
var errAttemptTimeout = errors.New("attempt timed out")

// driver runs one task's full lifecycle: admission, attempts, backoff, and
// restart re-entry.
type driver struct {
	rec         *registry.Record
	reg         *registry.Registry
	coordinator *slotCoordinator
	run         runner.Runner
	clk         clock.Clock
	rnd         clock.Random

	defaultMaxAttempts int

	log *slog.Logger
}

// start runs the driver loop until the task reaches a terminal status or ctx
// ends. It is meant to be launched as its own goroutine per live task.
func (d *driver) start(ctx context.Context) {
	for {
		restart, ok := d.runOneCycle(ctx)
		if !ok {
			return
		}
		if !restart {
			return
		}
	}
}

// runOneCycle admits the record into its slot, runs the attempt/backoff loop
// to a terminal outcome, and reports whether the record should re-enter
// Pending for an Always restart. ok is false only when the record never got
// admitted; restart is false for every outcome that ends the driver.
func (d *driver) runOneCycle(ctx context.Context) (restart bool, ok bool) {
	spec := d.rec.Spec()
	slot := spec.Slot

	cycleCtx, cancelCycle := context.WithCancelCause(ctx)
	d.rec.SetCancelFn(func(reason error) { cancelCycle(reason) })

	admitted := d.coordinator.acquire(cycleCtx, slot, d.rec, spec.Admission)
	if !admitted {
		if spec.Admission == domain.AdmissionDropIfRunning {
			d.rec.Transition(domain.StatusCanceled, 0, domain.ErrDropped.Error(), d.clk.Now())
		} else {
			d.rec.Transition(domain.StatusCanceled, 0, cancelReason(cycleCtx), d.clk.Now())
		}
		cancelCycle(nil)
		return false, false
	}

	outcome := d.attemptLoop(cycleCtx)
	d.coordinator.release(slot)
	cancelCycle(nil)
	d.reg.EvictTerminal(slot)

	if outcome == domain.StatusSucceeded && spec.Restart.Mode == domain.RestartAlways {
		if d.waitRestartInterval(ctx, spec.Restart.IntervalMS) {
			// Shutdown fired while idle between Always cycles: the record is
			// already terminal (Succeeded), but Transition permits a
			// terminal-to-terminal move so the final state reflects that the
			// supervisor stopped managing it rather than leaving it stale.
			d.rec.Transition(domain.StatusCanceled, d.rec.Snapshot().Attempt, domain.ErrCanceledByUser.Error(), d.clk.Now())
			return false, true
		}
		d.rec.Transition(domain.StatusPending, 1, "", d.clk.Now())
		return true, true
	}

	return false, true
}

// attemptLoop runs attempts 1..N against cycleCtx until a terminal status is
// reached, returning that status.
func (d *driver) attemptLoop(cycleCtx context.Context) domain.Status {
	spec := d.rec.Spec()
	attempt := 1
	d.rec.Transition(domain.StatusRunning, attempt, "", d.clk.Now())

	eng := backoff.New(spec.Backoff, d.rnd)
	maxAttempts := d.resolveMaxAttempts(spec)

	for {
		out, timedOut := d.runAttempt(cycleCtx, spec.Kind, attempt, spec.TimeoutMS)

		switch {
		case out.Kind == runner.Ok:
			d.rec.Transition(domain.StatusSucceeded, attempt, "", d.clk.Now())
			return domain.StatusSucceeded

		case out.Kind == runner.Canceled && !timedOut:
			status, reason := d.classifyCancel(cycleCtx)
			d.rec.Transition(status, attempt, reason, d.clk.Now())
			return status

		default:
			// NonZeroExit, SpawnError, or a timed-out Canceled: all failures.
			// restart:Never stops here at the first one; OnFailure/Always are
			// subject to backoff/retry, bounded by max_attempts.
			failStatus := domain.StatusFailed
			if timedOut {
				failStatus = domain.StatusTimeout
			}
			msg := ""
			if out.Err != nil {
				msg = out.Err.Error()
			}
			d.rec.Transition(failStatus, attempt, msg, d.clk.Now())

			if spec.Restart.Mode == domain.RestartNever {
				return failStatus
			}

			if maxAttempts > 0 && attempt >= maxAttempts {
				d.rec.Transition(domain.StatusExhausted, attempt, msg, d.clk.Now())
				return domain.StatusExhausted
			}

			delay := eng.Next(attempt)
			if canceled, reason := d.waitBackoff(cycleCtx, delay); canceled {
				d.rec.Transition(domain.StatusCanceled, attempt, reason, d.clk.Now())
				return domain.StatusCanceled
			}

			attempt++
			d.rec.Transition(domain.StatusPending, attempt, "", d.clk.Now())
			d.rec.Transition(domain.StatusRunning, attempt, "", d.clk.Now())
		}
	}
}

// runAttempt races the runner invocation against the timeout timer, both
// keyed off the driver's injectable clock so tests can drive virtual time.
// timedOut reports whether the timer won the race.
func (d *driver) runAttempt(cycleCtx context.Context, kind domain.Kind, attempt int, timeoutMS int64) (out runner.Outcome, timedOut bool) {
	// attemptCtx is scoped to this attempt only: it inherits cycleCtx's
	// cancellation (user cancel / Replace displacement ends every future
	// attempt too), but a local timeout only ever cancels this one attempt,
	// leaving cycleCtx intact for the retry that follows.
	attemptCtx, cancelAttempt := context.WithCancelCause(cycleCtx)
	defer cancelAttempt(nil)

	resultCh := make(chan runner.Outcome, 1)
	go func() {
		resultCh <- d.invokeWithRecovery(attemptCtx, kind, attempt)
	}()

	timer := d.clk.NewTimer(time.Duration(timeoutMS) * time.Millisecond)
	defer timer.Stop()

	select {
	case out = <-resultCh:
		return out, false
	case <-timer.Chan():
		cancelAttempt(errAttemptTimeout)
		out = <-resultCh
		return out, true
	}
}

// invokeWithRecovery calls the runner and recovers any panic, classifying it
// as SpawnError rather than letting it cross the driver goroutine boundary.
func (d *driver) invokeWithRecovery(ctx context.Context, kind domain.Kind, attempt int) (out runner.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			stack := string(debug.Stack())
			d.log.Error("runner panic recovered", "panic", p, "stack", stack)
			out = runner.Outcome{Kind: runner.SpawnError, Err: fmt.Errorf("runner panic: %v", p)}
		}
	}()
	return d.run.Run(ctx, runner.AttemptContext{Kind: kind, Attempt: attempt})
}

// waitBackoff sleeps delayMS on the driver's clock, interruptible by
// cycleCtx (cancellation during backoff wakes the driver immediately).
func (d *driver) waitBackoff(cycleCtx context.Context, delayMS int64) (canceled bool, reason string) {
	if delayMS <= 0 {
		select {
		case <-cycleCtx.Done():
			return true, cancelReason(cycleCtx)
		default:
			return false, ""
		}
	}
	timer := d.clk.NewTimer(time.Duration(delayMS) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return false, ""
	case <-cycleCtx.Done():
		return true, cancelReason(cycleCtx)
	}
}

// waitRestartInterval sleeps interval_ms before an Always-restart re-entry.
// interval_ms=0 still yields to the scheduler via a zero-duration timer
// rather than looping immediately.
func (d *driver) waitRestartInterval(ctx context.Context, intervalMS int64) (canceled bool) {
	timer := d.clk.NewTimer(time.Duration(intervalMS) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return false
	case <-ctx.Done():
		return true
	}
}

func (d *driver) classifyCancel(cycleCtx context.Context) (domain.Status, string) {
	return domain.StatusCanceled, cancelReason(cycleCtx)
}

func (d *driver) resolveMaxAttempts(spec domain.TaskSpec) int {
	if spec.Backoff.MaxAttempts != nil {
		return *spec.Backoff.MaxAttempts
	}
	return d.defaultMaxAttempts
}

// cancelReason renders ctx's cancellation cause as the string recorded in a
// record's last_error.
func cancelReason(ctx context.Context) string {
	cause := context.Cause(ctx)
	switch {
	case cause == nil:
		return domain.ErrCanceledByUser.Error()
	case errors.Is(cause, domain.ErrReplaced):
		return domain.ErrReplaced.Error()
	case errors.Is(cause, domain.ErrDropped):
		return domain.ErrDropped.Error()
	default:
		return domain.ErrCanceledByUser.Error()
	}
}
