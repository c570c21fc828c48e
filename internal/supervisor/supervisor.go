// Package supervisor wires the registry, slot coordinator, backoff engine,
// and runner into the public task-supervisor API.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/taskctl/supervisor/internal/clock"
	"github.com/taskctl/supervisor/internal/domain"
	"github.com/taskctl/supervisor/internal/registry"
	"github.com/taskctl/supervisor/internal/runner"
)

// Option configures a Supervisor at construction time.
type Option func(*Supervisor)

// WithClock overrides the production clock — tests pass a clockwork.FakeClock.
func WithClock(c clock.Clock) Option {
	return func(s *Supervisor) { s.clk = c }
}

// WithRandom overrides the production RNG used by the backoff engine.
func WithRandom(r clock.Random) Option {
	return func(s *Supervisor) { s.rnd = r }
}

// WithRunner overrides the default subprocess Runner (e.g. with a test fake).
func WithRunner(r runner.Runner) Option {
	return func(s *Supervisor) { s.runner = r }
}

// WithRunnerID sets the token embedded in generated TaskIds. Defaults to a
// short uuid-derived token.
func WithRunnerID(id string) Option {
	return func(s *Supervisor) { s.runnerID = id }
}

// WithDefaultMaxAttempts sets the supervisor-wide retry bound applied when a
// TaskSpec's own Backoff.MaxAttempts is unset. 0 means
// unbounded.
func WithDefaultMaxAttempts(n int) Option {
	return func(s *Supervisor) { s.defaultMaxAttempts = n }
}

// WithMaxTerminalPerSlot sets the retention bound applied per slot. 0 disables eviction.
func WithMaxTerminalPerSlot(n int) Option {
	return func(s *Supervisor) { s.maxTerminalPerSlot = n }
}

// WithLogger overrides the supervisor's structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.log = l }
}

// Supervisor is the top-level, in-process task supervisor.
type Supervisor struct {
	runnerID           string
	defaultMaxAttempts int
	maxTerminalPerSlot int

	clk    clock.Clock
	rnd    clock.Random
	runner runner.Runner
	log    *slog.Logger

	reg         *registry.Registry
	coordinator *slotCoordinator

	mu       sync.Mutex
	cancelFn map[domain.TaskID]context.CancelFunc
	done     map[domain.TaskID]chan struct{}
}

// New builds a Supervisor ready to accept Submit calls.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		runnerID:           shortRunnerID(),
		maxTerminalPerSlot: 200,
		clk:                clock.New(),
		rnd:                clock.NewSystemRandom(),
		runner:             runner.NewSubprocess(),
		log:                slog.Default(),
		coordinator:        newSlotCoordinator(),
		cancelFn:           make(map[domain.TaskID]context.CancelFunc),
		done:               make(map[domain.TaskID]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reg = registry.New(s.runnerID, s.clk, s.maxTerminalPerSlot)
	return s
}

func shortRunnerID() string {
	return "runner-" + uuid.NewString()[:8]
}

// Submit validates spec and admits it as a new Pending record, returning its
// id immediately; admission and driver start happen asynchronously and the
// caller must not assume Running on return.
func (s *Supervisor) Submit(spec domain.TaskSpec) (domain.TaskID, error) {
	if err := spec.Validate(); err != nil {
		return "", fmt.Errorf("supervisor: submit: %w", err)
	}

	rec := s.reg.Insert(spec)

	driverCtx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	s.mu.Lock()
	s.cancelFn[rec.ID()] = cancel
	s.done[rec.ID()] = doneCh
	s.mu.Unlock()

	d := &driver{
		rec:                rec,
		reg:                s.reg,
		coordinator:        s.coordinator,
		run:                s.runner,
		clk:                s.clk,
		rnd:                s.rnd,
		defaultMaxAttempts: s.defaultMaxAttempts,
		log:                s.log.With("task_id", string(rec.ID()), "slot", spec.Slot),
	}

	go func() {
		defer close(doneCh)
		defer cancel()
		d.start(driverCtx)
		s.mu.Lock()
		delete(s.cancelFn, rec.ID())
		delete(s.done, rec.ID())
		s.mu.Unlock()
	}()

	s.log.Info("task submitted", "task_id", string(rec.ID()), "slot", spec.Slot)
	return rec.ID(), nil
}

// Get returns the current snapshot for id.
func (s *Supervisor) Get(id domain.TaskID) (domain.Snapshot, error) {
	rec, ok := s.reg.Get(id)
	if !ok {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return rec.Snapshot(), nil
}

// List returns the filtered, paginated set of snapshots and the total
// filtered count.
func (s *Supervisor) List(filter registry.Filter, limit, offset int) ([]domain.Snapshot, int) {
	return s.reg.List(filter, limit, offset)
}

// Cancel fires id's cancellation token without checking its status, so a
// Failed/Timeout record waiting out a backoff ahead of a retry is cancelled
// too; once a record's cycle has ended, firing it has no effect.
// Idempotent: cancelling an already-terminal or unknown task still reports
// success, since the caller's intent ("this task must not keep running") is
// already satisfied.
func (s *Supervisor) Cancel(id domain.TaskID) error {
	rec, ok := s.reg.Get(id)
	if !ok {
		return nil
	}
	rec.Cancel(domain.ErrCanceledByUser)
	return nil
}

// Shutdown cancels every live task and waits, bounded by ctx, for all
// drivers to exit, one errgroup member per driver.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	dones := make([]chan struct{}, 0, len(s.done))
	for id, c := range s.cancelFn {
		c()
		dones = append(dones, s.done[id])
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, done := range dones {
		done := done
		g.Go(func() error {
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("supervisor: shutdown: %w", err)
	}
	return nil
}

// Now exposes the supervisor's injectable clock for test assertions needing
// created_at/updated_at bounds (e.g. S2 elapsed-time checks).
func (s *Supervisor) Now() time.Time { return s.clk.Now() }
