// Package bootstrap loads a startup task list for supervisord from a JSON
// file, so an operator can pre-populate a supervisor without a separate
// submission client.
package bootstrap

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/taskctl/supervisor/internal/domain"
	"github.com/taskctl/supervisor/internal/ptr"
)

// taskFile is the on-disk JSON shape for one bootstrap entry. It exists
// because domain.TaskSpec.Kind is an interface and cannot round-trip through
// encoding/json on its own; toSpec narrows it back to the one Kind this
// supervisor currently supports.
type taskFile struct {
	Slot      string            `json:"slot"`
	Command   string            `json:"command"`
	Args      []string          `json:"args"`
	Env       map[string]string `json:"env"`
	Cwd       string            `json:"cwd"`
	TimeoutMS int64             `json:"timeout_ms"`
	Restart   struct {
		Mode       string `json:"mode"`
		IntervalMS int64  `json:"interval_ms"`
	} `json:"restart"`
	Backoff struct {
		Jitter      string  `json:"jitter"`
		FirstMS     int64   `json:"first_ms"`
		MaxMS       int64   `json:"max_ms"`
		Factor      float64 `json:"factor"`
		MaxAttempts *int    `json:"max_attempts"`
	} `json:"backoff"`
	Admission string            `json:"admission"`
	Labels    map[string]string `json:"labels"`

	// FailOnNonZero mirrors Subprocess.FailOnNonZero; nil in the JSON
	// (the Go zero value for *bool) means "use the spec default of true".
	FailOnNonZero *bool `json:"fail_on_non_zero"`
}

func (t taskFile) toSpec() domain.TaskSpec {
	var env []domain.EnvVar
	for k, v := range t.Env {
		env = append(env, domain.EnvVar{Key: k, Value: v})
	}

	failOnNonZero := t.FailOnNonZero
	if failOnNonZero == nil {
		failOnNonZero = ptr.To(true)
	}

	return domain.TaskSpec{
		Slot: t.Slot,
		Kind: domain.Subprocess{
			Command:       t.Command,
			Args:          t.Args,
			Env:           env,
			Cwd:           t.Cwd,
			FailOnNonZero: failOnNonZero,
		},
		TimeoutMS: t.TimeoutMS,
		Restart: domain.RestartPolicy{
			Mode:       domain.RestartMode(t.Restart.Mode),
			IntervalMS: t.Restart.IntervalMS,
		},
		Backoff: domain.BackoffPolicy{
			Jitter:      domain.Jitter(t.Backoff.Jitter),
			FirstMS:     t.Backoff.FirstMS,
			MaxMS:       t.Backoff.MaxMS,
			Factor:      t.Backoff.Factor,
			MaxAttempts: t.Backoff.MaxAttempts,
		},
		Admission: domain.Admission(t.Admission),
		Labels:    t.Labels,
	}
}

// LoadTasksFile parses a JSON array of task definitions from path into
// validated TaskSpecs. Each entry is validated independently so one bad
// definition doesn't block the rest of the file from loading.
func LoadTasksFile(path string) ([]domain.TaskSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: read tasks file: %w", err)
	}

	var raw []taskFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("bootstrap: parse tasks file: %w", err)
	}

	specs := make([]domain.TaskSpec, 0, len(raw))
	var errs []error
	for i, t := range raw {
		spec := t.toSpec()
		if err := spec.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("entry %d (slot %q): %w", i, t.Slot, err))
			continue
		}
		specs = append(specs, spec)
	}

	if len(errs) > 0 {
		return specs, fmt.Errorf("bootstrap: %d invalid task definitions: %w", len(errs), errs[0])
	}
	return specs, nil
}
