package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec() TaskSpec {
	return TaskSpec{
		Slot:      "build",
		Kind:      Subprocess{Command: "make"},
		TimeoutMS: 1000,
		Restart:   RestartPolicy{Mode: RestartNever},
		Backoff: BackoffPolicy{
			Jitter:  JitterFull,
			FirstMS: 100,
			MaxMS:   1000,
			Factor:  2.0,
		},
		Admission: AdmissionQueue,
	}
}

func TestTaskSpecValidate_OK(t *testing.T) {
	require.NoError(t, validSpec().Validate())
}

func TestTaskSpecValidate_EmptySlot(t *testing.T) {
	s := validSpec()
	s.Slot = ""
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptySlot))
}

func TestTaskSpecValidate_EmptyCommand(t *testing.T) {
	s := validSpec()
	s.Kind = Subprocess{Command: ""}
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyCommand))
}

func TestTaskSpecValidate_MissingKind(t *testing.T) {
	s := validSpec()
	s.Kind = nil
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyCommand))
}

func TestTaskSpecValidate_NonPositiveTimeout(t *testing.T) {
	s := validSpec()
	s.TimeoutMS = 0
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTimeout))
}

func TestTaskSpecValidate_BackoffFactorBelowOne(t *testing.T) {
	s := validSpec()
	s.Backoff.Factor = 0.5
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBackoff))
}

func TestTaskSpecValidate_BackoffMaxBelowFirst(t *testing.T) {
	s := validSpec()
	s.Backoff.FirstMS = 500
	s.Backoff.MaxMS = 100
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBackoff))
}

func TestTaskSpecValidate_UnknownJitter(t *testing.T) {
	s := validSpec()
	s.Backoff.Jitter = "chaotic"
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBackoff))
}

func TestTaskSpecValidate_RestartAlwaysNegativeInterval(t *testing.T) {
	s := validSpec()
	s.Restart = RestartPolicy{Mode: RestartAlways, IntervalMS: -1}
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRestart))
}

func TestTaskSpecValidate_UnknownAdmission(t *testing.T) {
	s := validSpec()
	s.Admission = "overwrite"
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidAdmission))
}

func TestSubprocessFailsOnNonZero_DefaultsTrue(t *testing.T) {
	s := Subprocess{Command: "echo"}
	assert.True(t, s.FailsOnNonZero())
}

func TestSubprocessFailsOnNonZero_Explicit(t *testing.T) {
	f := false
	s := Subprocess{Command: "echo", FailOnNonZero: &f}
	assert.False(t, s.FailsOnNonZero())
}
