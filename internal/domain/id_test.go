package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTaskID(t *testing.T) {
	id := NewTaskID("runner-1", "build", 7)
	assert.Equal(t, TaskID("runner-1-build-7"), id)
	assert.Equal(t, "runner-1-build-7", id.String())
}
