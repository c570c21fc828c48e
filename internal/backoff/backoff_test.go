package backoff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskctl/supervisor/internal/clock"
	"github.com/taskctl/supervisor/internal/domain"
)

func policy(j domain.Jitter) domain.BackoffPolicy {
	return domain.BackoffPolicy{
		Jitter:  j,
		FirstMS: 100,
		MaxMS:   1000,
		Factor:  2.0,
	}
}

func TestNext_NoneStrategy_FollowsExactFormula(t *testing.T) {
	e := New(policy(domain.JitterNone), clock.Fixed(0))
	require.Equal(t, int64(100), e.Next(1))
	require.Equal(t, int64(200), e.Next(2))
	require.Equal(t, int64(400), e.Next(3))
	require.Equal(t, int64(800), e.Next(4))
	require.Equal(t, int64(1000), e.Next(5)) // capped at max_ms
}

func TestNext_FullJitter_BoundedByBase(t *testing.T) {
	lo := New(policy(domain.JitterFull), clock.Fixed(0))
	assert.Equal(t, int64(0), lo.Next(3)) // base=400, uniform(0,400) at f=0 -> 0

	hi := New(policy(domain.JitterFull), clock.Fixed(0.999999))
	d := hi.Next(3)
	assert.LessOrEqual(t, d, int64(400))
	assert.GreaterOrEqual(t, d, int64(0))
}

func TestNext_EqualJitter_BoundedByHalfToBase(t *testing.T) {
	lo := New(policy(domain.JitterEqual), clock.Fixed(0))
	assert.Equal(t, int64(200), lo.Next(3)) // base=400, half=200

	hi := New(policy(domain.JitterEqual), clock.Fixed(0.999999))
	d := hi.Next(3)
	assert.GreaterOrEqual(t, d, int64(200))
	assert.LessOrEqual(t, d, int64(400))
}

func TestNext_DecorrelatedJitter_BoundedByFirstAndThreeXPrev(t *testing.T) {
	e := New(policy(domain.JitterDecorrelated), clock.Fixed(0))
	d1 := e.Next(1)
	assert.Equal(t, int64(100), d1) // uniform(first_ms, first_ms*3) at f=0 -> first_ms

	d2 := e.Next(2)
	assert.GreaterOrEqual(t, d2, int64(100))
	assert.LessOrEqual(t, d2, int64(300)) // min(max_ms, last*3)
}

func TestNext_FirstMSZero_DisablesBackoff(t *testing.T) {
	p := policy(domain.JitterFull)
	p.FirstMS = 0
	e := New(p, clock.Fixed(0.5))
	assert.Equal(t, int64(0), e.Next(1))
	assert.Equal(t, int64(0), e.Next(10))
}

func TestNext_CapsAtMaxMSForLargeAttempts(t *testing.T) {
	e := New(policy(domain.JitterNone), clock.Fixed(0))
	assert.Equal(t, int64(1000), e.Next(50))
}
