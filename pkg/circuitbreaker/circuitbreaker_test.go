package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             20 * time.Millisecond,
		MaxRequestsHalfOpen: 3,
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := New(testConfig())
	failing := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func() error { return failing })
		assert.ErrorIs(t, err, failing)
	}

	assert.Equal(t, StateOpen, cb.GetState())

	err := cb.Execute(context.Background(), func() error { return nil })
	assert.ErrorContains(t, err, "circuit breaker is open")
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := New(testConfig())

	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), func() error { return errors.New("boom") })
	}
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(25 * time.Millisecond)

	// Two successes in half-open close the circuit.
	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New(testConfig())

	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), func() error { return errors.New("boom") })
	}
	time.Sleep(25 * time.Millisecond)

	cb.Execute(context.Background(), func() error { return errors.New("still failing") })

	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_ResetClosesCircuit(t *testing.T) {
	cb := New(testConfig())

	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), func() error { return errors.New("boom") })
	}
	require.Equal(t, StateOpen, cb.GetState())

	cb.Reset()

	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
}
