package services

import (
	"errors"
	"testing"
	"time"

	"bankledger/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store down")

func breakerConfig(trip uint32) config.LedgerConfig {
	return config.LedgerConfig{
		BreakerMaxRequests: 1,
		BreakerInterval:    time.Minute,
		BreakerOpenTimeout: 20 * time.Millisecond,
		BreakerFailureTrip: trip,
	}
}

func TestStoreBreaker_TripsAndRecovers(t *testing.T) {
	var transitions []string
	breaker := NewStoreBreaker("test-store", breakerConfig(2), func(err error) bool { return err == nil }, func(from, to string) {
		transitions = append(transitions, from+"->"+to)
	})

	assert.ErrorIs(t, breaker.Execute(func() error { return errStoreDown }), errStoreDown)
	assert.ErrorIs(t, breaker.Execute(func() error { return errStoreDown }), errStoreDown)
	assert.Equal(t, "open", breaker.State())

	called := false
	err := breaker.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, called)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, breaker.Execute(func() error { return nil }))
	assert.Equal(t, "closed", breaker.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestStoreBreaker_SuccessfulErrorsDoNotTrip(t *testing.T) {
	breaker := NewStoreBreaker("test-store", breakerConfig(1), func(err error) bool {
		return err == nil || errors.Is(err, ErrInsufficientFunds)
	}, nil)

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, breaker.Execute(func() error { return ErrInsufficientFunds }), ErrInsufficientFunds)
	}
	assert.Equal(t, "closed", breaker.State())
}

func TestStoreBreaker_DefaultTrip(t *testing.T) {
	breaker := NewStoreBreaker("test-store", breakerConfig(0), nil, nil)

	for i := 0; i < 4; i++ {
		_ = breaker.Execute(func() error { return errStoreDown })
	}
	assert.Equal(t, "closed", breaker.State())

	_ = breaker.Execute(func() error { return errStoreDown })
	assert.Equal(t, "open", breaker.State())
}
