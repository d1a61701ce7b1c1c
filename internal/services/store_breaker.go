package services

import (
	"errors"
	"fmt"

	"bankledger/internal/config"

	"github.com/sony/gobreaker"
)

// StoreBreaker trips after consecutive store failures and fails fast while open
type StoreBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewStoreBreaker builds a breaker from the ledger settings.
// isSuccessful decides which errors still count as a healthy store.
func NewStoreBreaker(name string, cfg config.LedgerConfig, isSuccessful func(error) bool, onStateChange func(from, to string)) *StoreBreaker {
	trip := cfg.BreakerFailureTrip
	if trip == 0 {
		trip = 5
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
		IsSuccessful: isSuccessful,
	}
	if onStateChange != nil {
		settings.OnStateChange = func(_ string, from gobreaker.State, to gobreaker.State) {
			onStateChange(from.String(), to.String())
		}
	}

	return &StoreBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn unless the breaker is open
func (b *StoreBreaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

// State returns closed, half-open or open
func (b *StoreBreaker) State() string {
	return b.cb.State().String()
}
