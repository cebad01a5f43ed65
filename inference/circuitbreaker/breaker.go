package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/promptenhancer/types"
	"go.uber.org/zap"
)

// State is one of the three circuit breaker states guarding calls to the
// ML inference service.
type State int

const (
	// StateClosed is normal operation: calls pass through.
	StateClosed State = iota
	// StateOpen short-circuits every call without touching the network.
	StateOpen
	// StateHalfOpen allows a limited number of trial calls to probe recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// Config configures one inference client's circuit breaker.
type Config struct {
	// Threshold is the consecutive-failure count that trips the breaker.
	Threshold int

	// Timeout bounds a single call.
	Timeout time.Duration

	// ResetTimeout is how long the breaker stays Open before trying HalfOpen.
	ResetTimeout time.Duration

	// HalfOpenMaxCalls caps trial calls allowed while HalfOpen.
	HalfOpenMaxCalls int

	// OnStateChange is an observability hook fired on every transition.
	OnStateChange func(from State, to State)
}

// DefaultConfig returns the breaker defaults the inference client uses:
// five consecutive failures trip it, sixty seconds before a half-open probe.
func DefaultConfig() *Config {
	return &Config{
		Threshold:        5,
		Timeout:          30 * time.Second,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// CircuitBreaker guards a flaky dependency, short-circuiting calls once
// failures cross a threshold instead of letting every caller pile onto a
// dependency that's already down.
type CircuitBreaker interface {
	// Call runs fn, returning ErrCircuitOpen without calling fn if the
	// breaker is open.
	Call(ctx context.Context, fn func() error) error

	// CallWithResult runs fn and returns its result.
	CallWithResult(ctx context.Context, fn func() (any, error)) (any, error)

	// State reports the current breaker state.
	State() State

	// Reset forces the breaker back to Closed.
	Reset()
}

// breaker is the CircuitBreaker used in front of the ML inference client.
type breaker struct {
	config *Config
	logger *zap.Logger

	mu                sync.RWMutex
	state             State
	failureCount      int       // consecutive failures in the current window
	lastFailureTime   time.Time // when the last failure was recorded
	halfOpenCallCount int       // trial calls made since entering HalfOpen
}

// NewCircuitBreaker builds a breaker from config, filling in defaults for
// any zero-valued field.
func NewCircuitBreaker(config *Config, logger *zap.Logger) CircuitBreaker {
	if config == nil {
		config = DefaultConfig()
	}

	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 60 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 3
	}

	return &breaker{
		config: config,
		logger: logger,
		state:  StateClosed,
	}
}

// Call implements CircuitBreaker.
func (b *breaker) Call(ctx context.Context, fn func() error) error {
	_, err := b.CallWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

// CallWithResult implements CircuitBreaker: state check, timeout-bounded
// call, then failure accounting.
func (b *breaker) CallWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := b.beforeCall(); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	resultCh := make(chan callResult, 1)
	go func() {
		result, err := fn()
		resultCh <- callResult{result: result, err: err}
	}()

	select {
	case <-callCtx.Done():
		err := fmt.Errorf("call timed out: %w", callCtx.Err())
		b.afterCall(false)
		return nil, err

	case res := <-resultCh:
		// A client-fault error (bad input, auth) doesn't mean the
		// inference service is unhealthy, so it shouldn't count toward
		// tripping the breaker.
		success := res.err == nil || isClientError(res.err)
		b.afterCall(success)

		if res.err != nil {
			return nil, res.err
		}

		return res.result, nil
	}
}

type callResult struct {
	result any
	err    error
}

// isClientError reports whether err reflects a bad request to the
// inference service (HTTP 4xx) rather than the service itself being
// unhealthy — these don't count toward tripping the breaker.
func isClientError(err error) bool {
	var e *types.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.HTTPStatus >= 400 && e.HTTPStatus < 500
}

// beforeCall checks breaker state before a call is allowed through.
func (b *breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(b.lastFailureTime) > b.config.ResetTimeout {
			b.setState(StateHalfOpen)
			b.halfOpenCallCount = 1 // this call is the first trial
			b.logger.Info("circuit breaker entering half-open state")
			return nil
		}
		return ErrCircuitOpen

	case StateHalfOpen:
		if b.halfOpenCallCount >= b.config.HalfOpenMaxCalls {
			return ErrTooManyCallsInHalfOpen
		}
		b.halfOpenCallCount++
		return nil

	default:
		return fmt.Errorf("unknown circuit breaker state: %v", b.state)
	}
}

// afterCall records the outcome of a completed call.
func (b *breaker) afterCall(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.onSuccess()
	} else {
		b.onFailure()
	}
}

// onSuccess handles a successful call.
func (b *breaker) onSuccess() {
	switch b.state {
	case StateClosed:
		b.failureCount = 0

	case StateHalfOpen:
		b.logger.Info("circuit breaker recovered",
			zap.Int("half_open_calls", b.halfOpenCallCount),
		)
		b.setState(StateClosed)
		b.failureCount = 0
		b.halfOpenCallCount = 0

	case StateOpen:
		b.logger.Warn("circuit breaker received a success while open")
	}
}

// onFailure handles a failed call.
func (b *breaker) onFailure() {
	b.failureCount++
	b.lastFailureTime = time.Now()

	switch b.state {
	case StateClosed:
		if b.failureCount >= b.config.Threshold {
			b.logger.Warn("circuit breaker tripped",
				zap.Int("failure_count", b.failureCount),
				zap.Int("threshold", b.config.Threshold),
			)
			b.setState(StateOpen)
		}

	case StateHalfOpen:
		b.logger.Warn("circuit breaker half-open probe failed, reopening",
			zap.Int("half_open_calls", b.halfOpenCallCount),
		)
		b.setState(StateOpen)
		b.halfOpenCallCount = 0

	case StateOpen:
		b.logger.Warn("circuit breaker received a failure while open")
	}
}

// setState transitions the breaker and fires OnStateChange.
func (b *breaker) setState(newState State) {
	oldState := b.state
	b.state = newState

	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(oldState, newState)
	}
}

// State implements CircuitBreaker.
func (b *breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset implements CircuitBreaker.
func (b *breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldState := b.state
	b.state = StateClosed
	b.failureCount = 0
	b.halfOpenCallCount = 0

	b.logger.Info("circuit breaker reset",
		zap.String("from_state", oldState.String()),
	)

	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(oldState, StateClosed)
	}
}

var (
	ErrCircuitOpen            = errors.New("circuit breaker is open")
	ErrTooManyCallsInHalfOpen = errors.New("too many calls while circuit breaker is half-open")
)
