package provider

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the current state of the circuit breaker
type CircuitBreakerState int

const (
	Closed CircuitBreakerState = iota
	Open
	HalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // Number of failures before opening
	SuccessThreshold int           `json:"success_threshold"` // Number of successes to close from half-open
	Timeout          time.Duration `json:"timeout"`           // Time to wait before trying half-open
	MaxRequests      int           `json:"max_requests"`      // Max requests allowed in half-open state
}

// CircuitBreakerStats holds statistics for the circuit breaker
type CircuitBreakerStats struct {
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	RejectedRequests   int64     `json:"rejected_requests"`
	LastFailureTime    time.Time `json:"last_failure_time"`
	LastSuccessTime    time.Time `json:"last_success_time"`
	StateChanges       int64     `json:"state_changes"`
}

// CircuitBreaker stops calling an unhealthy provider for a cool-down period
// so fallback series are served immediately instead of after a timeout.
type CircuitBreaker struct {
	name            string
	config          CircuitBreakerConfig
	logger          *logrus.Logger
	now             func() time.Time
	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    int
	successCount    int
	inFlight        int
	lastStateChange time.Time
	stats           CircuitBreakerStats
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &CircuitBreaker{
		name:            name,
		config:          config,
		logger:          logger,
		now:             time.Now,
		state:           Closed,
		lastStateChange: time.Now(),
	}
}

// Execute runs fn unless the breaker is open. The lock is not held while fn
// runs, so concurrent fetches are not serialised.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.acquire() {
		cb.logger.WithFields(logrus.Fields{
			"circuit_breaker": cb.name,
			"state":           cb.State().String(),
		}).Debug("Circuit breaker is open, rejecting request")
		return ErrCircuitOpen
	}

	start := cb.now()
	err := fn(ctx)
	cb.release(err, cb.now().Sub(start))
	return err
}

func (cb *CircuitBreaker) acquire() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.TotalRequests++
	switch cb.state {
	case Open:
		if cb.now().Sub(cb.lastStateChange) < cb.config.Timeout {
			cb.stats.RejectedRequests++
			return false
		}
		cb.setState(HalfOpen)
		cb.successCount = 0
		fallthrough
	case HalfOpen:
		if cb.inFlight >= cb.config.MaxRequests {
			cb.stats.RejectedRequests++
			return false
		}
	}
	cb.inFlight++
	return true
}

func (cb *CircuitBreaker) release(err error, duration time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.inFlight--
	if err != nil {
		cb.onFailure(err, duration)
		return
	}
	cb.onSuccess()
}

// onSuccess handles successful execution
func (cb *CircuitBreaker) onSuccess() {
	cb.stats.SuccessfulRequests++
	cb.stats.LastSuccessTime = cb.now()

	switch cb.state {
	case Closed:
		cb.failureCount = 0
	case HalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setState(Closed)
			cb.failureCount = 0
			cb.successCount = 0
		}
	}
}

// onFailure handles failed execution
func (cb *CircuitBreaker) onFailure(err error, duration time.Duration) {
	cb.stats.FailedRequests++
	cb.stats.LastFailureTime = cb.now()

	switch cb.state {
	case Closed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.setState(Open)
		}
	case HalfOpen:
		cb.setState(Open)
		cb.successCount = 0
	}

	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"state":           cb.state.String(),
		"error":           err.Error(),
		"duration_ms":     duration.Milliseconds(),
		"failure_count":   cb.failureCount,
	}).Debug("Circuit breaker: failed execution")
}

// setState changes the circuit breaker state
func (cb *CircuitBreaker) setState(newState CircuitBreakerState) {
	if cb.state == newState {
		return
	}
	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = cb.now()
	cb.stats.StateChanges++

	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"old_state":       oldState.String(),
		"new_state":       newState.String(),
		"failure_count":   cb.failureCount,
	}).Info("Circuit breaker state changed")
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns the current statistics
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(Closed)
	cb.failureCount = 0
	cb.successCount = 0
}

// Breaker guards a Fetcher with a CircuitBreaker.
type Breaker struct {
	next Fetcher
	cb   *CircuitBreaker
}

// NewBreaker wraps next.
func NewBreaker(next Fetcher, config CircuitBreakerConfig, logger *logrus.Logger) *Breaker {
	return &Breaker{
		next: next,
		cb:   NewCircuitBreaker("provider", config, logger),
	}
}

// FetchSeries forwards to the wrapped fetcher unless the circuit is open.
func (b *Breaker) FetchSeries(ctx context.Context, ticker, period, interval string) (*SeriesResponse, error) {
	var resp *SeriesResponse
	err := b.cb.Execute(ctx, func(ctx context.Context) error {
		var fetchErr error
		resp, fetchErr = b.next.FetchSeries(ctx, ticker, period, interval)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CircuitBreaker exposes the underlying breaker for health reporting.
func (b *Breaker) CircuitBreaker() *CircuitBreaker {
	return b.cb
}
