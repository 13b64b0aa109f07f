package broker

import (
	"sync"

	logger "github.com/sirupsen/logrus"
)

// CircuitBreaker halts broker traffic after consecutive unavailability
// failures so a flapping gateway does not burn claims and rate limits.
// Thread-safe for concurrent use by the executor and reconciler loops.
type CircuitBreaker struct {
	mu        sync.Mutex
	name      string
	failures  int
	threshold int
	tripped   bool
}

func NewCircuitBreaker(name string, threshold int) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &CircuitBreaker{name: name, threshold: threshold}
}

// Tripped reports whether the breaker is open. Once open it stays open;
// recovery requires operator intervention, matching the halt-on-persistent-
// failure policy of the executor.
func (cb *CircuitBreaker) Tripped() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.tripped
}

// RecordSuccess resets the consecutive failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.failures > 0 {
		logger.Infof("Gateway connection restored for %s, failure count reset", cb.name)
	}
	cb.failures = 0
}

// RecordFailure counts a gateway unavailability. Logical rejections are not
// failures for the breaker's purposes and must not be recorded.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	logger.Warnf("Gateway failure for %s (%d/%d)", cb.name, cb.failures, cb.threshold)
	if cb.failures >= cb.threshold && !cb.tripped {
		cb.tripped = true
		logger.Errorf("Circuit breaker tripped for %s, halting broker traffic", cb.name)
	}
}
