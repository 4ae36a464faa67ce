package policy

import (
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/config"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/utils"
)

// circuitBreakerPolicy implements CircuitBreakerPolicy
type circuitBreakerPolicy struct {
	enabled bool
	// failureThreshold is the number of consecutive failures before opening the circuit
	failureThreshold int
	// successThreshold is the number of successes needed in half-open state to close
	successThreshold int
	// timeout is how long the circuit stays open before transitioning to half-open
	timeout time.Duration
	now     func() time.Time

	mu       sync.Mutex
	circuits map[string]*circuitState
}

// circuitState tracks one circuit, guarded by the policy mutex
type circuitState struct {
	state           CircuitState
	failureCount    int
	successCount    int
	lastStateChange time.Time
}

// NewCircuitBreakerPolicyFromConfig creates a circuit breaker from config
func NewCircuitBreakerPolicyFromConfig(cfg *config.Breaker) CircuitBreakerPolicy {
	success := cfg.SuccessThreshold
	if success <= 0 {
		success = 1
	}
	return NewCircuitBreakerPolicy(cfg.FailureThreshold > 0, cfg.FailureThreshold, success,
		utils.Millis(cfg.OpenMs))
}

// NewCircuitBreakerPolicy creates a new circuit breaker policy
func NewCircuitBreakerPolicy(enabled bool, failureThreshold, successThreshold int, timeout time.Duration) CircuitBreakerPolicy {
	return &circuitBreakerPolicy{
		enabled:          enabled,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		now:              time.Now,
		circuits:         make(map[string]*circuitState),
	}
}

func (p *circuitBreakerPolicy) Enabled() bool {
	return p.enabled
}

func (p *circuitBreakerPolicy) Name() string {
	return "circuit_breaker"
}

// circuit returns the state for key, creating a closed circuit on first use.
// Callers hold p.mu.
func (p *circuitBreakerPolicy) circuit(key string) *circuitState {
	c, ok := p.circuits[key]
	if !ok {
		c = &circuitState{state: CircuitStateClosed, lastStateChange: p.now()}
		p.circuits[key] = c
	}
	return c
}

// refresh moves an open circuit to half-open once the timeout elapsed
func (p *circuitBreakerPolicy) refresh(c *circuitState) {
	if c.state == CircuitStateOpen && p.now().Sub(c.lastStateChange) >= p.timeout {
		c.state = CircuitStateHalfOpen
		c.successCount = 0
		c.lastStateChange = p.now()
	}
}

func (p *circuitBreakerPolicy) AllowRequest(key string) bool {
	if !p.enabled {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.circuit(key)
	p.refresh(c)
	return c.state != CircuitStateOpen
}

func (p *circuitBreakerPolicy) RecordSuccess(key string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.circuits[key]
	if !ok {
		return
	}
	switch c.state {
	case CircuitStateHalfOpen:
		c.successCount++
		if c.successCount >= p.successThreshold {
			c.state = CircuitStateClosed
			c.failureCount = 0
			c.lastStateChange = p.now()
		}
	case CircuitStateClosed:
		c.failureCount = 0
	}
}

func (p *circuitBreakerPolicy) RecordFailure(key string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.circuit(key)
	c.failureCount++
	switch c.state {
	case CircuitStateHalfOpen:
		// any failure while probing reopens the circuit
		c.state = CircuitStateOpen
		c.successCount = 0
		c.lastStateChange = p.now()
	case CircuitStateClosed:
		if c.failureCount >= p.failureThreshold {
			c.state = CircuitStateOpen
			c.lastStateChange = p.now()
		}
	}
}

func (p *circuitBreakerPolicy) GetState(key string) CircuitState {
	if !p.enabled {
		return CircuitStateClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.circuits[key]
	if !ok {
		return CircuitStateClosed
	}
	p.refresh(c)
	return c.state
}
