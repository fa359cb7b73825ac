package consumer

import (
	"context"
	"math/rand"
	"os"
	"strconv"
	"time"
)

// Environment keys configuring chaos when no explicit values are injected.
const (
	EnvChaosNackPercentage    = "REDRIVE_CHAOS_PERCENTAGE_SIMULATE_NACK"
	EnvChaosDelaySeconds      = "REDRIVE_CHAOS_DELAY_BEFORE_HANDLER_SECONDS"
	EnvChaosFailurePercentage = "REDRIVE_CHAOS_PERCENTAGE_SIMULATE_FAILURES"
)

// Chaos perturbs consumption to validate resilience. Production consumers use
// NopChaos; test and staging builds inject ProbabilisticChaos.
type Chaos interface {
	// ShouldNack reports whether the delivery must be rejected before parsing
	ShouldNack() bool

	// Delay suspends the dispatch before the handler runs
	Delay(ctx context.Context)

	// ShouldFail reports whether a handler failure must be synthesized
	ShouldFail() bool
}

// NopChaos never perturbs anything
type NopChaos struct{}

func (NopChaos) ShouldNack() bool          { return false }
func (NopChaos) Delay(ctx context.Context) {}
func (NopChaos) ShouldFail() bool          { return false }

// ProbabilisticChaos injects faults with independently configured
// probabilities. A probability of 1.0 always triggers, 0.0 never does.
type ProbabilisticChaos struct {
	nackProbability    float64
	delay              time.Duration
	failureProbability float64
	randFloat          func() float64
}

// ChaosOption configures ProbabilisticChaos
type ChaosOption func(*ProbabilisticChaos)

// WithNackProbability sets the probability of rejecting a delivery unseen
func WithNackProbability(p float64) ChaosOption {
	return func(c *ProbabilisticChaos) {
		c.nackProbability = p
	}
}

// WithHandlerDelay sets the delay injected before every handler execution
func WithHandlerDelay(d time.Duration) ChaosOption {
	return func(c *ProbabilisticChaos) {
		c.delay = d
	}
}

// WithFailureProbability sets the probability of synthesizing a handler failure
func WithFailureProbability(p float64) ChaosOption {
	return func(c *ProbabilisticChaos) {
		c.failureProbability = p
	}
}

// withRandFloat injects the randomness source, for deterministic tests
func withRandFloat(f func() float64) ChaosOption {
	return func(c *ProbabilisticChaos) {
		c.randFloat = f
	}
}

// NewProbabilisticChaos creates a chaos injector. Values not set explicitly
// fall back to the environment; unset knobs stay disabled.
func NewProbabilisticChaos(options ...ChaosOption) *ProbabilisticChaos {
	c := &ProbabilisticChaos{
		nackProbability:    envFloat(EnvChaosNackPercentage, 0),
		delay:              time.Duration(envFloat(EnvChaosDelaySeconds, 0) * float64(time.Second)),
		failureProbability: envFloat(EnvChaosFailurePercentage, 0),
		randFloat:          rand.Float64,
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// ShouldNack implements Chaos
func (c *ProbabilisticChaos) ShouldNack() bool {
	return c.nackProbability > 0 && c.randFloat() < c.nackProbability
}

// Delay implements Chaos
func (c *ProbabilisticChaos) Delay(ctx context.Context) {
	if c.delay <= 0 {
		return
	}
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
	}
}

// ShouldFail implements Chaos
func (c *ProbabilisticChaos) ShouldFail() bool {
	return c.failureProbability > 0 && c.randFloat() < c.failureProbability
}

func envFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
