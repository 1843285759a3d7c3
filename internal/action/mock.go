package action

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// MockPolicy decides the outcome of a mock-mode action.
type MockPolicy interface {
	Outcome() bool
	Name() string
}

// Mock policy names accepted in configuration.
const (
	PolicyRandom  = "random"
	PolicySuccess = "success"
)

// RandomSuccessRate is the share of mock calls that succeed under the
// random policy. It is biased toward failure so operators can exercise the
// control panel's retry paths.
const RandomSuccessRate = 0.3

// AlwaysSucceed is the deterministic mock policy.
type AlwaysSucceed struct{}

// Outcome always reports success.
func (AlwaysSucceed) Outcome() bool { return true }

// Name returns the policy name.
func (AlwaysSucceed) Name() string { return PolicySuccess }

// RandomPolicy succeeds with probability RandomSuccessRate. It is safe for
// concurrent use.
type RandomPolicy struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomPolicy creates a random policy. A zero seed draws a seed from
// the current time; any other seed makes the sequence reproducible.
func NewRandomPolicy(seed uint64) *RandomPolicy {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return NewRandomPolicyFromSource(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewRandomPolicyFromSource creates a random policy drawing from src.
func NewRandomPolicyFromSource(src rand.Source) *RandomPolicy {
	return &RandomPolicy{rnd: rand.New(src)}
}

// Outcome draws one outcome.
func (p *RandomPolicy) Outcome() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Float64() < RandomSuccessRate
}

// Name returns the policy name.
func (p *RandomPolicy) Name() string { return PolicyRandom }

// NewMockPolicy builds the policy named in configuration.
func NewMockPolicy(name string, seed uint64) (MockPolicy, error) {
	switch name {
	case "", PolicyRandom:
		return NewRandomPolicy(seed), nil
	case PolicySuccess:
		return AlwaysSucceed{}, nil
	default:
		return nil, fmt.Errorf("unknown mock policy %q (random, success)", name)
	}
}
