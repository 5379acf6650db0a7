// Package circuitbreaker stops calling an upstream that keeps failing and
// lets a few probe calls through once a cool-down has passed.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrOpen            = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many probe requests while half-open")
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Config struct {
	// FailureThreshold consecutive failures while closed open the breaker.
	FailureThreshold int
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenProbes is both the number of concurrent probes allowed and the
	// number of consecutive probe successes needed to close again.
	HalfOpenProbes int
	OnStateChange  func(name string, from, to State)
	Logger         *zap.Logger
	// Now is overridable for tests.
	Now func() time.Time
}

type Breaker struct {
	name string
	cfg  Config

	mu         sync.Mutex
	state      State
	generation uint64
	failures   int
	successes  int
	probes     int
	openedAt   time.Time
}

func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{name: name, cfg: cfg}
}

// Execute runs fn unless the breaker is open. A context error is not
// counted as an upstream failure.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	generation, err := b.admit()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			b.record(generation, false)
			panic(r)
		}
		b.record(generation, err == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())))
	}()

	err = fn()
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.state
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refresh()
	switch b.state {
	case StateOpen:
		return b.generation, ErrOpen
	case StateHalfOpen:
		if b.probes >= b.cfg.HalfOpenProbes {
			return b.generation, ErrTooManyRequests
		}
		b.probes++
	}
	return b.generation, nil
}

// record ignores outcomes of calls admitted before the last state change.
func (b *Breaker) record(generation uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if generation != b.generation {
		return
	}

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		if !success {
			b.transition(StateOpen)
			return
		}
		b.successes++
		if b.successes >= b.cfg.HalfOpenProbes {
			b.transition(StateClosed)
		}
	}
}

// refresh moves an expired open breaker to half-open. Callers hold mu.
func (b *Breaker) refresh() {
	if b.state == StateOpen && b.cfg.Now().Sub(b.openedAt) >= b.cfg.OpenTimeout {
		b.transition(StateHalfOpen)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.generation++
	b.failures = 0
	b.successes = 0
	b.probes = 0
	if to == StateOpen {
		b.openedAt = b.cfg.Now()
	}

	b.cfg.Logger.Info("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}
