// Package progress synthesizes a plausible progress percentage for remote
// operations that only report a terminal event. The server accepts a
// download or load command and goes silent until a later poll shows the
// terminal state, so the UI's bar is driven locally: bounded random
// increments per tick, capped below 100 until completion is confirmed.
package progress

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// PendingCap is the highest value the estimator reports while the
	// operation is still unconfirmed.
	PendingCap = 95
	// CompleteValue is reported once a poll confirms the terminal state.
	CompleteValue = 100
	// defaultMaxStep bounds the random increment applied per tick, in
	// percentage points.
	defaultMaxStep = 15
)

// Estimator produces a monotonically non-decreasing progress value.
// Safe for concurrent use.
type Estimator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	value   float64
	maxStep float64
	done    bool
}

// NewEstimator creates an estimator starting at 0. A non-zero seed makes
// the tick sequence deterministic for tests; zero seeds from the clock.
func NewEstimator(seed int64) *Estimator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Estimator{
		rng:     rand.New(rand.NewSource(seed)),
		maxStep: defaultMaxStep,
	}
}

// Tick advances the estimate by a random increment in (0, maxStep], capped
// at PendingCap, and returns the new value. Once Complete has been called,
// Tick is a no-op.
func (e *Estimator) Tick() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return e.value
	}
	step := e.rng.Float64() * e.maxStep
	e.value += step
	if e.value > PendingCap {
		e.value = PendingCap
	}
	return e.value
}

// Complete snaps the estimate to CompleteValue. Further ticks do nothing.
func (e *Estimator) Complete() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.done = true
	e.value = CompleteValue
}

// Value returns the current estimate without advancing it.
func (e *Estimator) Value() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Done reports whether Complete has been observed.
func (e *Estimator) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}
