package policy

import (
	"math/rand/v2"
	"time"
)

// Face names an expression in the panel expression library.
type Face uint8

const (
	FaceEmpty Face = iota
	FaceHappy
	FaceIdle
	FaceLeft
	FaceRight
	FaceVeryLeft
	FaceVeryRight
	FaceAngry
	FaceDead

	FaceCount
)

var faceNames = [FaceCount]string{
	FaceEmpty:     "empty",
	FaceHappy:     "happy",
	FaceIdle:      "idle",
	FaceLeft:      "left",
	FaceRight:     "right",
	FaceVeryLeft:  "very_left",
	FaceVeryRight: "very_right",
	FaceAngry:     "angry",
	FaceDead:      "dead",
}

func (f Face) String() string {
	if f < FaceCount {
		return faceNames[f]
	}
	return "unknown"
}

// FaceState is the idle animation state.
type FaceState uint8

const (
	StateHappy FaceState = iota
	StateIdle
	StateLookLeft
	StateLookRight

	stateCount
)

func (s FaceState) Face() Face {
	switch s {
	case StateIdle:
		return FaceIdle
	case StateLookLeft:
		return FaceLeft
	case StateLookRight:
		return FaceRight
	}
	return FaceHappy
}

func (s FaceState) String() string { return s.Face().String() }

// NextFaceState applies a uniform draw in [0,4) to cur. A direct jump
// between the two look states is replaced by Idle.
func NextFaceState(cur FaceState, draw int) FaceState {
	next := FaceState(draw % int(stateCount))
	if (cur == StateLookLeft && next == StateLookRight) || (cur == StateLookRight && next == StateLookLeft) {
		return StateIdle
	}
	return next
}

// FaceTimer holds a FaceState for a random interval and then redraws it.
// It is owned by one goroutine (the panel renderer).
type FaceTimer struct {
	state   FaceState
	expiry  time.Time
	minHold time.Duration
	maxHold time.Duration
	rng     *rand.Rand
	now     func() time.Time
}

type FaceTimerOption func(*FaceTimer)

// WithHold sets the redraw interval bounds.
func WithHold(lo, hi time.Duration) FaceTimerOption {
	return func(t *FaceTimer) {
		if lo > 0 {
			t.minHold = lo
		}
		if hi > t.minHold {
			t.maxHold = hi
		} else {
			t.maxHold = t.minHold
		}
	}
}

// WithRand injects the random source, mostly for tests.
func WithRand(r *rand.Rand) FaceTimerOption { return func(t *FaceTimer) { t.rng = r } }

// WithClock injects the clock.
func WithClock(now func() time.Time) FaceTimerOption { return func(t *FaceTimer) { t.now = now } }

func NewFaceTimer(opts ...FaceTimerOption) *FaceTimer {
	t := &FaceTimer{
		state:   StateHappy,
		minHold: 10 * time.Second,
		maxHold: 20 * time.Second,
		now:     time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	if t.rng == nil {
		seed := uint64(t.now().UnixNano())
		t.rng = rand.New(rand.NewPCG(seed, seed>>17|1))
	}
	t.expiry = t.now()
	return t
}

// State returns the current state without advancing.
func (t *FaceTimer) State() FaceState { return t.state }

// Expiry returns when the next redraw happens.
func (t *FaceTimer) Expiry() time.Time { return t.expiry }

// Tick redraws the state once the hold has expired and returns it.
func (t *FaceTimer) Tick() FaceState { return t.TickAt(t.now()) }

// TickAt is Tick against a caller supplied time.
func (t *FaceTimer) TickAt(now time.Time) FaceState {
	if !now.After(t.expiry) {
		return t.state
	}
	t.state = NextFaceState(t.state, t.rng.IntN(int(stateCount)))
	hold := t.minHold
	if span := t.maxHold - t.minHold; span > 0 {
		hold += time.Duration(t.rng.Int64N(int64(span)))
	}
	t.expiry = now.Add(hold)
	return t.state
}
