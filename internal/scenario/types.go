package scenario

import "sync"

// Keyframe represents a value at time T (seconds) with an easing function
// that applies to the segment starting at this keyframe.
type Keyframe struct {
	T    float64 `yaml:"t"`
	V    float64 `yaml:"v"`
	Ease string  `yaml:"ease,omitempty"` // "linear","smooth","cubic"
}

// Envelope is a sorted list of keyframes; Eval(t) interpolates a value.
// In YAML it is written as the bare keyframe list.
type Envelope struct {
	Keys []Keyframe
}

// Step is one segment of a scenario: a duration, channel updates published
// on entry, and channel values ramped while it runs. Keys are channel keys
// (robot_mode, angular_z, led_light, ...).
type Step struct {
	Name      string              `yaml:"name"`
	DurationS float64             `yaml:"duration_s"`
	Set       map[string]any      `yaml:"set,omitempty"`
	Ramps     map[string]Envelope `yaml:"ramps,omitempty"`
}

// Program is a full scenario.
type Program struct {
	Version string `yaml:"version"` // "scenario.v1"
	Loop    bool   `yaml:"loop,omitempty"`
	Steps   []Step `yaml:"steps"`
}

// PlayerState enumerates player states.
type PlayerState string

const (
	Idle    PlayerState = "idle"
	Running PlayerState = "running"
	Paused  PlayerState = "paused"
)

// Hooks are dependency-injected callbacks. Publish receives a message in
// the broker's topic/payload form.
type Hooks struct {
	Publish func(topic string, payload []byte)
	// OnStep, if set, is called when a step is entered.
	OnStep func(index int, s Step)
}

// Player owns the current Program timeline and uses Hooks to emit updates.
// Its methods are safe to call from several goroutines; hooks run with the
// player locked and must not call back into it.
type Player struct {
	mu    sync.Mutex
	state PlayerState

	prog Program
	nowS float64 // position within program
	idx  int     // current step index

	hooks Hooks
}
