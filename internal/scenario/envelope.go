package scenario

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Easing curves for the segment that starts at a keyframe. An unknown name
// falls back to linear.
var eases = map[string]func(float64) float64{
	"":       func(u float64) float64 { return u },
	"linear": func(u float64) float64 { return u },
	"smooth": func(u float64) float64 { return u * u * (3 - 2*u) },
	"cubic":  func(u float64) float64 { return u * u * u * (u*(u*6-15) + 10) },
}

func ease(name string, u float64) float64 {
	u = min(max(u, 0), 1)
	if f, ok := eases[name]; ok {
		return f(u)
	}
	return u
}

// Eval returns the ramp value t seconds into its step. It holds the first
// value before the first key and the last value after the last one, and is
// 0 with no keys. The value is published as is: int channels such as
// robot_mode or brush_speed truncate it toward zero on ingest, so a ramp
// from 0 to 3 only reaches 3 at its final key.
func (e Envelope) Eval(t float64) float64 {
	keys := e.Keys
	switch {
	case len(keys) == 0:
		return 0
	case t <= keys[0].T:
		return keys[0].V
	case t >= keys[len(keys)-1].T:
		return keys[len(keys)-1].V
	}
	// first key strictly after t; keys are sorted on load
	j := sort.Search(len(keys), func(i int) bool { return keys[i].T > t })
	a, b := keys[j-1], keys[j]
	return a.V + (b.V-a.V)*ease(a.Ease, (t-a.T)/(b.T-a.T))
}

// UnmarshalYAML reads a keyframe list and sorts it by time.
func (e *Envelope) UnmarshalYAML(n *yaml.Node) error {
	var keys []Keyframe
	if err := n.Decode(&keys); err != nil {
		return fmt.Errorf("envelope: %w", err)
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].T < keys[j].T })
	e.Keys = keys
	return nil
}

// MarshalYAML writes the bare keyframe list.
func (e Envelope) MarshalYAML() (any, error) { return e.Keys, nil }
