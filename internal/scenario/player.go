package scenario

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/dv8lights/internal/ingest"
	"github.com/coreman2200/dv8lights/internal/transport"
)

// LoadFile reads a YAML program and checks it.
func LoadFile(path string) (Program, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Program{}, err
	}
	var prog Program
	if err := yaml.Unmarshal(b, &prog); err != nil {
		return Program{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	if err := prog.Validate(); err != nil {
		return Program{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	return prog, nil
}

// Validate checks durations and that every key names a channel.
func (prog Program) Validate() error {
	if len(prog.Steps) == 0 {
		return errors.New("program has no steps")
	}
	for i, s := range prog.Steps {
		if s.DurationS <= 0 {
			return fmt.Errorf("step %d (%s): duration must be positive", i, s.Name)
		}
		for k := range s.Set {
			if _, ok := ingest.LookupKey(k); !ok {
				return fmt.Errorf("step %d (%s): unknown channel key %q", i, s.Name, k)
			}
		}
		for k := range s.Ramps {
			ch, ok := ingest.LookupKey(k)
			if !ok {
				return fmt.Errorf("step %d (%s): unknown channel key %q", i, s.Name, k)
			}
			if ch.Kind != ingest.ScalarFloat && ch.Kind != ingest.ScalarInt {
				return fmt.Errorf("step %d (%s): %q cannot be ramped", i, s.Name, k)
			}
		}
	}
	return nil
}

// NewPlayer constructs a Player with provided hooks.
func NewPlayer(h Hooks) *Player {
	return &Player{
		state: Idle,
		hooks: h,
	}
}

// Load replaces the current program. Resets time and state to Idle.
func (p *Player) Load(prog Program) error {
	if err := prog.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prog = prog
	p.nowS = 0
	p.idx = 0
	p.state = Idle
	return nil
}

func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start moves to Running and enters the first step.
func (p *Player) Start() { p.StartAt(0) }

// StartAt moves an idle player to Running at program time t. Only the step containing t
// publishes its Set values; earlier steps are skipped.
func (p *Player) StartAt(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Idle || len(p.prog.Steps) == 0 {
		return
	}
	p.state = Running
	p.seek(t)
}

// Pause pauses playback.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Running {
		p.state = Paused
	}
}

// Resume resumes playback.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Paused {
		p.state = Running
	}
}

// Stop stops and resets to start. A running Run returns.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Idle
	p.nowS = 0
	p.idx = 0
}

// Step is the index of the current step.
func (p *Player) Step() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idx
}

// Position is the current program time in seconds.
func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nowS
}

// Seek jumps to absolute program time t and enters the step there. Times
// past the end land just before it, in the last step.
func (p *Player) Seek(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prog.Steps) == 0 {
		return
	}
	p.seek(t)
}

func (p *Player) seek(t float64) {
	if t < 0 {
		t = 0
	}
	total := p.totalDuration()
	if t >= total {
		t = math.Nextafter(total, 0)
	}
	acc := 0.0
	idx := len(p.prog.Steps) - 1
	for i, s := range p.prog.Steps {
		if t < acc+s.DurationS {
			idx = i
			break
		}
		acc += s.DurationS
	}
	p.idx = idx
	p.nowS = t
	p.enter()
}

// Tick advances the player by dt seconds and publishes ramped values.
func (p *Player) Tick(dt float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Running || len(p.prog.Steps) == 0 {
		return
	}
	if dt <= 0 {
		return
	}
	p.nowS += dt

	step, localT := p.currentStepAndLocalT()
	for _, k := range sortedKeys(step.Ramps) {
		p.publish(k, step.Ramps[k].Eval(localT))
	}

	if localT >= step.DurationS {
		p.advanceStep()
	}
}

// Run starts the player if it is idle and ticks every interval until the
// program ends, Stop is called or ctx is done. Paused time does not count.
func (p *Player) Run(ctx context.Context, interval time.Duration) error {
	p.Start()
	t := time.NewTicker(interval)
	defer t.Stop()
	for p.State() != Idle {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.Tick(interval.Seconds())
		}
	}
	return nil
}

func (p *Player) enter() {
	step := p.prog.Steps[p.idx]
	if p.hooks.OnStep != nil {
		p.hooks.OnStep(p.idx, step)
	}
	for _, k := range sortedKeys(step.Set) {
		p.publish(k, step.Set[k])
	}
}

func (p *Player) publish(key string, v any) {
	if p.hooks.Publish == nil {
		return
	}
	topic, payload, err := transport.BridgeMessage(key, v)
	if err != nil {
		// keys are checked on Load; only unencodable values land here
		return
	}
	p.hooks.Publish(topic, payload)
}

func (p *Player) currentStepAndLocalT() (Step, float64) {
	acc := 0.0
	for i := 0; i < p.idx; i++ {
		acc += p.prog.Steps[i].DurationS
	}
	localT := p.nowS - acc
	return p.prog.Steps[p.idx], localT
}

func (p *Player) totalDuration() float64 {
	total := 0.0
	for _, s := range p.prog.Steps {
		total += s.DurationS
	}
	return total
}

func (p *Player) nextIndex() int {
	ni := p.idx + 1
	if ni >= len(p.prog.Steps) {
		if p.prog.Loop {
			return 0
		}
		return -1
	}
	return ni
}

func (p *Player) advanceStep() {
	next := p.nextIndex()
	if next == -1 {
		// End of program
		p.state = Idle
		return
	}
	if next == 0 {
		p.nowS -= p.totalDuration()
	}
	p.idx = next
	p.enter()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
