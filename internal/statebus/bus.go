// Package statebus holds the telemetry registers and debug overrides shared
// between the update ingestor and the renderers.
//
// Ownership: the ingestor is the only writer; the policy, renderers and
// status reporter only read. Each scalar register is an independent atomic
// word, so a single field is sequentially consistent but there is no
// ordering between fields. The override composites are published as whole
// values (copy-on-write behind an atomic pointer) so readers never observe
// a half-updated triple or mask.
package statebus

import (
	"fmt"
	"math"
	"sync/atomic"
)

type Bus struct {
	regs [fieldCount]atomic.Uint64

	light atomic.Pointer[Override]
	panel atomic.Pointer[PanelOverride]

	version atomic.Uint64
}

func New() *Bus {
	b := &Bus{}
	b.light.Store(&Override{})
	b.panel.Store(&PanelOverride{})
	return b
}

func (b *Bus) checkKind(f Field, k Kind) {
	if f >= fieldCount {
		panic(fmt.Sprintf("statebus: unknown field %d", uint8(f)))
	}
	if f.Kind() != k {
		panic(fmt.Sprintf("statebus: %s is not a %s register", f, kindName(k)))
	}
}

func kindName(k Kind) string {
	if k == Float {
		return "float"
	}
	return "int"
}

// SetFloat stores v into a float register.
func (b *Bus) SetFloat(f Field, v float64) {
	b.checkKind(f, Float)
	b.regs[f].Store(math.Float64bits(v))
	b.version.Add(1)
}

// SetInt stores v into an int register.
func (b *Bus) SetInt(f Field, v int64) {
	b.checkKind(f, Int)
	b.regs[f].Store(uint64(v))
	b.version.Add(1)
}

func (b *Bus) Float(f Field) float64 {
	b.checkKind(f, Float)
	return math.Float64frombits(b.regs[f].Load())
}

func (b *Bus) Int(f Field) int64 {
	b.checkKind(f, Int)
	return int64(b.regs[f].Load())
}

func (b *Bus) flag(f Field) bool { return b.Int(f) != 0 }

func (b *Bus) LinearVelocity() float64    { return b.Float(LinearVelocity) }
func (b *Bus) AngularVelocity() float64   { return b.Float(AngularVelocity) }
func (b *Bus) BatteryPercentage() float64 { return b.Float(BatteryPercentage) }
func (b *Bus) BrushSpeed() int64          { return b.Int(BrushSpeed) }
func (b *Bus) BatteryIsCharging() bool    { return b.flag(BatteryIsCharging) }
func (b *Bus) EStop() bool                { return b.flag(EStop) }
func (b *Bus) Handbrake() bool            { return b.flag(Handbrake) }
func (b *Bus) DirectStatus() bool         { return b.flag(DirectStatus) }
func (b *Bus) SafetyMode() bool           { return b.flag(SafetyMode) }
func (b *Bus) RobotMode() Mode            { return Mode(b.Int(RobotMode)) }

// LightOverride returns the last published light override.
func (b *Bus) LightOverride() Override { return *b.light.Load() }

// PanelOverride returns the last published panel override.
func (b *Bus) PanelOverride() PanelOverride { return *b.panel.Load() }

// UpdateLightOverride applies fn to a copy of the current override and
// publishes the copy. Calls must not overlap: concurrent updaters would
// each copy the same value and the later store would drop the earlier
// change. ingest.Ingestor serializes its callers for this.
func (b *Bus) UpdateLightOverride(fn func(*Override)) {
	next := *b.light.Load()
	fn(&next)
	b.light.Store(&next)
	b.version.Add(1)
}

// UpdatePanelOverride is UpdateLightOverride for the panel composite.
func (b *Bus) UpdatePanelOverride(fn func(*PanelOverride)) {
	next := *b.panel.Load()
	fn(&next)
	b.panel.Store(&next)
	b.version.Add(1)
}

// Version counts accepted writes since startup.
func (b *Bus) Version() uint64 { return b.version.Load() }

// Snapshot loads every register one by one. It is not a transaction.
func (b *Bus) Snapshot() Snapshot {
	return Snapshot{
		LinearVelocity:    b.LinearVelocity(),
		AngularVelocity:   b.AngularVelocity(),
		BatteryPercentage: b.BatteryPercentage(),
		BrushSpeed:        b.BrushSpeed(),
		BatteryIsCharging: b.BatteryIsCharging(),
		EStop:             b.EStop(),
		Handbrake:         b.Handbrake(),
		DirectStatus:      b.DirectStatus(),
		SafetyMode:        b.SafetyMode(),
		RobotMode:         b.RobotMode(),
		Light:             b.LightOverride(),
		Panel:             b.PanelOverride(),
		Version:           b.Version(),
	}
}
