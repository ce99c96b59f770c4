// Package policy decides what the lights show for a given bus snapshot.
//
// Body color tiers, highest first: e-stop, charging (blink), direct
// control, then the robot mode table. The face follows its own chain:
// turn rate first, then the mode table, with the idle group falling back to
// the animated FaceState.
package policy

import (
	"math"

	"github.com/coreman2200/dv8lights/internal/statebus"
)

// Palette.
var (
	Off           = statebus.RGB{}
	AlarmRed      = statebus.RGB{R: 255}
	ChargingGreen = statebus.RGB{R: 40, G: 255, B: 30}
	ManualBlue    = statebus.RGB{B: 255}
	Amber         = statebus.RGB{R: 255, G: 120}
	IdleGreen     = statebus.RGB{R: 40, G: 255, B: 30}
)

// Turn rate thresholds (rad/s) for the turn faces.
const (
	FullTurn    = 0.1
	PartialTurn = 0.01
)

// Body is the body-light decision. Hold means the mode is unmapped and the
// renderer should keep whatever it drew last.
type Body struct {
	Color statebus.RGB
	Blink bool
	Hold  bool
}

type modeEntry struct {
	known bool
	body  Body
	face  Face
	// animated faces defer to the FaceState machine.
	animated bool
}

// modeTable is total over 0..ModeCount-1. Codes without a constant keep the
// zero entry (known=false).
var modeTable = [statebus.ModeCount]modeEntry{
	statebus.ModeClear:         {known: true, body: Body{Color: Off}, face: FaceEmpty},
	statebus.ModeError:         {known: true, body: Body{Color: Amber}, face: FaceDead},
	statebus.ModeLitterPicking: {known: true, body: Body{Color: ManualBlue, Blink: true}, face: FaceAngry},
	statebus.ModeTransient:     {known: true, body: Body{Color: IdleGreen}, animated: true},
	statebus.ModeIdle:          {known: true, body: Body{Color: IdleGreen}, animated: true},
	statebus.ModeCoverage:      {known: true, body: Body{Color: IdleGreen}, animated: true},
	statebus.ModeIdleLatch:     {known: true, body: Body{Color: IdleGreen}, animated: true},
}

func lookupMode(m statebus.Mode) modeEntry {
	if m < 0 || int(m) >= len(modeTable) {
		return modeEntry{}
	}
	return modeTable[m]
}

// KnownMode reports whether m has a display mapping.
func KnownMode(m statebus.Mode) bool { return lookupMode(m).known }

// BodyColor picks the body color for s.
func BodyColor(s statebus.Snapshot) Body {
	switch {
	case s.EStop:
		return Body{Color: AlarmRed}
	case s.BatteryIsCharging:
		return Body{Color: ChargingGreen, Blink: true}
	case s.DirectStatus:
		return Body{Color: ManualBlue}
	}
	e := lookupMode(s.RobotMode)
	if !e.known {
		return Body{Hold: true}
	}
	return e.body
}

// SelectFace picks the face for s. ok is false when the mode is unmapped
// and the previous face should stay up.
func SelectFace(s statebus.Snapshot, state FaceState) (Face, bool) {
	w := s.AngularVelocity
	switch a := math.Abs(w); {
	case a > FullTurn:
		if w > 0 {
			return FaceVeryRight, true
		}
		return FaceVeryLeft, true
	case a > PartialTurn:
		if w > 0 {
			return FaceRight, true
		}
		return FaceLeft, true
	}
	e := lookupMode(s.RobotMode)
	if !e.known {
		return FaceEmpty, false
	}
	if e.animated {
		return state.Face(), true
	}
	return e.face, true
}
