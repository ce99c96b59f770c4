package statebus

import "fmt"

// PanelPixels is the number of pixels on the face panel (two 7x7 eyes).
const PanelPixels = 98

// Mode is the robot controller mode as published on the robot_mode channel.
// Codes are sparse; unmapped codes are stored verbatim.
type Mode int32

const (
	ModeClear         Mode = 0
	ModeIdle          Mode = 1
	ModeCoverage      Mode = 2
	ModeLitterPicking Mode = 3
	ModeTransient     Mode = 4
	ModeIdleLatch     Mode = 6
	ModeError         Mode = 7

	// ModeCount bounds the mode table; every code below it has an entry.
	ModeCount = 8
)

func (m Mode) String() string {
	switch m {
	case ModeClear:
		return "clear"
	case ModeIdle:
		return "idle"
	case ModeCoverage:
		return "coverage"
	case ModeLitterPicking:
		return "litter_picking"
	case ModeTransient:
		return "transient"
	case ModeIdleLatch:
		return "idle_latch"
	case ModeError:
		return "error"
	}
	return fmt.Sprintf("mode(%d)", int32(m))
}

// Kind is the storage kind of a scalar register.
type Kind uint8

const (
	Float Kind = iota
	Int
)

// Field names one scalar register.
type Field uint8

const (
	LinearVelocity Field = iota
	AngularVelocity
	BatteryPercentage
	BrushSpeed
	BatteryIsCharging
	EStop
	Handbrake
	DirectStatus
	SafetyMode
	RobotMode

	fieldCount
)

var fieldNames = [fieldCount]string{
	LinearVelocity:    "linear_velocity",
	AngularVelocity:   "angular_velocity",
	BatteryPercentage: "battery_percentage",
	BrushSpeed:        "brush_speed",
	BatteryIsCharging: "battery_is_charging",
	EStop:             "e_stop",
	Handbrake:         "handbrake",
	DirectStatus:      "direct_status",
	SafetyMode:        "safety_mode",
	RobotMode:         "robot_mode",
}

func (f Field) String() string {
	if f < fieldCount {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// Kind reports whether the register holds a float or an int.
func (f Field) Kind() Kind {
	switch f {
	case LinearVelocity, AngularVelocity, BatteryPercentage:
		return Float
	}
	return Int
}

// RGB is an 8-bit color triple.
type RGB struct{ R, G, B uint8 }

func (c RGB) IsZero() bool { return c.R == 0 && c.G == 0 && c.B == 0 }

func (c RGB) String() string { return fmt.Sprintf("%d,%d,%d", c.R, c.G, c.B) }

// Override is the light strip debug override. Enabled is tracked apart
// from Color so black can be requested explicitly.
type Override struct {
	Enabled bool `json:"enabled"`
	Color   RGB  `json:"rgb"`
}

// PanelOverride is the face panel debug override: Color is drawn where
// Mask is set, everything else is blanked.
type PanelOverride struct {
	Enabled bool              `json:"enabled"`
	Color   RGB               `json:"rgb"`
	Mask    [PanelPixels]bool `json:"face"`
}

// Snapshot is a plain copy of the bus. It is assembled from independent
// loads and may combine values that were never published together.
type Snapshot struct {
	LinearVelocity    float64
	AngularVelocity   float64
	BatteryPercentage float64
	BrushSpeed        int64
	BatteryIsCharging bool
	EStop             bool
	Handbrake         bool
	DirectStatus      bool
	SafetyMode        bool
	RobotMode         Mode

	Light Override
	Panel PanelOverride

	Version uint64
}
