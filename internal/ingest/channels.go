package ingest

import "github.com/coreman2200/dv8lights/internal/statebus"

// ChannelKind selects how a payload is decoded.
type ChannelKind uint8

const (
	ScalarFloat ChannelKind = iota
	ScalarInt
	LightOverride
	PanelOverride
)

// Channel maps a transport topic to the payload key it carries and the
// register it updates. Field is unused for the override channels.
type Channel struct {
	Topic string
	Key   string
	Kind  ChannelKind
	Field statebus.Field
}

// Payload keys of the override channels.
const (
	KeyRGB     = "rgb"
	KeyFace    = "face"
	KeyEnabled = "enabled"
)

// Channels is the fixed table of update channels.
var Channels = []Channel{
	{Topic: "/robot/control/cmd_vel/linear_x", Key: "linear_x", Kind: ScalarFloat, Field: statebus.LinearVelocity},
	{Topic: "/robot/control/cmd_vel/angular_z", Key: "angular_z", Kind: ScalarFloat, Field: statebus.AngularVelocity},
	{Topic: "/robot/state/battery_percentage", Key: "battery_percentage", Kind: ScalarFloat, Field: statebus.BatteryPercentage},
	{Topic: "/robot/state/battery_is_charging", Key: "battery_is_charging", Kind: ScalarInt, Field: statebus.BatteryIsCharging},
	{Topic: "/robot/state/e_stop", Key: "e_stop", Kind: ScalarInt, Field: statebus.EStop},
	{Topic: "/robot/state/handbrake", Key: "handbrake", Kind: ScalarInt, Field: statebus.Handbrake},
	{Topic: "/robot/state/direct_status", Key: "direct_status", Kind: ScalarInt, Field: statebus.DirectStatus},
	{Topic: "/robot/state/robot_mode", Key: "robot_mode", Kind: ScalarInt, Field: statebus.RobotMode},
	{Topic: "/robot/control/brush_speed", Key: "brush_speed", Kind: ScalarInt, Field: statebus.BrushSpeed},
	{Topic: "/robot/state/safety_mode", Key: "safety_mode", Kind: ScalarInt, Field: statebus.SafetyMode},
	{Topic: "/debug/led_panel", Key: "led_panel", Kind: PanelOverride},
	{Topic: "/debug/led_light", Key: "led_light", Kind: LightOverride},
}

var (
	byTopic = map[string]Channel{}
	byKey   = map[string]Channel{}
)

func init() {
	for _, c := range Channels {
		byTopic[c.Topic] = c
		byKey[c.Key] = c
	}
}

// Lookup finds the channel for a topic.
func Lookup(topic string) (Channel, bool) {
	c, ok := byTopic[topic]
	return c, ok
}

// LookupKey finds the channel whose payload key is key (scalar channels) or
// whose name is key (override channels).
func LookupKey(key string) (Channel, bool) {
	c, ok := byKey[key]
	return c, ok
}

// Topics lists every subscribed topic in table order.
func Topics() []string {
	out := make([]string, len(Channels))
	for i, c := range Channels {
		out[i] = c.Topic
	}
	return out
}
