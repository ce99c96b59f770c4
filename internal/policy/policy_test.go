package policy

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/dv8lights/internal/statebus"
)

var allModes = []statebus.Mode{0, 1, 2, 3, 4, 5, 6, 7, 9, -1}

func TestEStopAlwaysAlarmRed(t *testing.T) {
	for _, m := range allModes {
		for _, direct := range []bool{false, true} {
			for _, charging := range []bool{false, true} {
				s := statebus.Snapshot{EStop: true, RobotMode: m, DirectStatus: direct, BatteryIsCharging: charging}
				b := BodyColor(s)
				assert.Equal(t, AlarmRed, b.Color, "mode=%v direct=%v charging=%v", m, direct, charging)
				assert.False(t, b.Blink)
				assert.False(t, b.Hold)
			}
		}
	}
}

func TestChargingBlinksGreen(t *testing.T) {
	for _, m := range allModes {
		b := BodyColor(statebus.Snapshot{BatteryIsCharging: true, DirectStatus: true, RobotMode: m})
		assert.Equal(t, ChargingGreen, b.Color)
		assert.True(t, b.Blink)
	}
}

func TestDirectStatusBlue(t *testing.T) {
	b := BodyColor(statebus.Snapshot{DirectStatus: true, RobotMode: statebus.ModeError})
	assert.Equal(t, Body{Color: ManualBlue}, b)
}

var modeBodyCases = []struct {
	Mode statebus.Mode
	Want Body
}{
	{statebus.ModeClear, Body{Color: Off}},
	{statebus.ModeError, Body{Color: Amber}},
	{statebus.ModeLitterPicking, Body{Color: ManualBlue, Blink: true}},
	{statebus.ModeTransient, Body{Color: IdleGreen}},
	{statebus.ModeIdle, Body{Color: IdleGreen}},
	{statebus.ModeCoverage, Body{Color: IdleGreen}},
	{statebus.ModeIdleLatch, Body{Color: IdleGreen}},
	{5, Body{Hold: true}},
	{42, Body{Hold: true}},
	{-3, Body{Hold: true}},
}

func TestModeBodyTable(t *testing.T) {
	for _, c := range modeBodyCases {
		t.Run(c.Mode.String(), func(t *testing.T) {
			assert.Equal(t, c.Want, BodyColor(statebus.Snapshot{RobotMode: c.Mode}))
		})
	}
}

func TestSelectFaceTurns(t *testing.T) {
	var cases = []struct {
		W    float64
		Want Face
	}{
		{0.5, FaceVeryRight},
		{-0.5, FaceVeryLeft},
		{0.1, FaceRight},
		{-0.1, FaceLeft},
		{0.05, FaceRight},
		{-0.011, FaceLeft},
	}
	for _, c := range cases {
		f, ok := SelectFace(statebus.Snapshot{AngularVelocity: c.W, RobotMode: statebus.ModeError}, StateHappy)
		require.True(t, ok)
		assert.Equal(t, c.Want, f, "w=%v", c.W)
	}
}

func TestSelectFaceModes(t *testing.T) {
	var cases = []struct {
		Mode statebus.Mode
		Want Face
		OK   bool
	}{
		{statebus.ModeClear, FaceEmpty, true},
		{statebus.ModeError, FaceDead, true},
		{statebus.ModeLitterPicking, FaceAngry, true},
		{statebus.ModeIdle, FaceLeft, true},
		{statebus.ModeCoverage, FaceLeft, true},
		{statebus.ModeTransient, FaceLeft, true},
		{statebus.ModeIdleLatch, FaceLeft, true},
		{5, FaceEmpty, false},
	}
	for _, c := range cases {
		f, ok := SelectFace(statebus.Snapshot{AngularVelocity: 0.01, RobotMode: c.Mode}, StateLookLeft)
		assert.Equal(t, c.OK, ok, c.Mode.String())
		if ok {
			assert.Equal(t, c.Want, f, c.Mode.String())
		}
	}
}

func TestKnownMode(t *testing.T) {
	assert.True(t, KnownMode(statebus.ModeIdleLatch))
	assert.False(t, KnownMode(5))
	assert.False(t, KnownMode(statebus.ModeCount))
}

func TestNoDirectLookJump(t *testing.T) {
	for draw := 0; draw < 8; draw++ {
		assert.NotEqual(t, StateLookRight, NextFaceState(StateLookLeft, draw))
		assert.NotEqual(t, StateLookLeft, NextFaceState(StateLookRight, draw))
	}
	assert.Equal(t, StateIdle, NextFaceState(StateLookLeft, int(StateLookRight)))
	assert.Equal(t, StateIdle, NextFaceState(StateLookRight, int(StateLookLeft)))
	assert.Equal(t, StateLookRight, NextFaceState(StateHappy, int(StateLookRight)))
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestFaceTimerHoldsAndRedraws(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	ft := NewFaceTimer(WithClock(clk.Now), WithRand(rand.New(rand.NewPCG(1, 2))))

	assert.Equal(t, StateHappy, ft.Tick(), "no draw before the clock moves")

	clk.Advance(time.Millisecond)
	s := ft.Tick()
	exp := ft.Expiry()
	hold := exp.Sub(clk.Now())
	assert.GreaterOrEqual(t, hold, 10*time.Second)
	assert.Less(t, hold, 20*time.Second)

	clk.Advance(hold)
	assert.Equal(t, s, ft.Tick(), "state holds until strictly after expiry")
	assert.Equal(t, exp, ft.Expiry())

	clk.Advance(time.Nanosecond)
	ft.Tick()
	assert.True(t, ft.Expiry().After(exp))
}

func TestFaceTimerNeverJumpsBetweenLooks(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	ft := NewFaceTimer(WithClock(clk.Now), WithRand(rand.New(rand.NewPCG(7, 11))), WithHold(time.Second, 2*time.Second))
	prev := ft.State()
	for i := 0; i < 5000; i++ {
		clk.Advance(3 * time.Second)
		next := ft.Tick()
		if prev == StateLookLeft {
			require.NotEqual(t, StateLookRight, next)
		}
		if prev == StateLookRight {
			require.NotEqual(t, StateLookLeft, next)
		}
		prev = next
	}
}

func TestBlinkerAlternatesFromOff(t *testing.T) {
	b := NewBlinker(time.Second)
	start := time.Unix(50, 0)

	var got []bool
	for i := 0; i < 6; i++ {
		got = append(got, b.Lit(true, start.Add(time.Duration(i)*time.Second)))
	}
	assert.Equal(t, []bool{false, true, false, true, false, true}, got)

	assert.True(t, b.Lit(false, start.Add(7*time.Second)))
	assert.False(t, b.Lit(true, start.Add(8*time.Second)), "re-entering starts dark")
}

func TestBlinkerIgnoresSampleRate(t *testing.T) {
	b := NewBlinker(time.Second)
	start := time.Unix(0, 0)
	lit := 0
	samples := 0
	for ms := 0; ms < 10000; ms += 33 {
		if b.Lit(true, start.Add(time.Duration(ms)*time.Millisecond)) {
			lit++
		}
		samples++
	}
	ratio := float64(lit) / float64(samples)
	assert.InDelta(t, 0.5, ratio, 0.06)
}

func TestBlinkerJitterTolerant(t *testing.T) {
	b := NewBlinker(time.Second)
	start := time.Unix(0, 0)
	assert.False(t, b.Lit(true, start))
	assert.True(t, b.Lit(true, start.Add(990*time.Millisecond)))
	assert.False(t, b.Lit(true, start.Add(2010*time.Millisecond)))
}
