package render

import "testing"

func TestLimiterBudgetClamp(t *testing.T) {
	// 10 pixels all white, 60 mA each
	f := make(Frame, 10)
	for i := range f {
		f[i] = Color{R: 255, G: 255, B: 255}
	}
	l := &Limiter{BudgetMA: 300, ChannelMA: 20, Knee: 0.9}

	// pre-limit current would be 10 * 60 = 600 mA
	l.Apply(f)
	cur := l.Estimate(f)
	if cur > 300.1 {
		t.Fatalf("expected <= 300mA after limit, got %.2f mA", cur)
	}
	if f[0].IsZero() {
		t.Fatalf("limiter should dim, not blank")
	}
}

func TestLimiterUnderKneeUntouched(t *testing.T) {
	f := Frame{{R: 100}}
	l := &Limiter{BudgetMA: 1000, ChannelMA: 20}
	l.Apply(f)
	if f[0] != (Color{R: 100}) {
		t.Fatalf("frame changed: %v", f[0])
	}
}

func TestLimiterDisabled(t *testing.T) {
	f := Frame{{R: 255, G: 255, B: 255}}
	var nilLimiter *Limiter
	nilLimiter.Apply(f)
	(&Limiter{}).Apply(f)
	if f[0] != (Color{R: 255, G: 255, B: 255}) {
		t.Fatalf("disabled limiter changed the frame")
	}
}
