package render

// Limiter keeps a frame under a supply current budget.
//
// Current is estimated linearly: each channel at 255 draws ChannelMA. Below
// Knee*BudgetMA the frame is untouched; between the knee and the budget the
// frame is scaled gently; above the budget it is scaled hard to meet it.
// A zero budget disables the limiter.
type Limiter struct {
	BudgetMA  float64
	ChannelMA float64
	Knee      float64
}

// Estimate returns the modelled draw of f in mA.
func (l *Limiter) Estimate(f Frame) float64 {
	chanmA := l.ChannelMA
	if chanmA <= 0 {
		chanmA = 20
	}
	var total float64
	for _, c := range f {
		total += float64(int(c.R)+int(c.G)+int(c.B)) / 255 * chanmA
	}
	return total
}

// Apply scales f in place.
func (l *Limiter) Apply(f Frame) {
	if l == nil || l.BudgetMA <= 0 {
		return
	}
	knee := l.Knee
	if knee <= 0 || knee >= 1 {
		knee = 0.9
	}
	total := l.Estimate(f)
	if total <= 0 {
		return
	}
	ratio := total / l.BudgetMA
	if ratio <= knee {
		return
	}
	s := l.BudgetMA / total
	if ratio <= 1.0 {
		// map ratio in [knee,1] to scale in [1, budget/total]
		t := (ratio - knee) / (1.0 - knee)
		s = 1.0 - t*(1.0-s)
	}
	if s >= 1.0 {
		return
	}
	for i := range f {
		f[i] = Scale(f[i], s)
	}
}
