package layout

// Dim is a grid of X columns by Y rows, repeated Z times (one per eye).
type Dim struct{ X, Y, Z int }

type Serpentine struct {
	XFlipEveryRow   bool
	YFlipEveryPanel bool
}

type Layout struct {
	Dim   Dim
	Order Serpentine
}

// Panel is the face panel: two 7x7 eyes wired left eye first, odd rows
// running right to left.
var Panel = Layout{
	Dim:   Dim{X: 7, Y: 7, Z: 2},
	Order: Serpentine{XFlipEveryRow: true},
}

// Index maps x,y,z -> linear LED index (0..N-1). Out of range coordinates
// return -1.
func (l Layout) Index(x, y, z int) int {
	if x < 0 || y < 0 || z < 0 || x >= l.Dim.X || y >= l.Dim.Y || z >= l.Dim.Z {
		return -1
	}
	yy := y
	xx := x
	if (y%2 == 1) && l.Order.XFlipEveryRow {
		xx = l.Dim.X - 1 - x
	}
	if l.Order.YFlipEveryPanel && (z%2 == 1) {
		yy = l.Dim.Y - 1 - y
	}
	perPanel := l.Dim.X * l.Dim.Y
	return z*perPanel + yy*l.Dim.X + xx
}

func (l Layout) Count() int {
	return l.Dim.X * l.Dim.Y * l.Dim.Z
}

// Strip is the body light strip. Pixels in [GapStart, GapEnd] face the
// panel and are always dark.
type Strip struct {
	Count    int
	GapStart int
	GapEnd   int
}

var BodyStrip = Strip{Count: 120, GapStart: 15, GapEnd: 35}

// Reserved reports whether pixel i is in the dark gap.
func (s Strip) Reserved(i int) bool { return i >= s.GapStart && i <= s.GapEnd }
