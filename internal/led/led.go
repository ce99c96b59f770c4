// Package led holds the render.Driver implementations for the two arrays.
package led

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/dv8lights/internal/config"
	"github.com/coreman2200/dv8lights/internal/render"
)

var (
	ErrUnknownDriver = errors.New("led: unknown driver")
	ErrOrder         = errors.New("led: bad color order")
)

// Pack lays f out as bytes in the given channel order. W is always 0.
func Pack(order string, f render.Frame) ([]byte, error) {
	if err := checkOrder(order); err != nil {
		return nil, err
	}
	n := len(order)
	out := make([]byte, len(f)*n)
	packInto(out, order, f)
	return out, nil
}

func packInto(dst []byte, order string, f render.Frame) {
	n := len(order)
	for i, c := range f {
		px := dst[i*n : i*n+n]
		for j := 0; j < n; j++ {
			switch order[j] {
			case 'R':
				px[j] = c.R
			case 'G':
				px[j] = c.G
			case 'B':
				px[j] = c.B
			default:
				px[j] = 0
			}
		}
	}
}

func checkOrder(order string) error {
	if len(order) != 3 && len(order) != 4 {
		return fmt.Errorf("%w: %q needs 3 or 4 channels", ErrOrder, order)
	}
	seen := map[rune]bool{}
	for _, ch := range order {
		switch ch {
		case 'R', 'G', 'B', 'W':
		default:
			return fmt.Errorf("%w: unknown channel %q in %q", ErrOrder, ch, order)
		}
		if seen[ch] {
			return fmt.Errorf("%w: channel %q repeated in %q", ErrOrder, ch, order)
		}
		seen[ch] = true
	}
	if len(order) == 4 && !seen['W'] {
		return fmt.Errorf("%w: 4 channel order %q lacks W", ErrOrder, order)
	}
	if len(order) == 3 && seen['W'] {
		return fmt.Errorf("%w: 3 channel order %q has W", ErrOrder, order)
	}
	return nil
}

// Open builds the driver named by o. Hardware drivers fail if the device
// cannot be set up; callers treat that as fatal.
func Open(array string, o config.Output, log zerolog.Logger) (render.Driver, error) {
	var (
		d   render.Driver
		err error
	)
	switch o.Driver {
	case "periph":
		freq := 800 * physic.KiloHertz
		if o.SpeedHz > 0 {
			freq = physic.Frequency(o.SpeedHz/3) * physic.Hertz
		}
		d, err = openPeriph(o.Port, o.Count, o.ColorOrder, freq)
	case "spidev":
		d, err = openSPI(o.Port, o.Count, o.ColorOrder, o.SpeedHz, o.ResetUs)
	case "screen":
		d = NewScreen(o.Count)
	case "sim":
		d = NewSim(array, log)
	default:
		err = fmt.Errorf("%w %q", ErrUnknownDriver, o.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", array, err)
	}
	log.Info().Str("array", array).Str("driver", o.Driver).Str("port", o.Port).Int("count", o.Count).Msg("led driver ready")
	return d, nil
}

// The wrappers keep a failed constructor from producing a typed nil driver.
func openPeriph(port string, count int, order string, freq physic.Frequency) (render.Driver, error) {
	d, err := NewPeriph(port, count, order, freq)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func openSPI(dev string, count int, order string, speedHz, resetUs int) (render.Driver, error) {
	d, err := NewSPI(dev, count, order, speedHz, resetUs)
	if err != nil {
		return nil, err
	}
	return d, nil
}
