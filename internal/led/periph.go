package led

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"github.com/coreman2200/dv8lights/internal/render"
)

// Periph drives an NRZ strip (WS2812, SK6812) over a periph SPI port.
// nrzled takes RGB or RGBW input and emits the wire's G-first order itself,
// so only the channel count of the configured order matters here.
type Periph struct {
	mu    sync.Mutex
	dev   *nrzled.Dev
	port  spi.PortCloser
	order string
	count int
	buf   []byte
}

// NewPeriph opens the named SPI port ("" picks the first one).
func NewPeriph(port string, count int, order string, freq physic.Frequency) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p, err := spireg.Open(port)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", port, err)
	}
	d, err := newPeriph(p, count, order, freq)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	d.port = p
	return d, nil
}

func newPeriph(p spi.Port, count int, order string, freq physic.Frequency) (*Periph, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid LED count: %d", count)
	}
	if err := checkOrder(order); err != nil {
		return nil, err
	}
	natural := "RGB"
	if len(order) == 4 {
		natural = "RGBW"
	}
	opts := nrzled.Opts{NumPixels: count, Channels: len(natural), Freq: freq}
	d, err := nrzled.NewSPI(p, &opts)
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return &Periph{
		dev:   d,
		order: natural,
		count: count,
		buf:   make([]byte, count*len(natural)),
	}, nil
}

func (d *Periph) String() string { return d.dev.String() }

func (d *Periph) Write(f render.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(f) != d.count {
		return fmt.Errorf("frame length %d does not match count %d", len(f), d.count)
	}
	packInto(d.buf, d.order, f)
	if _, err := d.dev.Write(d.buf); err != nil {
		return fmt.Errorf("nrzled write: %w", err)
	}
	return nil
}

// Close blanks the strip and releases the port.
func (d *Periph) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.dev.Halt()
	if d.port != nil {
		if cerr := d.port.Close(); err == nil {
			err = cerr
		}
		d.port = nil
	}
	return err
}
