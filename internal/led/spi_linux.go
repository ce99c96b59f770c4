//go:build linux

package led

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"unsafe"

	"github.com/coreman2200/dv8lights/internal/render"
)

// Minimal spidev ioctl bindings, for boards periph's host drivers do not
// recognise.
const (
	spiIOCWriteMode        = 0x40016b01
	spiIOCWriteBitsPerWord = 0x40016b03
	spiIOCWriteMaxSpeedHz  = 0x40046b04
)

type SPI struct {
	mu      sync.Mutex
	f       *os.File
	count   int
	order   string
	resetUs int

	raw []byte
	enc []byte
}

// NewSPI opens spidev (e.g. "/dev/spidev0.0") and prepares an NRZ encoder.
// speedHz in the 2_400_000–3_200_000 range works well with the 3x expansion.
// order is a 3 or 4 channel order such as "GRB" or "GRBW". resetUs is the
// latch (usually >= 280µs; 300–400 is safe).
func NewSPI(spiDev string, count int, order string, speedHz int, resetUs int) (*SPI, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid LED count: %d", count)
	}
	if err := checkOrder(order); err != nil {
		return nil, err
	}
	if speedHz <= 0 {
		speedHz = 2400000
	}
	if resetUs <= 0 {
		resetUs = 300
	}
	f, err := os.OpenFile(spiDev, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open spidev: %w", err)
	}
	// mode 0
	mode := byte(0)
	if _, _, e := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), spiIOCWriteMode, uintptr(unsafe.Pointer(&mode))); e != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("SPI set mode: %v", e)
	}
	bpw := byte(8)
	if _, _, e := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), spiIOCWriteBitsPerWord, uintptr(unsafe.Pointer(&bpw))); e != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("SPI set bits-per-word: %v", e)
	}
	speed := uint32(speedHz)
	if _, _, e := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), spiIOCWriteMaxSpeedHz, uintptr(unsafe.Pointer(&speed))); e != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("SPI set speed: %v", e)
	}

	n := count * len(order)
	return &SPI{
		f:       f,
		count:   count,
		order:   order,
		resetUs: resetUs,
		raw:     make([]byte, n),
		enc:     make([]byte, n*3),
	}, nil
}

func (s *SPI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f != nil {
		err := s.f.Close()
		s.f = nil
		return err
	}
	return nil
}

// Write expands f to 3 SPI bytes per channel byte and follows it with a
// run of zeros for the latch.
func (s *SPI) Write(f render.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return fmt.Errorf("SPI closed")
	}
	if len(f) != s.count {
		return fmt.Errorf("frame length %d does not match count %d", len(f), s.count)
	}
	packInto(s.raw, s.order, f)
	encodeNRZ(s.enc, s.raw)
	if _, err := s.f.Write(s.enc); err != nil {
		return fmt.Errorf("spi write: %w", err)
	}
	if _, err := s.f.Write(make([]byte, latchBytes(s.resetUs))); err != nil {
		return fmt.Errorf("spi latch: %w", err)
	}
	return nil
}
