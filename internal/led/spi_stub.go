//go:build !linux

package led

import (
	"fmt"

	"github.com/coreman2200/dv8lights/internal/render"
)

type SPI struct{}

func NewSPI(spiDev string, count int, order string, speedHz int, resetUs int) (*SPI, error) {
	return nil, fmt.Errorf("spi driver not supported on this platform")
}

func (s *SPI) Write(render.Frame) error {
	return fmt.Errorf("spi driver not supported on this platform")
}

func (s *SPI) Close() error { return nil }
