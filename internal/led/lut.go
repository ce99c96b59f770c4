package led

// nrzLUT expands one byte into 24 SPI bits, MSB first: bit 1 -> 110,
// bit 0 -> 100. Clocked at 3x the LED bit rate this reproduces the
// WS2812/SK6812 high/low timings.
var nrzLUT = buildNRZ()

func buildNRZ() (lut [256][3]byte) {
	for v := 0; v < 256; v++ {
		out := uint32(0)
		for i := 7; i >= 0; i-- {
			tri := uint32(0b100)
			if (v>>i)&1 == 1 {
				tri = 0b110
			}
			out = (out << 3) | tri
		}
		lut[v] = [3]byte{byte(out >> 16), byte(out >> 8), byte(out)}
	}
	return lut
}

// encodeNRZ writes 3 bytes per src byte into dst.
func encodeNRZ(dst, src []byte) {
	for i, v := range src {
		copy(dst[i*3:i*3+3], nrzLUT[v][:])
	}
}

// latchBytes is the run of zero bytes that holds the line low for resetUs.
// At 2.4MHz one byte lasts ~3.3µs; never send fewer than 128.
func latchBytes(resetUs int) int {
	n := (resetUs + 2) / 3
	if n < 128 {
		n = 128
	}
	return n
}
