package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrTokenParse = errors.New("token is not an integer")
	ErrMaskToken  = errors.New("mask token must be 0 or 1")
)

// ParseIntList splits s on ',' and decodes each token into successive
// slots of dst. It never writes past len(dst): extra tokens set overflow
// and are dropped. A trailing comma is tolerated. On a parse error dst may
// hold a partially written prefix; callers parse into scratch space.
func ParseIntList(dst []int, s string) (n int, overflow bool, err error) {
	if s == "" {
		return 0, false, nil
	}
	toks := strings.Split(s, ",")
	if len(toks) > 1 && strings.TrimSpace(toks[len(toks)-1]) == "" {
		toks = toks[:len(toks)-1]
	}
	for i, tok := range toks {
		if i >= len(dst) {
			return n, true, nil
		}
		v, perr := strconv.Atoi(strings.TrimSpace(tok))
		if perr != nil {
			return n, false, fmt.Errorf("token %d %q: %w", i, tok, ErrTokenParse)
		}
		dst[i] = v
		n++
	}
	return n, false, nil
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
