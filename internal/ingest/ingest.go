// Package ingest turns (topic, payload) pairs from the transport into
// register writes on the state bus. It is the bus's only writer.
package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/coreman2200/dv8lights/internal/diagnostics"
	"github.com/coreman2200/dv8lights/internal/metrics"
	"github.com/coreman2200/dv8lights/internal/statebus"
)

// Result is the outcome of one Handle call.
type Result uint8

const (
	Applied Result = iota
	Ignored
	Rejected
)

func (r Result) String() string {
	switch r {
	case Applied:
		return metrics.ResultApplied
	case Ignored:
		return metrics.ResultIgnored
	}
	return metrics.ResultRejected
}

// Ingestor may be fed from several goroutines (broker callback, /control
// connections, scenario player). Handle serializes them so the bus still
// sees one writer at a time.
type Ingestor struct {
	mu    sync.Mutex
	bus   *statebus.Bus
	log   zerolog.Logger
	diag  diagnostics.Sink
	limit *rate.Limiter
	now   func() time.Time
}

type Option func(*Ingestor)

func WithLogger(l zerolog.Logger) Option { return func(i *Ingestor) { i.log = l } }

// WithDiagnostics routes rejection and overflow events to sink.
func WithDiagnostics(sink diagnostics.Sink) Option {
	return func(i *Ingestor) {
		if sink != nil {
			i.diag = sink
		}
	}
}

// WithRejectLogRate throttles warning logs for bad updates. Diagnostics and
// metrics are not throttled.
func WithRejectLogRate(r rate.Limit, burst int) Option {
	return func(i *Ingestor) { i.limit = rate.NewLimiter(r, burst) }
}

func New(bus *statebus.Bus, opts ...Option) *Ingestor {
	i := &Ingestor{
		bus:   bus,
		log:   log.Logger.With().Str("component", "ingest").Logger(),
		diag:  diagnostics.Discard,
		limit: rate.NewLimiter(rate.Every(time.Second), 5),
		now:   time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Handle decodes one update. Unknown topics are ignored; malformed
// payloads are rejected without touching the bus.
func (i *Ingestor) Handle(topic string, payload []byte) Result {
	ch, ok := Lookup(topic)
	if !ok {
		i.log.Debug().Str("topic", topic).Msg("unknown channel")
		return Ignored
	}
	i.mu.Lock()
	res := i.handle(ch, payload)
	i.mu.Unlock()
	metrics.IngestUpdates.WithLabelValues(ch.Key, res.String()).Inc()
	return res
}

func (i *Ingestor) handle(ch Channel, payload []byte) Result {
	var doc map[string]json.RawMessage
	if len(payload) == 0 {
		i.reject(ch, diagnostics.CodeMalformed, "empty payload", payload)
		return Rejected
	}
	if err := json.Unmarshal(payload, &doc); err != nil || doc == nil {
		i.reject(ch, diagnostics.CodeMalformed, "payload is not a JSON object", payload)
		return Rejected
	}

	switch ch.Kind {
	case ScalarFloat, ScalarInt:
		return i.scalar(ch, doc)
	case LightOverride:
		return i.light(ch, doc)
	case PanelOverride:
		return i.panel(ch, doc)
	}
	return Ignored
}

func (i *Ingestor) scalar(ch Channel, doc map[string]json.RawMessage) Result {
	raw, ok := doc[ch.Key]
	if !ok {
		return Ignored
	}
	v, err := number(raw)
	if err != nil {
		i.reject(ch, diagnostics.CodeType, fmt.Sprintf("%s: %v", ch.Key, err), raw)
		return Rejected
	}
	if ch.Kind == ScalarFloat {
		i.bus.SetFloat(ch.Field, v)
		i.log.Debug().Str("key", ch.Key).Float64("value", v).Msg("receive")
		return Applied
	}
	t := math.Trunc(v)
	if t < math.MinInt32 || t > math.MaxInt32 {
		i.reject(ch, diagnostics.CodeType, fmt.Sprintf("%s: %v out of range", ch.Key, v), raw)
		return Rejected
	}
	i.bus.SetInt(ch.Field, int64(t))
	i.log.Debug().Str("key", ch.Key).Int64("value", int64(t)).Msg("receive")
	return Applied
}

func (i *Ingestor) light(ch Channel, doc map[string]json.RawMessage) Result {
	rgb, haveRGB, res := i.rgbField(ch, doc, i.bus.LightOverride().Color)
	if res == Rejected {
		return Rejected
	}
	enabled, haveEnabled, res := i.enabledField(ch, doc)
	if res == Rejected {
		return Rejected
	}
	if !haveRGB && !haveEnabled {
		return Ignored
	}
	i.bus.UpdateLightOverride(func(o *statebus.Override) {
		if haveRGB {
			o.Color = rgb
			o.Enabled = !rgb.IsZero()
		}
		if haveEnabled {
			o.Enabled = enabled
		}
	})
	return Applied
}

func (i *Ingestor) panel(ch Channel, doc map[string]json.RawMessage) Result {
	cur := i.bus.PanelOverride()
	rgb, haveRGB, rgbRes := i.rgbField(ch, doc, cur.Color)
	mask, haveMask, maskRes := i.maskField(ch, doc, cur.Mask)
	enabled, haveEnabled, enRes := i.enabledField(ch, doc)
	if rgbRes == Rejected && maskRes == Rejected {
		return Rejected
	}
	if enRes == Rejected {
		return Rejected
	}
	if !haveRGB && !haveMask && !haveEnabled {
		if rgbRes == Rejected || maskRes == Rejected {
			return Rejected
		}
		return Ignored
	}
	i.bus.UpdatePanelOverride(func(p *statebus.PanelOverride) {
		if haveRGB {
			p.Color = rgb
			p.Enabled = !rgb.IsZero()
		}
		if haveMask {
			p.Mask = mask
		}
		if haveEnabled {
			p.Enabled = enabled
		}
	})
	return Applied
}

// rgbField decodes the "r,g,b" string. Short lists overwrite a prefix of
// cur, long lists are truncated to three components.
func (i *Ingestor) rgbField(ch Channel, doc map[string]json.RawMessage, cur statebus.RGB) (statebus.RGB, bool, Result) {
	raw, ok := doc[KeyRGB]
	if !ok {
		return cur, false, Ignored
	}
	s, err := str(raw)
	if err != nil {
		i.reject(ch, diagnostics.CodeType, "rgb: "+err.Error(), raw)
		return cur, false, Rejected
	}
	buf := []int{int(cur.R), int(cur.G), int(cur.B)}
	n, overflow, err := ParseIntList(buf, s)
	if err != nil {
		i.reject(ch, diagnostics.CodeToken, "rgb: "+err.Error(), raw)
		return cur, false, Rejected
	}
	if overflow {
		i.overflow(ch, KeyRGB, len(buf), s)
	}
	if n == 0 {
		return cur, false, Ignored
	}
	return statebus.RGB{R: clampByte(buf[0]), G: clampByte(buf[1]), B: clampByte(buf[2])}, true, Applied
}

func (i *Ingestor) maskField(ch Channel, doc map[string]json.RawMessage, cur [statebus.PanelPixels]bool) ([statebus.PanelPixels]bool, bool, Result) {
	raw, ok := doc[KeyFace]
	if !ok {
		return cur, false, Ignored
	}
	s, err := str(raw)
	if err != nil {
		i.reject(ch, diagnostics.CodeType, "face: "+err.Error(), raw)
		return cur, false, Rejected
	}
	buf := make([]int, statebus.PanelPixels)
	for k, on := range cur {
		if on {
			buf[k] = 1
		}
	}
	n, overflow, err := ParseIntList(buf, s)
	if err != nil {
		i.reject(ch, diagnostics.CodeToken, "face: "+err.Error(), raw)
		return cur, false, Rejected
	}
	for k := 0; k < n; k++ {
		if buf[k] != 0 && buf[k] != 1 {
			i.reject(ch, diagnostics.CodeMask, fmt.Sprintf("face: token %d is %d: %v", k, buf[k], ErrMaskToken), raw)
			return cur, false, Rejected
		}
	}
	if overflow {
		i.overflow(ch, KeyFace, len(buf), s)
	}
	if n == 0 {
		return cur, false, Ignored
	}
	var mask [statebus.PanelPixels]bool
	for k := range mask {
		mask[k] = buf[k] == 1
	}
	return mask, true, Applied
}

func (i *Ingestor) enabledField(ch Channel, doc map[string]json.RawMessage) (bool, bool, Result) {
	raw, ok := doc[KeyEnabled]
	if !ok {
		return false, false, Ignored
	}
	v, err := number(raw)
	if err != nil {
		i.reject(ch, diagnostics.CodeType, "enabled: "+err.Error(), raw)
		return false, false, Rejected
	}
	return v != 0, true, Applied
}

func (i *Ingestor) reject(ch Channel, code, summary string, payload []byte) {
	d := diagnostics.Diagnostic{
		Time:     i.now(),
		Severity: diagnostics.Warn,
		Code:     code,
		Summary:  summary,
		Topic:    ch.Topic,
		Detail:   truncate(string(payload), 256),
	}
	i.diag(d)
	if i.limit.Allow() {
		i.log.Warn().Str("topic", ch.Topic).Str("code", code).Str("data", d.Detail).Msg(summary)
	}
}

func (i *Ingestor) overflow(ch Channel, key string, capacity int, s string) {
	d := diagnostics.Diagnostic{
		Time:     i.now(),
		Severity: diagnostics.Warn,
		Code:     diagnostics.CodeOverflow,
		Summary:  fmt.Sprintf("%s: more than %d tokens, extra tokens dropped", key, capacity),
		Topic:    ch.Topic,
		Detail:   truncate(s, 256),
		Evidence: map[string]any{"capacity": capacity},
	}
	i.diag(d)
	if i.limit.Allow() {
		i.log.Warn().Str("topic", ch.Topic).Str("key", key).Int("capacity", capacity).Msg("array overflow truncated")
	}
}

// number accepts JSON numbers, and booleans as 0/1.
func number(raw json.RawMessage) (float64, error) {
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("expected a number, got %s", truncate(string(raw), 32))
}

func str(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected a string, got %s", truncate(string(raw), 32))
	}
	return s, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
