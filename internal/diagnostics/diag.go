package diagnostics

import "time"

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Codes emitted by the update path.
const (
	CodeMalformed = "INGEST.MALFORMED"
	CodeType      = "INGEST.TYPE"
	CodeOverflow  = "INGEST.OVERFLOW"
	CodeMask      = "INGEST.MASK"
	CodeToken     = "INGEST.TOKEN"
	CodePush      = "RENDER.PUSH"
)

type Diagnostic struct {
	Time     time.Time      `json:"time"`
	Severity Severity       `json:"severity"`
	Code     string         `json:"code"`
	Summary  string         `json:"summary"`
	Detail   string         `json:"detail,omitempty"`
	Topic    string         `json:"topic,omitempty"`
	Evidence map[string]any `json:"evidence,omitempty"`
}

// Sink receives diagnostics. Implementations must not block.
type Sink func(Diagnostic)

// Discard drops every diagnostic.
func Discard(Diagnostic) {}
