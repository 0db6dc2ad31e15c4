package model

// Prediction is the structured result the SUT emits for one task. It
// is transient: produced per invocation, scored, and never persisted
// raw beyond the run directory.
type Prediction struct {
	ID        string     `json:"id,omitempty"`
	Answer    Answer     `json:"answer"`
	Citations []Citation `json:"citations,omitempty"`
	Timing    Timing     `json:"timing"`
	Tokens    Tokens     `json:"tokens"`

	// Error is set for degraded predictions (e.g. "timeout"); Raw
	// retains verbatim output that failed to parse as JSON.
	Error string `json:"error,omitempty"`
	Raw   string `json:"raw,omitempty"`
}

// Answer is the SUT's localization claim.
type Answer struct {
	Paths      []string    `json:"paths,omitempty"`
	LineRanges []LineRange `json:"line_ranges,omitempty"`
	Quotes     []string    `json:"quotes,omitempty"`
	Rationale  string      `json:"rationale,omitempty"`
}

// Citation grounds a claim in a specific span of a file.
type Citation struct {
	Path  string `json:"path"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Timing captures SUT latency as observed or self-reported.
type Timing struct {
	LatencyMs int64  `json:"latency_ms"`
	StartedAt string `json:"started_at,omitempty"`
	EndedAt   string `json:"ended_at,omitempty"`
}

// Tokens counts the SUT's token consumption for one task.
type Tokens struct {
	In      int64 `json:"in"`
	Out     int64 `json:"out"`
	Context int64 `json:"context"`
}

// Normalize fills missing timing with the caller-observed latency.
// Absent token fields already decode to zero, which is the documented
// safe default.
func (p *Prediction) Normalize(observedLatencyMs int64) {
	if p.Timing.LatencyMs == 0 {
		p.Timing.LatencyMs = observedLatencyMs
	}
}
