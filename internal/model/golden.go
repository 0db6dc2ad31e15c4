package model

// Golden is the human-curated ground truth for a task, loaded from
// JSONL fixtures and keyed by TaskID. At most one golden exists per
// task id within a workflow.
type Golden struct {
	TaskID          string       `json:"task_id"`
	Paths           []string     `json:"paths,omitempty"`
	LineRanges      []LineRange  `json:"line_ranges,omitempty"`
	Quotes          []string     `json:"quotes,omitempty"`
	Symbol          string       `json:"symbol,omitempty"`
	Checklist       []string     `json:"checklist,omitempty"`
	RequiredAnchors []Anchor     `json:"required_anchors,omitempty"`
	ExampleQuotes   []QuoteRange `json:"example_quotes,omitempty"`
	ForbiddenClaims []string     `json:"forbidden_claims,omitempty"`
	Provenance      Provenance   `json:"provenance"`
	Notes           string       `json:"notes,omitempty"`
}

// Anchor is a (path, symbol) pair a change-impact answer must cite and
// ground in its own evidence.
type Anchor struct {
	Path   string `json:"path"`
	Symbol string `json:"symbol"`
}

// QuoteRange locates an example quote inside a file.
type QuoteRange struct {
	Path  string `json:"path"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Provenance records where a golden came from. For generated variants
// FromTask and Method link back to the source golden.
type Provenance struct {
	Repo     string `json:"repo,omitempty"`
	Commit   string `json:"commit,omitempty"`
	FromTask string `json:"from_task,omitempty"`
	Method   string `json:"method,omitempty"`
}
