package model

// Workflow identifies which evaluation workflow a task belongs to.
type Workflow string

const (
	WorkflowLocalization Workflow = "w1_localization"
	WorkflowChangeImpact Workflow = "w2_change_impact"
)

// Task is a single evaluation scenario loaded from a fixture file.
// Tasks are immutable once loaded and unique by ID within a workflow.
type Task struct {
	ID                 string             `json:"id" yaml:"id"`
	Workflow           Workflow           `json:"workflow" yaml:"workflow"`
	Inputs             TaskInputs         `json:"inputs" yaml:"inputs"`
	Constraints        TaskConstraints    `json:"constraints" yaml:"constraints"`
	AcceptanceCriteria AcceptanceCriteria `json:"acceptance_criteria" yaml:"acceptance_criteria"`
	Tags               []string           `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// TaskInputs is the stimulus handed to the subject under test.
type TaskInputs struct {
	Symbol string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Query  string `json:"query,omitempty" yaml:"query,omitempty"`
}

// TaskConstraints restrict how the SUT may answer.
type TaskConstraints struct {
	MustCite    bool     `json:"must_cite" yaml:"must_cite"`
	ExcludeDirs []string `json:"exclude_dirs,omitempty" yaml:"exclude_dirs,omitempty"`
}

// AcceptanceCriteria describe the expected answer shape for a task.
type AcceptanceCriteria struct {
	Paths      []string    `json:"paths,omitempty" yaml:"paths,omitempty"`
	LineRanges []LineRange `json:"line_ranges,omitempty" yaml:"line_ranges,omitempty"`
	Checklist  []string    `json:"checklist,omitempty" yaml:"checklist,omitempty"`
}
