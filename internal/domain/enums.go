// Package domain defines the core domain models for panelsim.
package domain

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether no further transition may leave the status.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// ResearchType selects the auxiliary sheet of the exported workbook.
type ResearchType string

const (
	ResearchTypeQuant    ResearchType = "quant"
	ResearchTypeQual     ResearchType = "qual"
	ResearchTypeCreative ResearchType = "creative"
)

// QuestionKind represents the answer shape of a question.
type QuestionKind string

const (
	QuestionKindSingle QuestionKind = "single"
	QuestionKindMulti  QuestionKind = "multi"
	QuestionKindOpen   QuestionKind = "open"
)

// IsChoice reports whether answers are picked from a list of options.
func (k QuestionKind) IsChoice() bool {
	return k == QuestionKindSingle || k == QuestionKindMulti
}

// EventType represents the type of a run event.
type EventType string

const (
	EventTypeRunQueued        EventType = "run_queued"
	EventTypeRunStarted       EventType = "run_started"
	EventTypeLLMCallStarted   EventType = "llm_call_started"
	EventTypeLLMCallDone      EventType = "llm_call_done"
	EventTypeResponseFallback EventType = "response_fallback"
	EventTypeArtifactStored   EventType = "artifact_stored"
	EventTypeRunSucceeded     EventType = "run_succeeded"
	EventTypeRunFailed        EventType = "run_failed"
)
