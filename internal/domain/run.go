package domain

import (
	"encoding/json"
	"time"
)

// Run represents a single execution of the respondent simulation pipeline.
type Run struct {
	RunID        string       `json:"run_id"`
	Status       RunStatus    `json:"status"`
	ResearchType ResearchType `json:"research_type"`
	SegmentText  string       `json:"segment_text"`
	Questions    []Question   `json:"questions"`
	SampleSize   int          `json:"n_respondents"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	ArtifactRef  string       `json:"artifact_ref,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// Request returns the brief the run was submitted with.
func (r *Run) Request() RunRequest {
	return RunRequest{
		ResearchType: r.ResearchType,
		SegmentText:  r.SegmentText,
		Questions:    r.Questions,
		SampleSize:   r.SampleSize,
	}
}

// Downloadable reports whether the run has a stored artifact.
func (r *Run) Downloadable() bool {
	return r.Status == RunStatusSucceeded && r.ArtifactRef != ""
}

// Event represents a lifecycle trace event of a run.
type Event struct {
	EventID string          `json:"event_id"`
	RunID   string          `json:"run_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
