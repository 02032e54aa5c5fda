package domain

// RunQueuedPayload is the payload for run_queued event.
type RunQueuedPayload struct {
	ResearchType  ResearchType `json:"research_type"`
	SampleSize    int          `json:"n_respondents"`
	QuestionCount int          `json:"question_count"`
}

// LLMCallStartedPayload is the payload for llm_call_started event.
type LLMCallStartedPayload struct {
	RequestID string `json:"request_id"`
	Model     string `json:"model"`
}

// LLMCallDonePayload is the payload for llm_call_done event.
type LLMCallDonePayload struct {
	RequestID        string `json:"request_id"`
	Model            string `json:"model"`
	LatencyMs        int64  `json:"latency_ms"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	TotalTokens      int    `json:"total_tokens,omitempty"`
	Error            string `json:"error,omitempty"`
}

// ResponseFallbackPayload is the payload for response_fallback event.
type ResponseFallbackPayload struct {
	Reason  string `json:"reason"`
	Records int    `json:"records"`
}

// ArtifactStoredPayload is the payload for artifact_stored event.
type ArtifactStoredPayload struct {
	Ref   string `json:"ref"`
	Bytes int    `json:"bytes"`
	Rows  int    `json:"rows"`
}

// RunFailedPayload is the payload for run_failed event.
type RunFailedPayload struct {
	Message string `json:"message"`
}
