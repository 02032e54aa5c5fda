package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Question is one item of a research brief.
type Question struct {
	ID      string       `json:"id,omitempty"`
	Text    string       `json:"q"`
	Kind    QuestionKind `json:"type"`
	Options []string     `json:"options,omitempty"`
	Prompt  string       `json:"prompt,omitempty"`
}

// Identifier returns the answer key of the question. Older clients send no
// id and key answers by the question text.
func (q Question) Identifier() string {
	if id := strings.TrimSpace(q.ID); id != "" {
		return id
	}
	return q.Text
}

// PromptText returns the wording shown to the simulated respondent.
func (q Question) PromptText() string {
	if q.Prompt != "" {
		return q.Prompt
	}
	return q.Text
}

// OptionsOr returns the question's options, or def when none were supplied.
func (q Question) OptionsOr(def []string) []string {
	if len(q.Options) == 0 {
		return def
	}
	return q.Options
}

// MaxSampleSize is the largest panel a run may request.
const MaxSampleSize = 500

// RunRequest fully determines a run's behaviour.
type RunRequest struct {
	ResearchType ResearchType `json:"research_type"`
	SegmentText  string       `json:"segment_text"`
	Questions    []Question   `json:"questions"`
	SampleSize   int          `json:"n_respondents"`
}

// CreateRunRequest is the POST /api/runs body. Pointer fields distinguish
// absent values, which take defaults, from explicit ones, which are validated.
type CreateRunRequest struct {
	ResearchType *string    `json:"research_type"`
	SegmentText  string     `json:"segment_text"`
	Questions    []Question `json:"questions"`
	NRespondents *int       `json:"n_respondents"`

	nulls []string
}

// defaultedFields may be omitted from a request body but not sent as null.
var defaultedFields = []string{"research_type", "segment_text", "questions", "n_respondents"}

// UnmarshalJSON decodes the body and remembers which defaulted fields were
// explicitly null.
func (r *CreateRunRequest) UnmarshalJSON(data []byte) error {
	type plain CreateRunRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = CreateRunRequest(p)
	r.nulls = nil
	for _, field := range defaultedFields {
		if v, ok := raw[field]; ok && bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			r.nulls = append(r.nulls, field)
		}
	}
	return nil
}

// NullViolations lists the defaulted fields that were sent as null.
func (r CreateRunRequest) NullViolations() []string {
	out := make([]string, 0, len(r.nulls))
	for _, field := range r.nulls {
		out = append(out, field+" must not be null")
	}
	return out
}

// ToRunRequest applies defaults for absent fields.
func (r CreateRunRequest) ToRunRequest(defaultRespondents int) RunRequest {
	req := RunRequest{
		ResearchType: ResearchTypeQual,
		SegmentText:  r.SegmentText,
		Questions:    r.Questions,
		SampleSize:   defaultRespondents,
	}
	if r.ResearchType != nil {
		req.ResearchType = ResearchType(*r.ResearchType)
	}
	if r.NRespondents != nil {
		req.SampleSize = *r.NRespondents
	}
	if req.Questions == nil {
		req.Questions = []Question{}
	}
	return req
}

// CreateRunResponse is returned as soon as a run is queued.
type CreateRunResponse struct {
	RunID       string    `json:"run_id"`
	Status      RunStatus `json:"status"`
	DownloadURL string    `json:"download_url"`
}

// RunStatusResponse is the polled view of a run.
type RunStatusResponse struct {
	RunID        string     `json:"run_id"`
	Status       RunStatus  `json:"status"`
	DownloadURL  *string    `json:"download_url"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// RunPreview summarizes a finished run without opening its workbook.
type RunPreview struct {
	RunID        string       `json:"run_id"`
	ResearchType ResearchType `json:"research_type"`
	SampleSize   int          `json:"sample_size"`
	Questions    []Question   `json:"questions"`
	Status       RunStatus    `json:"status"`
}

// RespondentRecord is one simulated survey-taker's answers.
type RespondentRecord struct {
	RespondentID string  `json:"respondent_id"`
	Answers      Answers `json:"answers"`
}

// Answers maps question identifiers to values and remembers the order in
// which keys were first seen.
type Answers struct {
	keys   []string
	values map[string]interface{}
}

// Set stores v under key. A repeated key keeps its first position and
// takes the latest value.
func (a *Answers) Set(key string, v interface{}) {
	if a.values == nil {
		a.values = make(map[string]interface{})
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = v
}

// Get returns the value stored under key.
func (a Answers) Get(key string) (interface{}, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Keys returns the keys in first-seen order.
func (a Answers) Keys() []string {
	return a.keys
}

// Len returns the number of distinct keys.
func (a Answers) Len() int {
	return len(a.keys)
}

// MarshalJSON encodes the answers as an object in key order.
func (a Answers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(a.values[k])
		if err != nil {
			return nil, eris.Wrapf(err, "marshal answer %q", k)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, preserving key order. null decodes to
// an empty set.
func (a *Answers) UnmarshalJSON(data []byte) error {
	*a = Answers{}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "read answers")
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return eris.Errorf("answers must be an object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "read answer key")
		}
		key, _ := keyTok.(string)
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return eris.Wrapf(err, "decode answer %q", key)
		}
		a.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "close answers")
	}
	return nil
}
