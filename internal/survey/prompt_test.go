package survey

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/panelsim/internal/domain"
)

func TestQuestionSchema(t *testing.T) {
	questions := []domain.Question{
		{ID: "q1", Text: "Do you drink coffee?", Kind: domain.QuestionKindSingle, Options: []string{"Daily", "Never"}},
		{ID: "q2", Text: "Which brands?", Kind: domain.QuestionKindMulti},
		{Text: "Why?", Kind: domain.QuestionKindOpen, Prompt: "Explain in two sentences"},
	}

	lines := strings.Split(QuestionSchema(questions), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `- id: "q1", type: "single", options: ["Daily","Never"], prompt: "Do you drink coffee?"`, lines[0])
	assert.Equal(t, `- id: "q2", type: "multi", options: ["Yes","No"], prompt: "Which brands?"`, lines[1])
	assert.Equal(t, `- id: "Why?", type: "open", prompt: "Explain in two sentences"`, lines[2])
}

func TestFormatInstructionExamples(t *testing.T) {
	questions := []domain.Question{
		{ID: "q1", Kind: domain.QuestionKindSingle, Options: []string{"Daily", "Never"}},
		{ID: "q2", Kind: domain.QuestionKindMulti},
		{ID: "q3", Kind: domain.QuestionKindOpen},
	}

	format := FormatInstruction(questions)
	assert.Contains(t, format, "Return ONLY valid JSON, no code fences")
	assert.Contains(t, format, `{"respondent_id":"R1","answers":{"q1":"Daily","q2":"Yes","q3":"Short verbatim answer here"}}`)

	// The first example object must itself be valid JSON.
	start := strings.Index(format, `{"respondent_id":"R1"`)
	end := strings.Index(format, `}}, `) + 2
	var example struct {
		RespondentID string            `json:"respondent_id"`
		Answers      map[string]string `json:"answers"`
	}
	require.NoError(t, json.Unmarshal([]byte(format[start:end]), &example))
	assert.Equal(t, "R1", example.RespondentID)
	assert.Len(t, example.Answers, 3)
}

func TestBuildPromptWithoutQuestions(t *testing.T) {
	p := BuildPrompt(domain.RunRequest{ResearchType: domain.ResearchTypeQual, SampleSize: 4})

	assert.Empty(t, p.Schema)
	assert.Contains(t, p.Format, `{"respondent_id":"R1","answers":{}}`)
	assert.Contains(t, p.User, "Sample size: 4")
	assert.Contains(t, p.User, "Research type: qual")
	assert.Equal(t, SystemInstruction, p.System)
}

func TestBuildPromptKeepsOptionTextUnescaped(t *testing.T) {
	p := BuildPrompt(domain.RunRequest{
		ResearchType: domain.ResearchTypeQuant,
		SegmentText:  "  Urban millennials \n",
		SampleSize:   3,
		Questions: []domain.Question{
			{ID: "q1", Kind: domain.QuestionKindSingle, Options: []string{"R&D", "<none>"}},
		},
	})

	assert.Contains(t, p.Schema, `["R&D","<none>"]`)
	assert.Contains(t, p.User, "Target audience (persona description):\nUrban millennials\n")
}
