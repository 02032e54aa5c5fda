package survey

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/panelsim/internal/domain"
)

var testQuestions = []domain.Question{
	{ID: "q1", Kind: domain.QuestionKindSingle, Options: []string{"Yes", "No"}},
	{ID: "q2", Kind: domain.QuestionKindMulti},
	{ID: "q3", Kind: domain.QuestionKindOpen},
}

func TestStripCodeFences(t *testing.T) {
	tests := map[string]string{
		"```json\n[]\n```":    "[]",
		"```JSON\n[1]```":     "[1]",
		"  ```\n[2]\n```  \n": "[2]",
		"[3]":                 "[3]",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripCodeFences(in), "input %q", in)
	}
}

func TestParseValidReply(t *testing.T) {
	raw := "```json\n" + `[
		{"respondent_id": "R1", "answers": {"q1": "Yes", "q3": "I like it a lot honestly"}},
		{"respondent_id": 7, "answers": {"q1": "No"}},
		{"answers": null}
	]` + "\n```"

	res := NewParser().Parse(raw, testQuestions, 3)
	require.False(t, res.Fallback, res.Reason)
	require.Len(t, res.Records, 3)

	assert.Equal(t, "R1", res.Records[0].RespondentID)
	assert.Equal(t, []string{"q1", "q3"}, res.Records[0].Answers.Keys())
	assert.Equal(t, "7", res.Records[1].RespondentID)
	assert.Equal(t, "", res.Records[2].RespondentID)
	assert.Zero(t, res.Records[2].Answers.Len())
}

func TestParseMalformedRepliesFallBack(t *testing.T) {
	replies := map[string]string{
		"not json":        "Sure! Here are your respondents.",
		"object":          `{"respondent_id": "R1", "answers": {}}`,
		"truncated":       `[{"respondent_id": "R1", "answers": {"q1": "Ye`,
		"null":            `null`,
		"scalar items":    `["R1", "R2"]`,
		"answers as list": `[{"respondent_id": "R1", "answers": ["Yes"]}]`,
		"bad id":          `[{"respondent_id": {"x": 1}, "answers": {}}]`,
		"empty":           ``,
	}

	for name, raw := range replies {
		t.Run(name, func(t *testing.T) {
			res := NewParser().Parse(raw, testQuestions, 5)
			require.True(t, res.Fallback)
			assert.NotEmpty(t, res.Reason)
			require.Len(t, res.Records, 5)
		})
	}
}

func TestFallbackShape(t *testing.T) {
	calls := 0
	p := NewParserWithChooser(func(n int) int {
		calls++
		return n - 1
	})

	records := p.Fallback(testQuestions, 3)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, fmt.Sprintf("R%d", i+1), rec.RespondentID)
		assert.Equal(t, []string{"q1", "q2", "q3"}, rec.Answers.Keys())

		q1, _ := rec.Answers.Get("q1")
		assert.Equal(t, "No", q1)
		q2, _ := rec.Answers.Get("q2")
		assert.Equal(t, "Maybe", q2)
		q3, _ := rec.Answers.Get("q3")
		assert.Equal(t, FallbackVerbatim, q3)
	}
	assert.Equal(t, 6, calls)
}

func TestFallbackRandomChoicesStayWithinOptions(t *testing.T) {
	records := NewParser().Fallback(testQuestions, 50)
	for _, rec := range records {
		q1, _ := rec.Answers.Get("q1")
		assert.Contains(t, []string{"Yes", "No"}, q1)
		q2, _ := rec.Answers.Get("q2")
		assert.Contains(t, FallbackOptions, q2)
	}
}

func TestFallbackWithoutQuestions(t *testing.T) {
	records := NewParser().Fallback(nil, 2)
	require.Len(t, records, 2)
	assert.Zero(t, records[0].Answers.Len())
}

func TestParseRecoversFromChooserPanic(t *testing.T) {
	calls := 0
	p := NewParserWithChooser(func(n int) int {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return 0
	})

	res := p.Parse("garbage", testQuestions[:1], 2)
	require.True(t, res.Fallback)
	assert.Contains(t, res.Reason, "panic")
	assert.Len(t, res.Records, 2)
}
