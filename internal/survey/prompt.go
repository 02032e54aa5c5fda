// Package survey turns a research brief into model instructions and the
// model's reply into a flat respondent table.
package survey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xiaot623/panelsim/internal/domain"
)

// SystemInstruction sets up the model as a respondent panel.
const SystemInstruction = "You are a research panel simulator that roleplays as human respondents.\n" +
	"Goal: Generate realistic, varied answers from a target audience.\n" +
	"Vary tone and word choice, avoid repetition, keep answers consistent with persona.\n" +
	"For single-choice questions, ONLY use the listed options exactly.\n" +
	"For open-ends, write concise, human-sounding verbatims (2-4 sentences when asked)."

// ExampleVerbatim stands in for an open answer in the format instruction.
const ExampleVerbatim = "Short verbatim answer here"

// PromptOptions are shown for choice questions submitted without options.
var PromptOptions = []string{"Yes", "No"}

// Prompt holds the texts sent to the generation service for one run.
type Prompt struct {
	System string
	User   string
	// Schema lists the questions one per line.
	Schema string
	// Format is the strict output-format instruction.
	Format string
}

// BuildPrompt renders the instructions for a brief.
func BuildPrompt(req domain.RunRequest) Prompt {
	schema := QuestionSchema(req.Questions)
	format := FormatInstruction(req.Questions)

	var b strings.Builder
	b.WriteString("Target audience (persona description):\n")
	b.WriteString(strings.TrimSpace(req.SegmentText))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Research type: %s\n", req.ResearchType)
	fmt.Fprintf(&b, "Sample size: %d\n\n", req.SampleSize)
	b.WriteString("Questions (schema-like):\n")
	b.WriteString(schema)
	b.WriteString("\n\n")
	b.WriteString(format)
	b.WriteString("\n")

	return Prompt{
		System: SystemInstruction,
		User:   b.String(),
		Schema: schema,
		Format: format,
	}
}

// QuestionSchema lists each question's identifier, kind, options and
// prompt text. An empty question list yields an empty schema.
func QuestionSchema(questions []domain.Question) string {
	lines := make([]string, 0, len(questions))
	for _, q := range questions {
		if q.Kind.IsChoice() {
			lines = append(lines, fmt.Sprintf("- id: %s, type: %s, options: %s, prompt: %s",
				quote(q.Identifier()), quote(string(q.Kind)), quoteList(q.OptionsOr(PromptOptions)), quote(q.PromptText())))
			continue
		}
		lines = append(lines, fmt.Sprintf("- id: %s, type: %s, prompt: %s",
			quote(q.Identifier()), quote(string(domain.QuestionKindOpen)), quote(q.PromptText())))
	}
	return strings.Join(lines, "\n")
}

// FormatInstruction demands a bare JSON array of respondent objects and
// shows one example value per question.
func FormatInstruction(questions []domain.Question) string {
	examples := make([]string, 0, len(questions))
	for _, q := range questions {
		example := ExampleVerbatim
		if q.Kind.IsChoice() {
			example = q.OptionsOr(PromptOptions)[0]
		}
		examples = append(examples, quote(q.Identifier())+":"+quote(example))
	}
	return "Return ONLY valid JSON, no code fences, no extra prose, matching: " +
		`[{"respondent_id":"R1","answers":{` + strings.Join(examples, ",") + `}}, ` +
		`{"respondent_id":"R2","answers":{...}}, ...]`
}

func quote(s string) string {
	return marshalText(s, `""`)
}

func quoteList(items []string) string {
	return marshalText(items, "[]")
}

// marshalText encodes v as JSON without HTML escaping.
func marshalText(v interface{}, def string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return def
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
