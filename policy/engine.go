// Package policy evaluates run admission rules written in Rego.
package policy

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rotisserie/eris"

	"github.com/xiaot623/panelsim/internal/domain"
)

// Query is the rule every admission policy must define: a set of
// violation messages, empty when the request is admissible.
const Query = "data.run_admission.violations"

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares the given policy module.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query(Query),
		rego.Module("run_admission.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "failed to prepare rego")
	}
	return &Engine{query: query}, nil
}

// Load prepares the policy at path, or DefaultPolicy when path is empty.
func Load(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read policy %s", path)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate returns the sorted violations for input.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) ([]string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, eris.Wrap(err, "failed to evaluate policy")
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	set, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, eris.Errorf("policy returned %T, want a set of strings", results[0].Expressions[0].Value)
	}
	violations := make([]string, 0, len(set))
	for _, v := range set {
		violations = append(violations, fmt.Sprint(v))
	}
	sort.Strings(violations)
	return violations, nil
}

// AdmitRun checks req against the policy. It returns a
// *domain.ValidationError when the policy reports violations.
func (e *Engine) AdmitRun(ctx context.Context, req domain.RunRequest, maxRespondents int) error {
	violations, err := e.Evaluate(ctx, RunInput(req, maxRespondents))
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return &domain.ValidationError{Violations: violations}
	}
	return nil
}

// RunInput builds the policy input document for req.
func RunInput(req domain.RunRequest, maxRespondents int) map[string]interface{} {
	questions := make([]interface{}, 0, len(req.Questions))
	for _, q := range req.Questions {
		options := make([]interface{}, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, o)
		}
		questions = append(questions, map[string]interface{}{
			"id":      q.Identifier(),
			"text":    q.Text,
			"type":    string(q.Kind),
			"options": options,
		})
	}
	return map[string]interface{}{
		"research_type":   string(req.ResearchType),
		"segment_text":    req.SegmentText,
		"sample_size":     req.SampleSize,
		"max_respondents": maxRespondents,
		"questions":       questions,
	}
}

// DefaultPolicy enforces the built-in brief constraints.
const DefaultPolicy = `
package run_admission

import rego.v1

research_types := {"quant", "qual", "creative"}

question_types := {"single", "multi", "open"}

violations contains msg if {
	not input.research_type in research_types
	msg := sprintf("research_type must be one of creative, qual, quant (got %v)", [input.research_type])
}

violations contains msg if {
	input.sample_size < 1
	msg := sprintf("n_respondents must be at least 1 (got %v)", [input.sample_size])
}

violations contains msg if {
	input.sample_size > input.max_respondents
	msg := sprintf("n_respondents must be at most %v (got %v)", [input.max_respondents, input.sample_size])
}

violations contains msg if {
	some i, q in input.questions
	trim_space(q.id) == ""
	msg := sprintf("questions[%v].q is required", [i])
}

violations contains msg if {
	some i, q in input.questions
	not q.type in question_types
	msg := sprintf("questions[%v].type must be one of multi, open, single (got %v)", [i, q.type])
}
`
