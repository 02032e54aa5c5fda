package survey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xiaot623/panelsim/internal/domain"
)

// FallbackVerbatim answers every open question of a synthetic record.
const FallbackVerbatim = "Promising overall; would like clearer benefits and pricing context."

// FallbackOptions are drawn from for choice questions without options.
var FallbackOptions = []string{"Yes", "No", "Maybe"}

var (
	fenceOpen  = regexp.MustCompile("(?i)^```[a-z]*[ \t]*\\n?")
	fenceClose = regexp.MustCompile("\\n?[ \t]*```$")
)

// ParseResult is the outcome of reading a model reply. Records is always
// usable; Fallback reports that it was synthesized.
type ParseResult struct {
	Records  []domain.RespondentRecord
	Fallback bool
	Reason   string
}

// Parser reads model replies and synthesizes placeholder records when a
// reply cannot be used.
type Parser struct {
	intn func(n int) int
}

// NewParser returns a Parser drawing fallback choices uniformly at random.
func NewParser() *Parser {
	return &Parser{intn: rand.IntN}
}

// NewParserWithChooser returns a Parser that picks fallback options with
// intn, which must return a value in [0, n).
func NewParserWithChooser(intn func(n int) int) *Parser {
	return &Parser{intn: intn}
}

// Parse decodes raw as a JSON array of respondent records. On any failure
// it returns exactly n synthetic records instead of an error.
func (p *Parser) Parse(raw string, questions []domain.Question, n int) (result ParseResult) {
	defer func() {
		if r := recover(); r != nil {
			result = p.fallback(questions, n, fmt.Sprintf("panic while parsing: %v", r))
		}
	}()

	records, err := DecodeRecords(StripCodeFences(raw))
	if err != nil {
		return p.fallback(questions, n, err.Error())
	}
	return ParseResult{Records: records}
}

func (p *Parser) fallback(questions []domain.Question, n int, reason string) ParseResult {
	return ParseResult{
		Records:  p.Fallback(questions, n),
		Fallback: true,
		Reason:   reason,
	}
}

// Fallback synthesizes n records with ids R1..Rn.
func (p *Parser) Fallback(questions []domain.Question, n int) []domain.RespondentRecord {
	if n < 0 {
		n = 0
	}
	records := make([]domain.RespondentRecord, 0, n)
	for i := 1; i <= n; i++ {
		rec := domain.RespondentRecord{RespondentID: fmt.Sprintf("R%d", i)}
		for _, q := range questions {
			if q.Kind.IsChoice() {
				opts := q.OptionsOr(FallbackOptions)
				rec.Answers.Set(q.Identifier(), opts[p.intn(len(opts))])
				continue
			}
			rec.Answers.Set(q.Identifier(), FallbackVerbatim)
		}
		records = append(records, rec)
	}
	return records
}

// StripCodeFences removes a leading and a trailing markdown fence.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// DecodeRecords decodes text that must be a JSON array of objects shaped
// {respondent_id, answers}. A missing respondent_id decodes as "".
func DecodeRecords(text string) ([]domain.RespondentRecord, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, eris.Wrap(err, "reply is not a JSON array")
	}
	if items == nil {
		return nil, eris.New("reply is null")
	}

	records := make([]domain.RespondentRecord, 0, len(items))
	for i, item := range items {
		rec, err := decodeRecord(item)
		if err != nil {
			return nil, eris.Wrapf(err, "record %d", i)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRecord(item json.RawMessage) (domain.RespondentRecord, error) {
	var rec domain.RespondentRecord
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return rec, eris.Wrap(err, "not an object")
	}
	if fields == nil {
		return rec, eris.New("record is null")
	}

	if raw, ok := fields["respondent_id"]; ok {
		id, err := decodeRespondentID(raw)
		if err != nil {
			return rec, err
		}
		rec.RespondentID = id
	}
	if raw, ok := fields["answers"]; ok {
		if err := rec.Answers.UnmarshalJSON(raw); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// decodeRespondentID accepts a string or a number.
func decodeRespondentID(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", eris.Wrap(err, "decode respondent_id")
	}
	switch id := v.(type) {
	case nil:
		return "", nil
	case string:
		return id, nil
	case json.Number:
		return id.String(), nil
	default:
		return "", eris.Errorf("respondent_id has unsupported type %T", v)
	}
}
