// Package workbook renders respondent tables as xlsx workbooks.
package workbook

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/xiaot623/panelsim/internal/domain"
	"github.com/xiaot623/panelsim/internal/survey"
)

// Sheet names.
const (
	SheetRespondentLevel = "respondent_level"
	SheetToplines        = "toplines"
	SheetVerbatims       = "verbatims"
)

// ContentType is the media type of the produced bytes.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ToplineQuestionHeader heads the first column of the toplines sheet.
const ToplineQuestionHeader = "question"

// Toplines holds answer proportions per categorical column.
type Toplines struct {
	// Values are the distinct answers across all columns, sorted.
	Values []string
	Rows   []ToplineRow
}

// ToplineRow holds the proportions of one column. Values that never occur
// in the column are absent from Shares and read as 0.
type ToplineRow struct {
	Column string
	Shares map[string]float64
}

// Share returns the rounded proportion of value in the row.
func (r ToplineRow) Share(value string) float64 {
	return r.Shares[value]
}

// Build renders t into workbook bytes. The respondent_level sheet is always
// present; quant research adds toplines, any other type adds verbatims.
// Auxiliary sheets without qualifying columns are left out.
func Build(t *survey.Table, researchType domain.ResearchType) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetRespondentLevel); err != nil {
		return nil, eris.Wrap(err, "rename default sheet")
	}
	if err := writeTable(f, SheetRespondentLevel, t.Columns, t); err != nil {
		return nil, err
	}

	if researchType == domain.ResearchTypeQuant {
		if top := ComputeToplines(t); len(top.Rows) > 0 {
			if err := writeToplines(f, top); err != nil {
				return nil, err
			}
		}
	} else if cols := VerbatimColumns(t); len(cols) > 0 {
		if _, err := f.NewSheet(SheetVerbatims); err != nil {
			return nil, eris.Wrap(err, "create verbatims sheet")
		}
		if err := writeTable(f, SheetVerbatims, cols, t); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, eris.Wrap(err, "encode workbook")
	}
	return buf.Bytes(), nil
}

// CategoricalColumns returns the columns eligible for toplines: not the id,
// not verbatim, and holding at least one text value.
func CategoricalColumns(t *survey.Table) []string {
	var cols []string
	for _, col := range t.Columns {
		if col == survey.RespondentIDColumn || survey.IsVerbatim(col) {
			continue
		}
		for _, row := range t.Rows {
			if _, ok := row[col].(string); ok {
				cols = append(cols, col)
				break
			}
		}
	}
	return cols
}

// VerbatimColumns returns the free-text columns in table order.
func VerbatimColumns(t *survey.Table) []string {
	var cols []string
	for _, col := range t.Columns {
		if survey.IsVerbatim(col) {
			cols = append(cols, col)
		}
	}
	return cols
}

// ComputeToplines tallies each categorical column's non-missing answers as
// proportions rounded to three decimals.
func ComputeToplines(t *survey.Table) Toplines {
	var top Toplines
	values := map[string]bool{}

	for _, col := range CategoricalColumns(t) {
		counts := map[string]int{}
		total := 0
		for _, row := range t.Rows {
			v, ok := row[col]
			if !ok || v == nil {
				continue
			}
			counts[formatValue(v)]++
			total++
		}
		shares := make(map[string]float64, len(counts))
		for value, n := range counts {
			shares[value] = round3(float64(n) / float64(total))
			values[value] = true
		}
		top.Rows = append(top.Rows, ToplineRow{Column: col, Shares: shares})
	}

	for v := range values {
		top.Values = append(top.Values, v)
	}
	sort.Strings(top.Values)
	return top
}

func writeToplines(f *excelize.File, top Toplines) error {
	if _, err := f.NewSheet(SheetToplines); err != nil {
		return eris.Wrap(err, "create toplines sheet")
	}
	header := make([]interface{}, 0, len(top.Values)+1)
	header = append(header, ToplineQuestionHeader)
	for _, v := range top.Values {
		header = append(header, v)
	}
	if err := f.SetSheetRow(SheetToplines, "A1", &header); err != nil {
		return eris.Wrap(err, "write toplines header")
	}

	for i, row := range top.Rows {
		line := make([]interface{}, 0, len(top.Values)+1)
		line = append(line, row.Column)
		for _, v := range top.Values {
			line = append(line, row.Share(v))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return eris.Wrap(err, "toplines cell")
		}
		if err := f.SetSheetRow(SheetToplines, cell, &line); err != nil {
			return eris.Wrapf(err, "write toplines row %q", row.Column)
		}
	}
	return nil
}

// writeTable writes a header of cols followed by one line per row. Missing
// values stay blank.
func writeTable(f *excelize.File, sheet string, cols []string, t *survey.Table) error {
	for c, col := range cols {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return eris.Wrap(err, "header cell")
		}
		if err := f.SetCellStr(sheet, cell, col); err != nil {
			return eris.Wrapf(err, "write %s header", sheet)
		}
	}

	for r, row := range t.Rows {
		for c, col := range cols {
			v, ok := row[col]
			if !ok || v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return eris.Wrap(err, "data cell")
			}
			if err := f.SetCellValue(sheet, cell, cellValue(v)); err != nil {
				return eris.Wrapf(err, "write %s!%s", sheet, cell)
			}
		}
	}
	return nil
}

// cellValue keeps scalars typed and flattens composite answers to text.
func cellValue(v interface{}) interface{} {
	switch v.(type) {
	case string, float64, bool:
		return v
	default:
		return formatValue(v)
	}
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
