package survey

import (
	"fmt"
	"strings"

	"github.com/xiaot623/panelsim/internal/domain"
)

const (
	// RespondentIDColumn is always the first column of a table.
	RespondentIDColumn = "respondent_id"
	// VerbatimSuffix marks columns holding free-text answers.
	VerbatimSuffix = "_verbatim"

	// verbatimMinTokens is exceeded by free-text answers.
	verbatimMinTokens = 3
)

// Row maps column names to cell values. Absent columns are empty cells.
type Row map[string]interface{}

// Table is the flat respondent-level dataset. Columns are the union of all
// row keys in first-seen order, with RespondentIDColumn first.
type Table struct {
	Columns []string
	Rows    []Row
}

// Value returns the cell at row i, column col.
func (t *Table) Value(i int, col string) (interface{}, bool) {
	if i < 0 || i >= len(t.Rows) {
		return nil, false
	}
	v, ok := t.Rows[i][col]
	return v, ok
}

// Tabulate flattens records into one row each.
func Tabulate(records []domain.RespondentRecord) *Table {
	t := &Table{
		Columns: []string{RespondentIDColumn},
		Rows:    make([]Row, 0, len(records)),
	}
	seen := map[string]bool{RespondentIDColumn: true}

	for i, rec := range records {
		id := rec.RespondentID
		if id == "" {
			id = fmt.Sprintf("R%d", i+1)
		}
		row := Row{RespondentIDColumn: id}
		for _, key := range rec.Answers.Keys() {
			v, _ := rec.Answers.Get(key)
			col := ColumnName(key, v)
			if col == RespondentIDColumn {
				continue
			}
			row[col] = v
			if !seen[col] {
				seen[col] = true
				t.Columns = append(t.Columns, col)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// ColumnName returns key with VerbatimSuffix when v is text of more than
// three whitespace-separated tokens, and key unchanged otherwise.
func ColumnName(key string, v interface{}) string {
	if s, ok := v.(string); ok && len(strings.Fields(s)) > verbatimMinTokens {
		return key + VerbatimSuffix
	}
	return key
}

// IsVerbatim reports whether col holds free-text answers.
func IsVerbatim(col string) bool {
	return strings.HasSuffix(col, VerbatimSuffix)
}
