package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/xiaot623/panelsim/internal/config"
	"github.com/xiaot623/panelsim/internal/domain"
	"github.com/xiaot623/panelsim/internal/workbook"
)

func setupExport(t *testing.T, brief string) (dir, briefPath string) {
	t.Helper()
	cfg = config.Default()
	logger = zap.NewNop()

	dir = t.TempDir()
	briefPath = filepath.Join(dir, "brief.json")
	require.NoError(t, os.WriteFile(briefPath, []byte(brief), 0o644))
	return dir, briefPath
}

func TestRunExportFromReply(t *testing.T) {
	dir, briefPath := setupExport(t, `{
		"research_type": "qual",
		"questions": [
			{"id": "q1", "q": "Buy?", "type": "single", "options": ["Yes", "No"]},
			{"id": "q2", "q": "Why?", "type": "open"}
		],
		"n_respondents": 2
	}`)
	replyPath := filepath.Join(dir, "reply.txt")
	require.NoError(t, os.WriteFile(replyPath, []byte("```json\n"+`[
		{"respondent_id": "R1", "answers": {"q1": "Yes", "q2": "It looks useful for busy mornings"}},
		{"respondent_id": "R2", "answers": {"q1": "No", "q2": "Too pricey"}}
	]`+"\n```"), 0o644))
	out := filepath.Join(dir, "out.xlsx")

	require.NoError(t, runExport(context.Background(), briefPath, replyPath, out, nil))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{workbook.SheetRespondentLevel, workbook.SheetVerbatims}, f.GetSheetList())

	rows, err := f.GetRows(workbook.SheetRespondentLevel)
	require.NoError(t, err)
	assert.Equal(t, []string{"respondent_id", "q1", "q2_verbatim", "q2"}, rows[0])
	assert.Len(t, rows, 3)
}

func TestRunExportFallbackFromStdin(t *testing.T) {
	dir, briefPath := setupExport(t, `{"research_type":"quant","questions":[{"id":"q1","q":"Buy?","type":"single"}],"n_respondents":4}`)
	out := filepath.Join(dir, "out.xlsx")

	require.NoError(t, runExport(context.Background(), briefPath, "-", out, strings.NewReader("Sorry, I cannot help with that.")))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(workbook.SheetRespondentLevel)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "R4", rows[4][0])
	assert.Contains(t, []string{"Yes", "No", "Maybe"}, rows[4][1])

	top, err := f.GetRows(workbook.SheetToplines)
	require.NoError(t, err)
	assert.Equal(t, "q1", top[1][0])
}

func TestRunExportRejectsInvalidBrief(t *testing.T) {
	dir, briefPath := setupExport(t, `{"research_type":"poll"}`)

	err := runExport(context.Background(), briefPath, "-", filepath.Join(dir, "out.xlsx"), strings.NewReader("[]"))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	_, statErr := os.Stat(filepath.Join(dir, "out.xlsx"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunExportMissingFiles(t *testing.T) {
	dir, briefPath := setupExport(t, `{}`)

	assert.Error(t, runExport(context.Background(), filepath.Join(dir, "none.json"), "-", filepath.Join(dir, "o.xlsx"), strings.NewReader("")))
	assert.Error(t, runExport(context.Background(), briefPath, filepath.Join(dir, "none.txt"), filepath.Join(dir, "o.xlsx"), nil))
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	_, err = newLogger("chatty")
	assert.Error(t, err)
}
