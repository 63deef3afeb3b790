package export

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormats(t *testing.T) {
	got, err := ParseFormats("md, PDF,word,docx")
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatMD, FormatPDF, FormatDOCX}, got)

	_, err = ParseFormats("md,html")
	assert.EqualError(t, err, "unknown format: html")

	_, err = ParseFormats(" , ")
	assert.Error(t, err)
}

func TestExporter_Write(t *testing.T) {
	e, dir := newTestExporter(t, &fakeRenderer{err: errors.New("no chrome")})

	paths, err := e.Write(context.Background(), "# r", "report", AllFormats...)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.md"), unescape(t, paths[FormatMD]))
	assert.Equal(t, filepath.Join(dir, "report.docx"), unescape(t, paths[FormatDOCX]))
	// pdf 失败不影响其他格式
	require.Contains(t, paths, FormatPDF)
	assert.Empty(t, paths[FormatPDF])
	assert.ElementsMatch(t, []string{"report.md", "report.docx"}, listDir(t, dir))
}

func TestExporter_WriteInvalidName(t *testing.T) {
	e, _ := newTestExporter(t, &fakeRenderer{})

	_, err := e.Write(context.Background(), "# r", "../r", FormatPDF)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestFileName(t *testing.T) {
	now := time.Unix(1700000000, 0)

	assert.Equal(t, "task_1700000000_what_is_Go-", FileName("what is Go?", now))
	assert.Equal(t, "task_1700000000_a-b_c", FileName("a/b c", now))
	assert.Equal(t, "task_1700000000__-etc-passwd", FileName("../etc/passwd", now))
	assert.NotContains(t, FileName("....//x", now), "..")
	assert.Equal(t, "task_1700000000_ab", FileName("a\x00b", now))
}
