package storage

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
	dm "github.com/iWorld-y/research_report/app/researcher/pkg/model"
)

func TestPaginate(t *testing.T) {
	tests := []struct {
		page, size          int
		wantLimit, wantOffs int
	}{
		{1, 10, 10, 0},
		{3, 20, 20, 40},
		{0, 0, 10, 0},
		{-1, 5, 5, 0},
		{2, 500, 100, 100},
	}
	for _, tt := range tests {
		limit, offset := Paginate(tt.page, tt.size)
		assert.Equal(t, tt.wantLimit, limit, "page=%d size=%d", tt.page, tt.size)
		assert.Equal(t, tt.wantOffs, offset, "page=%d size=%d", tt.page, tt.size)
	}
}

func TestDSN(t *testing.T) {
	got := DSN(config.DBConfig{Host: "db", User: "u", Password: "p", Name: "reports"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=reports sslmode=disable", got)

	got = DSN(config.DBConfig{Host: "db", Port: 6543, User: "u", Password: "p", Name: "reports"})
	assert.Contains(t, got, "port=6543")
}

// 需要可用的 PostgreSQL，通过 RESEARCH_TEST_PG_HOST 等环境变量开启
func testStorage(t *testing.T) *Storage {
	t.Helper()
	host := os.Getenv("RESEARCH_TEST_PG_HOST")
	if host == "" {
		t.Skip("RESEARCH_TEST_PG_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("RESEARCH_TEST_PG_PORT"))
	s, err := NewStorage(context.Background(), config.DBConfig{
		Host:     host,
		Port:     port,
		User:     os.Getenv("RESEARCH_TEST_PG_USER"),
		Password: os.Getenv("RESEARCH_TEST_PG_PASSWORD"),
		Name:     os.Getenv("RESEARCH_TEST_PG_DB"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorage_RunLifecycle(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	id, err := s.CreateRun(ctx, dm.ReportRequest{
		Query:        "go generics adoption",
		ReportType:   dm.ResearchReport,
		ReportSource: dm.SourceWeb,
		Tone:         dm.ToneObjective,
	})
	require.NoError(t, err)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Nil(t, run.FinishedAt)

	paths := Paths{MD: "outputs/a.md", PDF: "", DOCX: "outputs/a.docx"}
	require.NoError(t, s.FinishRun(ctx, id, paths))

	run, err = s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.Equal(t, paths, run.Paths)
	assert.NotNil(t, run.FinishedAt)

	runs, total, err := s.ListRuns(ctx, 1, 5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, 1)
	require.NotEmpty(t, runs)
	assert.Equal(t, id, runs[0].ID)
}

func TestStorage_FailRun(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	id, err := s.CreateRun(ctx, dm.ReportRequest{Query: "q"})
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, id, "conduct research: no sources collected"))

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "conduct research: no sources collected", run.Error)
}

func TestStorage_NotFound(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, -1)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.FinishRun(ctx, -1, Paths{}), ErrRunNotFound)
}
