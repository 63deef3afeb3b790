package data

import (
	"context"
	"testing"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/research_report/app/gateway/internal/domain"
	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
	dm "github.com/iWorld-y/research_report/app/researcher/pkg/model"
	"github.com/iWorld-y/research_report/app/researcher/pkg/storage"
)

func TestReportRepo_WithoutDatabase(t *testing.T) {
	d, cleanup, err := NewData(config.Default(), log.DefaultLogger)
	require.NoError(t, err)
	defer cleanup()

	r := NewReportRepo(d, log.DefaultLogger)
	ctx := context.Background()

	id, err := r.CreateRun(ctx, dm.ReportRequest{Query: "q"})
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.NoError(t, r.FinishRun(ctx, id, domain.ReportPaths{}))
	assert.NoError(t, r.FailRun(ctx, id, "boom"))

	_, _, err = r.ListRuns(ctx, 1, 10)
	assert.Equal(t, 503, kerrors.Code(err))
	_, err = r.GetRun(ctx, 1)
	assert.Equal(t, "HISTORY_DISABLED", kerrors.Reason(err))
}

func TestToDomain(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	finished := created.Add(time.Minute)

	got := toDomain(&storage.Run{
		ID:         7,
		Query:      "q",
		ReportType: "research_report",
		Status:     storage.StatusSucceeded,
		Paths:      storage.Paths{MD: "outputs/a.md"},
		CreatedAt:  created,
		FinishedAt: &finished,
	})
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "succeeded", got.Status)
	assert.Equal(t, "outputs/a.md", got.Paths.MD)
	assert.Equal(t, "2026-01-02 03:04:05", got.CreatedAt)
	assert.Equal(t, "2026-01-02 03:05:05", got.FinishedAt)

	got = toDomain(&storage.Run{CreatedAt: created})
	assert.Empty(t, got.FinishedAt)
}
