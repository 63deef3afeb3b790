package data

import (
	"context"
	"errors"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/research_report/app/gateway/internal/domain"
	"github.com/iWorld-y/research_report/app/gateway/internal/repo"
	dm "github.com/iWorld-y/research_report/app/researcher/pkg/model"
	"github.com/iWorld-y/research_report/app/researcher/pkg/storage"
)

// ErrHistoryDisabled 未配置数据库
var ErrHistoryDisabled = kerrors.ServiceUnavailable("HISTORY_DISABLED", "report history requires a database")

type reportRepo struct {
	data *Data
	log  *log.Helper
}

func NewReportRepo(data *Data, logger log.Logger) repo.ReportRepo {
	return &reportRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *reportRepo) CreateRun(ctx context.Context, req dm.ReportRequest) (int64, error) {
	if r.data.store == nil {
		return 0, nil
	}
	return r.data.store.CreateRun(ctx, req)
}

func (r *reportRepo) FinishRun(ctx context.Context, id int64, paths domain.ReportPaths) error {
	if r.data.store == nil || id == 0 {
		return nil
	}
	return r.data.store.FinishRun(ctx, id, storage.Paths{MD: paths.MD, PDF: paths.PDF, DOCX: paths.DOCX})
}

func (r *reportRepo) FailRun(ctx context.Context, id int64, reason string) error {
	if r.data.store == nil || id == 0 {
		return nil
	}
	return r.data.store.FailRun(ctx, id, reason)
}

func (r *reportRepo) ListRuns(ctx context.Context, page, pageSize int) ([]*domain.ReportRun, int, error) {
	if r.data.store == nil {
		return nil, 0, ErrHistoryDisabled
	}
	runs, total, err := r.data.store.ListRuns(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	list := make([]*domain.ReportRun, 0, len(runs))
	for _, run := range runs {
		list = append(list, toDomain(run))
	}
	return list, total, nil
}

func (r *reportRepo) GetRun(ctx context.Context, id int64) (*domain.ReportRun, error) {
	if r.data.store == nil {
		return nil, ErrHistoryDisabled
	}
	run, err := r.data.store.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			return nil, kerrors.NotFound("REPORT_NOT_FOUND", "report not found")
		}
		return nil, err
	}
	return toDomain(run), nil
}

func toDomain(run *storage.Run) *domain.ReportRun {
	out := &domain.ReportRun{
		ID:           run.ID,
		Query:        run.Query,
		ReportType:   run.ReportType,
		ReportSource: run.ReportSource,
		Tone:         run.Tone,
		Status:       string(run.Status),
		Error:        run.Error,
		Paths:        domain.ReportPaths{MD: run.Paths.MD, PDF: run.Paths.PDF, DOCX: run.Paths.DOCX},
		CreatedAt:    run.CreatedAt.Format(time.DateTime),
	}
	if run.FinishedAt != nil {
		out.FinishedAt = run.FinishedAt.Format(time.DateTime)
	}
	return out
}
