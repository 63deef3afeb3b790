package usecase

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/research_report/app/gateway/internal/domain"
	"github.com/iWorld-y/research_report/app/gateway/internal/repo"
	"github.com/iWorld-y/research_report/app/researcher/pkg/export"
	"github.com/iWorld-y/research_report/app/researcher/pkg/report"
	"github.com/iWorld-y/research_report/app/researcher/pkg/stream"
)

// Exporter 报告导出能力，由 export.Exporter 实现
type Exporter interface {
	Write(ctx context.Context, text, name string, formats ...export.Format) (map[export.Format]string, error)
	ExportPDF(ctx context.Context, text string) ([]byte, error)
	ExportDOCX(ctx context.Context, text string) ([]byte, error)
}

// ReportUseCase 报告生成、导出与历史查询
type ReportUseCase struct {
	repo     repo.ReportRepo
	factory  report.ResearcherFactory
	exporter Exporter
	now      func() time.Time
	log      *log.Helper
}

// NewReportUseCase 创建报告业务逻辑实例
func NewReportUseCase(repo repo.ReportRepo, factory report.ResearcherFactory, exporter Exporter, logger log.Logger) *ReportUseCase {
	return &ReportUseCase{
		repo:     repo,
		factory:  factory,
		exporter: exporter,
		now:      time.Now,
		log:      log.NewHelper(logger),
	}
}

// Generate 执行调研与撰写，并导出 md/pdf/docx。进度消息通过 t 推送
func (uc *ReportUseCase) Generate(ctx context.Context, task *domain.Task, t stream.Transport) (*domain.ReportPaths, error) {
	req := task.Request(t)
	if req.Query == "" {
		return nil, errors.BadRequest("EMPTY_TASK", "task is required")
	}

	id, err := uc.repo.CreateRun(ctx, req)
	if err != nil {
		uc.log.WithContext(ctx).Errorf("create report run: %v", err)
	}

	text, err := report.NewBasicReport(req, uc.factory).Run(ctx)
	if err != nil {
		uc.fail(ctx, id, err)
		return nil, err
	}

	name := export.FileName(req.Query, uc.now())
	files, err := uc.exporter.Write(ctx, text, name, export.AllFormats...)
	if err != nil {
		uc.fail(ctx, id, err)
		return nil, err
	}

	paths := &domain.ReportPaths{
		MD:   files[export.FormatMD],
		PDF:  files[export.FormatPDF],
		DOCX: files[export.FormatDOCX],
	}
	if err := uc.repo.FinishRun(ctx, id, *paths); err != nil {
		uc.log.WithContext(ctx).Errorf("finish report run %d: %v", id, err)
	}
	return paths, nil
}

func (uc *ReportUseCase) fail(ctx context.Context, id int64, cause error) {
	uc.log.WithContext(ctx).Errorf("report run %d failed: %v", id, cause)
	// 任务可能因客户端断开而取消，状态仍需落库
	if err := uc.repo.FailRun(context.WithoutCancel(ctx), id, cause.Error()); err != nil {
		uc.log.WithContext(ctx).Errorf("fail report run %d: %v", id, err)
	}
}

// Export 把 Markdown 转为指定格式，返回内容、Content-Type 和下载文件名
func (uc *ReportUseCase) Export(ctx context.Context, format, text, name string) ([]byte, string, string, error) {
	if text == "" {
		return nil, "", "", errors.BadRequest("EMPTY_REPORT", "report is required")
	}
	if name == "" {
		name = "report"
	}
	name = export.FileName(name, uc.now())

	var (
		data        []byte
		contentType string
		err         error
	)
	switch export.Format(format) {
	case export.FormatPDF:
		data, err = uc.exporter.ExportPDF(ctx, text)
		contentType = "application/pdf"
	case export.FormatDOCX:
		data, err = uc.exporter.ExportDOCX(ctx, text)
		contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return nil, "", "", errors.BadRequest("UNSUPPORTED_FORMAT", "unsupported export format: "+format)
	}
	if err != nil {
		return nil, "", "", errors.InternalServer("EXPORT_FAILED", err.Error()).WithCause(err)
	}
	return data, contentType, name + "." + format, nil
}

// List 分页列出任务
func (uc *ReportUseCase) List(ctx context.Context, page, pageSize int) ([]*domain.ReportRun, int, error) {
	return uc.repo.ListRuns(ctx, page, pageSize)
}

// Get 根据 ID 获取任务详情
func (uc *ReportUseCase) Get(ctx context.Context, id int64) (*domain.ReportRun, error) {
	return uc.repo.GetRun(ctx, id)
}
