package repo

import (
	"context"

	"github.com/iWorld-y/research_report/app/gateway/internal/domain"
	dm "github.com/iWorld-y/research_report/app/researcher/pkg/model"
)

// ReportRepo 报告任务仓库接口
type ReportRepo interface {
	// CreateRun 记录开始的任务，未配置数据库时返回 0
	CreateRun(ctx context.Context, req dm.ReportRequest) (int64, error)
	FinishRun(ctx context.Context, id int64, paths domain.ReportPaths) error
	FailRun(ctx context.Context, id int64, reason string) error
	// ListRuns 分页获取任务列表，按创建时间倒序
	ListRuns(ctx context.Context, page, pageSize int) ([]*domain.ReportRun, int, error)
	GetRun(ctx context.Context, id int64) (*domain.ReportRun, error)
}
