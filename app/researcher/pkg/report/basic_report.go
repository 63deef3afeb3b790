package report

import (
	"context"
	"fmt"

	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
	"github.com/iWorld-y/research_report/app/researcher/pkg/engine"
	"github.com/iWorld-y/research_report/app/researcher/pkg/logger"
	dm "github.com/iWorld-y/research_report/app/researcher/pkg/model"
)

// Researcher 调研引擎需要提供的能力：先调研，再写报告
type Researcher interface {
	ConductResearch(ctx context.Context) error
	WriteReport(ctx context.Context) (string, error)
}

// Progress 调研引擎可选实现，Run 用它记录调研摘要
type Progress interface {
	State() engine.State
	SubQueries() []string
	Sources() []dm.Source
}

var _ Progress = (*engine.Researcher)(nil)

// ResearcherFactory 根据请求参数创建调研引擎
type ResearcherFactory func(ctx context.Context, req dm.ReportRequest) (Researcher, error)

// BasicReport 持有一次报告请求的全部参数，Run 时委托给调研引擎
type BasicReport struct {
	req     dm.ReportRequest
	factory ResearcherFactory
}

// NewBasicReport 参数原样保存，不做校验；Headers 为 nil 时置为空 map
func NewBasicReport(req dm.ReportRequest, factory ResearcherFactory) *BasicReport {
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	return &BasicReport{req: req, factory: factory}
}

// Run 创建调研引擎，依次执行调研和撰写，返回报告正文。引擎的错误原样向上返回。
func (b *BasicReport) Run(ctx context.Context) (string, error) {
	researcher, err := b.factory(ctx, b.req)
	if err != nil {
		return "", fmt.Errorf("create researcher: %w", err)
	}

	if err := researcher.ConductResearch(ctx); err != nil {
		return "", fmt.Errorf("conduct research: %w", err)
	}
	if p, ok := researcher.(Progress); ok {
		logger.Log.Infof("调研完成: state=%s 子查询=%q 资料 %d 条", p.State(), p.SubQueries(), len(p.Sources()))
	}

	report, err := researcher.WriteReport(ctx)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return report, nil
}

// EngineFactory 返回使用内置引擎的工厂。请求带 ConfigPath 时从该文件加载配置，否则使用 cfg。
func EngineFactory(cfg *config.Config, opts ...engine.Option) ResearcherFactory {
	return func(ctx context.Context, req dm.ReportRequest) (Researcher, error) {
		c := cfg
		if req.ConfigPath != "" {
			loaded, err := config.LoadConfig(req.ConfigPath)
			if err != nil {
				return nil, fmt.Errorf("load config %s: %w", req.ConfigPath, err)
			}
			c = loaded
		}
		logger.Log.Infof("创建调研引擎: type=%s source=%s", req.ReportType, req.ReportSource)
		return engine.New(ctx, c, req, opts...)
	}
}
