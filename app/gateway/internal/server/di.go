package server

import (
	"github.com/google/wire"

	"github.com/iWorld-y/research_report/app/gateway/internal/data"
	"github.com/iWorld-y/research_report/app/gateway/internal/service"
	"github.com/iWorld-y/research_report/app/gateway/internal/usecase"
	"github.com/iWorld-y/research_report/app/researcher/pkg/export"
)

// ProviderSet 是网关服务的依赖注入 Provider 集合
var ProviderSet = wire.NewSet(
	// Server providers
	NewHTTPServer,
	NewResearchConfig,
	NewExporter,
	NewResearcherFactory,

	// Data providers
	data.NewData,
	data.NewReportRepo,

	// UseCase providers
	usecase.NewReportUseCase,
	wire.Bind(new(usecase.Exporter), new(*export.Exporter)),

	// Service providers
	service.NewReportService,
)
