package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
	"github.com/iWorld-y/research_report/app/researcher/pkg/export"
	"github.com/iWorld-y/research_report/app/researcher/pkg/logger"
	"github.com/iWorld-y/research_report/app/researcher/pkg/report"
	"github.com/iWorld-y/research_report/app/researcher/pkg/storage"
)

// 测试中替换
var (
	newExporter = func(cfg config.OutputConfig) (*export.Exporter, error) {
		return export.NewFromConfig(cfg)
	}
	newFactory = func(cfg *config.Config) report.ResearcherFactory {
		return report.EngineFactory(cfg)
	}
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "researcher",
		Short: "Generate research reports and export them as Markdown, PDF or Word",
		Long: `researcher collects sources for a query (web search, given URLs, documents),
asks an LLM to write a Markdown report and exports it to md / pdf / docx.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "config file path")

	load := func() (*config.Config, error) {
		return loadConfig(configPath)
	}
	root.AddCommand(newRunCmd(load), newExportCmd(load))
	return root
}

// loadConfig 加载配置并初始化日志
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("无法加载配置文件: %w", err)
	}
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		return nil, fmt.Errorf("无法初始化日志: %w", err)
	}
	return cfg, nil
}

// openStorage 配置了数据库时连接，失败只记日志
func openStorage(ctx context.Context, cfg config.DBConfig) *storage.Storage {
	if cfg.Host == "" {
		logger.Log.Info("未配置数据库信息，跳过数据库连接")
		return nil
	}
	s, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Log.Errorf("无法连接数据库: %v. 将不记录任务历史。", err)
		return nil
	}
	logger.Log.Info("已成功连接到数据库")
	return s
}

// renderMarkdown 终端渲染失败时原样返回
func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func main() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}
