package server

import (
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/research_report/app/gateway/internal/conf"
	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
	"github.com/iWorld-y/research_report/app/researcher/pkg/export"
	rrLogger "github.com/iWorld-y/research_report/app/researcher/pkg/logger"
	"github.com/iWorld-y/research_report/app/researcher/pkg/report"
)

// NewResearchConfig 把 conf.Research 转换为 pkg/config.Config，未配置的字段保留默认值
func NewResearchConfig(c *conf.Research, d *conf.Data, logger log.Logger) *config.Config {
	cfg := config.Default()
	if c != nil {
		applyResearch(cfg, c)
	}
	if d != nil && d.Database != nil {
		cfg.DB = config.DBConfig{
			Host:     d.Database.Host,
			Port:     int(d.Database.Port),
			User:     d.Database.User,
			Password: d.Database.Password,
			Name:     d.Database.Name,
		}
	}

	// 初始化日志
	if err := rrLogger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.NewHelper(logger).Errorf("Failed to init research logger: %v", err)
		_ = rrLogger.InitLogger("info", "") // 降级处理
	}
	return cfg
}

func applyResearch(cfg *config.Config, c *conf.Research) {
	if c.Llm != nil {
		cfg.LLM = config.LLMConfig{BaseURL: c.Llm.BaseUrl, APIKey: c.Llm.ApiKey, Model: c.Llm.Model}
	}
	if c.Search != nil {
		cfg.Search.Provider = c.Search.Provider
		if c.Search.Tavily != nil {
			cfg.Search.Tavily.APIKey = c.Search.Tavily.ApiKey
		}
		if c.Search.Searxng != nil {
			cfg.Search.SearXNG.BaseURL = c.Search.Searxng.BaseUrl
			setInt(&cfg.Search.SearXNG.Timeout, c.Search.Searxng.Timeout)
		}
	}
	if r := c.Research; r != nil {
		setInt(&cfg.Research.MaxSubQueries, r.MaxSubQueries)
		setInt(&cfg.Research.MaxResultsPerQuery, r.MaxResultsPerQuery)
		setInt(&cfg.Research.MaxContentChars, r.MaxContentChars)
		setInt(&cfg.Research.MinContentChars, r.MinContentChars)
		setInt(&cfg.Research.FetchTimeout, r.FetchTimeout)
		setInt(&cfg.Research.TotalWords, r.TotalWords)
		cfg.Research.ComplementSourceURLs = r.ComplementSourceUrls
	}
	if o := c.Output; o != nil {
		if o.Dir != "" {
			cfg.Output.Dir = o.Dir
		}
		cfg.Output.PDFStylesheet = o.PdfStylesheet
		cfg.Output.BrowserBin = o.BrowserBin
	}
	if l := c.Log; l != nil {
		if l.Level != "" {
			cfg.Log.Level = l.Level
		}
		cfg.Log.File = l.File
	}
	if cc := c.Concurrency; cc != nil {
		setInt(&cfg.Concurrency.QPS, cc.Qps)
		setInt(&cfg.Concurrency.RPM, cc.Rpm)
		setInt(&cfg.Concurrency.MaxWorkers, cc.MaxWorkers)
	}
}

func setInt(dst *int, v int32) {
	if v > 0 {
		*dst = int(v)
	}
}

// NewExporter 创建导出器，关闭时释放浏览器
func NewExporter(cfg *config.Config, logger log.Logger) (*export.Exporter, func(), error) {
	exp, err := export.NewFromConfig(cfg.Output)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		log.NewHelper(logger).Info("closing the exporter")
		if err := exp.Close(); err != nil {
			log.NewHelper(logger).Errorf("close exporter: %v", err)
		}
	}
	return exp, cleanup, nil
}

// NewResearcherFactory 使用内置调研引擎
func NewResearcherFactory(cfg *config.Config) report.ResearcherFactory {
	return report.EngineFactory(cfg)
}
