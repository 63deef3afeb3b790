package factory

import (
	"fmt"

	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
	"github.com/iWorld-y/research_report/app/researcher/pkg/search"
	"github.com/iWorld-y/research_report/app/researcher/pkg/search/searxng"
	"github.com/iWorld-y/research_report/app/researcher/pkg/search/tavily"
)

// NewSearcher 根据配置创建搜索实例。provider 非空时覆盖配置中的 provider。
func NewSearcher(cfg *config.Config, provider string) (search.Searcher, error) {
	if provider == "" {
		provider = cfg.Search.Provider
	}
	if provider == "" {
		// 默认回退逻辑：如果有 tavily key，则使用 tavily
		if cfg.Search.Tavily.APIKey != "" {
			provider = "tavily"
		} else if cfg.Search.SearXNG.BaseURL != "" {
			provider = "searxng"
		} else {
			return nil, fmt.Errorf("search provider not configured")
		}
	}

	switch provider {
	case "tavily":
		if cfg.Search.Tavily.APIKey == "" {
			return nil, fmt.Errorf("tavily api key is missing")
		}
		return tavily.NewClient(cfg.Search.Tavily.APIKey), nil

	case "searxng":
		baseURL := cfg.Search.SearXNG.BaseURL
		if baseURL == "" {
			return nil, fmt.Errorf("searxng base url is missing")
		}
		return searxng.NewClient(baseURL, cfg.Search.SearXNG.Timeout), nil

	default:
		return nil, fmt.Errorf("unknown search provider: %s", provider)
	}
}
