// Package search 定义调研引擎使用的搜索提供方接口。
package search

import (
	"context"
	"net/url"
	"strings"
)

// Searcher 搜索提供方，tavily 与 searxng 各有一个实现
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request 一次子查询的搜索参数
type Request struct {
	Query             string
	Topic             string // news / general，为空由提供方决定
	MaxResults        int
	IncludeRawContent bool
	// IncludeDomains 非空时只保留这些域名（含子域名）下的结果
	IncludeDomains []string
	ExcludeDomains []string
	StartDate      string // YYYY-MM-DD
	EndDate        string
}

// Response 搜索结果列表，按提供方给出的相关度排序
type Response struct {
	Results []Result
}

type Result struct {
	Title         string
	URL           string
	Content       string
	RawContent    string
	Score         float64
	PublishedDate string
}

// FilterDomains 按域名过滤结果。提供方的域名过滤并不可靠（searxng 依赖 site: 语法），
// 引擎拿到结果后统一再过一遍
func FilterDomains(results []Result, include, exclude []string) []Result {
	if len(include) == 0 && len(exclude) == 0 {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		host := hostOf(r.URL)
		if host == "" {
			continue
		}
		if len(include) > 0 && !matchAny(host, include) {
			continue
		}
		if matchAny(host, exclude) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// matchAny host 等于某个域名，或是其子域名
func matchAny(host string, domains []string) bool {
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "*."))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
