package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bytedance/gg/gson"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/research_report/app/researcher/pkg/logger"
	dm "github.com/iWorld-y/research_report/app/researcher/pkg/model"
	"github.com/iWorld-y/research_report/app/researcher/pkg/search"
	"github.com/iWorld-y/research_report/app/researcher/pkg/stream"
)

// collector 并发收集资料，按 URL 去重
type collector struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	sources []dm.Source
}

func newCollector() *collector {
	return &collector{seen: make(map[string]struct{})}
}

// claim 标记 URL 已处理，重复时返回 false
func (c *collector) claim(url string) bool {
	if url == "" {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[url]; ok {
		return false
	}
	c.seen[url] = struct{}{}
	return true
}

func (c *collector) add(s dm.Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, s)
}

// ConductResearch 按报告来源收集资料。只能调用一次。
func (r *Researcher) ConductResearch(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateUnstarted {
		return ErrAlreadyResearched
	}

	stream.Logs(r.transport, "starting_research", fmt.Sprintf("🔎 开始调研: %s", r.req.Query), nil)

	col := newCollector()
	var err error
	switch r.req.ReportSource {
	case dm.SourceWeb, "":
		err = r.researchWeb(ctx, col)
	case dm.SourceStatic:
		r.fetchURLs(ctx, col, r.req.SourceURLs)
		if r.cfg.Research.ComplementSourceURLs {
			err = r.researchWeb(ctx, col)
		}
	case dm.SourceLocal, dm.SourceDocuments:
		r.fetchURLs(ctx, col, r.req.DocumentURLs)
	case dm.SourceHybrid:
		r.fetchURLs(ctx, col, r.req.DocumentURLs)
		err = r.researchWeb(ctx, col)
	default:
		return fmt.Errorf("unsupported report source: %s", r.req.ReportSource)
	}
	if err != nil {
		return err
	}

	r.addAdditionalSources(col)

	if len(col.sources) == 0 {
		stream.Logs(r.transport, "research_failed", "❌ 未收集到任何资料", nil)
		return ErrNoSources
	}

	r.sources = col.sources
	r.state = StateResearched
	stream.Logs(r.transport, "research_completed",
		fmt.Sprintf("✅ 调研完成，共收集 %d 条资料", len(r.sources)), nil)
	return nil
}

// researchWeb 规划子查询并并发搜索
func (r *Researcher) researchWeb(ctx context.Context, col *collector) error {
	if r.searcher == nil {
		return fmt.Errorf("web research requires a search provider")
	}

	queries := r.planSubQueries(ctx)
	r.subQueries = queries
	stream.Logs(r.transport, "subqueries",
		fmt.Sprintf("🗂️ 将围绕以下问题进行调研: %s", strings.Join(queries, ", ")), queries)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for _, q := range queries {
		g.Go(func() error {
			r.searchQuery(gctx, col, q)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// searchQuery 单个子查询失败只记日志，不影响其他查询
func (r *Researcher) searchQuery(ctx context.Context, col *collector, query string) {
	stream.Logs(r.transport, "running_subquery_research", fmt.Sprintf("🔍 搜索: %s", query), nil)

	resp, err := r.searcher.Search(ctx, &search.Request{
		Query:          query,
		MaxResults:     r.cfg.Research.MaxResultsPerQuery,
		IncludeDomains: r.req.QueryDomains,
	})
	if err != nil {
		logger.Log.Errorf("搜索失败 [%s]: %v", query, err)
		return
	}
	logger.Log.Debugf("搜索 [%s] 成功: %s", query, gson.ToString(resp))

	for _, item := range search.FilterDomains(resp.Results, r.req.QueryDomains, nil) {
		if !col.claim(item.URL) {
			continue
		}

		content := item.RawContent
		if content == "" {
			content = item.Content
		}
		// 摘要太短时尝试抓取原文
		if len(content) < r.cfg.Research.MinContentChars && item.URL != "" {
			page, err := r.fetcher.Fetch(ctx, item.URL, nil)
			if err != nil {
				logger.Log.Warnf("原文抓取失败，使用搜索摘要 [%s]: %v", item.Title, err)
			} else if len(page.Text) > len(content) {
				content = page.Text
			}
		}

		content = strings.TrimSpace(truncate(content, r.cfg.Research.MaxContentChars))
		if content == "" {
			continue
		}
		col.add(dm.Source{
			Title:   item.Title,
			URL:     item.URL,
			Content: content,
			PubDate: item.PublishedDate,
			Query:   query,
		})
	}
}

// fetchURLs 抓取调用方给定的 URL，请求头原样转发
func (r *Researcher) fetchURLs(ctx context.Context, col *collector, urls []string) {
	if len(urls) == 0 {
		return
	}
	stream.Logs(r.transport, "fetching_urls", fmt.Sprintf("🌐 抓取 %d 个指定链接", len(urls)), urls)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for _, u := range urls {
		if !col.claim(u) {
			continue
		}
		g.Go(func() error {
			page, err := r.fetcher.Fetch(gctx, u, r.forwardHeaders())
			if err != nil {
				logger.Log.Warnf("抓取失败 [%s]: %v", u, err)
				return nil
			}
			content := strings.TrimSpace(truncate(page.Text, r.cfg.Research.MaxContentChars))
			if content == "" {
				return nil
			}
			col.add(dm.Source{Title: page.Title, URL: u, Content: content})
			return nil
		})
	}
	_ = g.Wait()
}

// addAdditionalSources 调用方额外提供的资料，只识别 title/url/content 三个键
func (r *Researcher) addAdditionalSources(col *collector) {
	for _, rec := range r.req.AdditionalSources {
		content := strings.TrimSpace(stringField(rec, "content"))
		if content == "" {
			continue
		}
		u := stringField(rec, "url")
		if !col.claim(u) {
			continue
		}
		col.add(dm.Source{
			Title:   stringField(rec, "title"),
			URL:     u,
			Content: truncate(content, r.cfg.Research.MaxContentChars),
		})
	}
}

// forwardHeaders 去掉引擎自用的键
func (r *Researcher) forwardHeaders() map[string]string {
	h := make(map[string]string, len(r.req.Headers))
	for k, v := range r.req.Headers {
		if k == "retriever" {
			continue
		}
		h[k] = v
	}
	return h
}

func (r *Researcher) workers() int {
	if n := r.cfg.Concurrency.MaxWorkers; n > 0 {
		return n
	}
	return 1
}

// planSubQueries 让模型拆解子查询；失败时退化为原始查询
func (r *Researcher) planSubQueries(ctx context.Context) []string {
	queries := []string{r.req.Query}
	limit := r.cfg.Research.MaxSubQueries
	if limit <= 0 {
		return queries
	}

	prompt := `你是一名研究助理。请为下面的研究问题生成最多 %d 个用于搜索引擎的子查询，覆盖问题的不同方面。
请务必严格按照 JSON 字符串数组格式返回，例如 ["子查询1", "子查询2"]，不要包含任何其他内容。
子查询使用与研究问题相同的语言。

研究问题：%s`

	messages := []*schema.Message{
		{Role: schema.System, Content: "你是一个 JSON 生成器。请只输出 JSON 字符串。"},
		{Role: schema.User, Content: fmt.Sprintf(prompt, limit, r.req.Query)},
	}

	var planned []string
	if err := r.generateJSON(ctx, messages, &planned); err != nil {
		logger.Log.Warnf("子查询规划失败，仅使用原始查询: %v", err)
		return queries
	}

	seen := map[string]struct{}{r.req.Query: {}}
	for _, q := range planned {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		queries = append(queries, q)
		if len(queries) > limit {
			break
		}
	}
	return queries
}

func stringField(rec map[string]any, key string) string {
	v, ok := rec[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
