package searxng

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iWorld-y/research_report/app/researcher/pkg/search"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// Client SearXNG JSON API 客户端，实例需开启 json 输出格式
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient timeout 单位为秒，<= 0 时取 30
func NewClient(baseURL string, timeout int) *Client {
	if timeout <= 0 {
		timeout = 30
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
}

var _ search.Searcher = (*Client)(nil)

// SearchResponse SearXNG 响应结构
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// SearchResult SearXNG 单条结果
type SearchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	PublishedDate string  `json:"publishedDate"` // 字段名可能因版本而异
	Score         float64 `json:"score"`
}

// Search 执行搜索。baseURL 可以带路径前缀（例如反向代理下的 /searx）
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	endpoint, err := url.JoinPath(c.baseURL, "search")
	if err != nil {
		return nil, fmt.Errorf("invalid searxng base url: %w", err)
	}

	q := url.Values{}
	q.Set("q", buildQuery(req))
	q.Set("format", "json")
	q.Set("categories", category(req.Topic))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create searxng request: %w", err)
	}
	// 部分实例会拦截默认的 Go User-Agent
	httpReq.Header.Set("User-Agent", userAgent)

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("searxng request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("searxng api error (status %d): %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode searxng response: %w", err)
	}

	results := make([]search.Result, 0, len(searchResp.Results))
	for _, r := range searchResp.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, search.Result{
			Title:         r.Title,
			URL:           r.URL,
			Content:       r.Content,
			Score:         r.Score,
			PublishedDate: r.PublishedDate,
		})
		if req.MaxResults > 0 && len(results) >= req.MaxResults {
			break
		}
	}

	return &search.Response{Results: results}, nil
}

// buildQuery SearXNG 没有域名过滤参数，用 site: 语法拼进查询
func buildQuery(req *search.Request) string {
	query := req.Query
	switch len(req.IncludeDomains) {
	case 0:
	case 1:
		query += " site:" + req.IncludeDomains[0]
	default:
		sites := make([]string, 0, len(req.IncludeDomains))
		for _, d := range req.IncludeDomains {
			sites = append(sites, "site:"+d)
		}
		query += " (" + strings.Join(sites, " OR ") + ")"
	}
	for _, d := range req.ExcludeDomains {
		query += " -site:" + d
	}
	return query
}

func category(topic string) string {
	if topic == "news" {
		return "news"
	}
	return "general"
}
