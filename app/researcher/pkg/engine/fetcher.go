package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Page 抓取并清洗后的网页
type Page struct {
	Title string
	Text  string
}

// Fetcher 抓取 URL 并提取正文
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, headers map[string]string) (*Page, error)
}

// ReadabilityFetcher 使用 go-readability 提取正文
type ReadabilityFetcher struct {
	client *http.Client
}

// NewReadabilityFetcher timeout 为 0 时使用 30 秒
func NewReadabilityFetcher(timeout time.Duration) *ReadabilityFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ReadabilityFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch 请求页面，headers 原样作为 HTTP 头发送
func (f *ReadabilityFetcher) Fetch(ctx context.Context, rawURL string, headers map[string]string) (*Page, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, res.StatusCode)
	}

	// 纯文本直接返回，不走 readability
	if strings.HasPrefix(res.Header.Get("Content-Type"), "text/plain") {
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("read body failed: %w", err)
		}
		return &Page{Title: path.Base(pageURL.Path), Text: string(body)}, nil
	}

	article, err := readability.FromReader(res.Body, pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract content failed: %w", err)
	}
	return &Page{Title: article.Title, Text: article.TextContent}, nil
}
