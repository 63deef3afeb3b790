package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
	dm "github.com/iWorld-y/research_report/app/researcher/pkg/model"
	"github.com/iWorld-y/research_report/app/researcher/pkg/search"
	"github.com/iWorld-y/research_report/app/researcher/pkg/search/factory"
	"github.com/iWorld-y/research_report/app/researcher/pkg/stream"
)

var (
	ErrNotResearched     = errors.New("research has not been conducted")
	ErrAlreadyResearched = errors.New("research already conducted")
	ErrAlreadyReported   = errors.New("report already written")
	ErrNoSources         = errors.New("no research sources gathered")
)

// State 调研生命周期：Unstarted -> Researched -> Reported
type State int

const (
	StateUnstarted State = iota
	StateResearched
	StateReported
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateResearched:
		return "researched"
	case StateReported:
		return "reported"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ChatModel 引擎用到的最小模型能力
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Researcher 针对单个报告请求的调研引擎，先 ConductResearch 再 WriteReport
type Researcher struct {
	cfg       *config.Config
	req       dm.ReportRequest
	chatModel ChatModel
	searcher  search.Searcher
	fetcher   Fetcher
	limiter   *rate.Limiter
	transport stream.Transport

	maxRetries int
	baseDelay  time.Duration

	mu         sync.Mutex
	state      State
	subQueries []string
	sources    []dm.Source
}

// Option 引擎选项
type Option func(*Researcher)

// WithChatModel 使用指定的模型，不再根据配置创建
func WithChatModel(cm ChatModel) Option {
	return func(r *Researcher) { r.chatModel = cm }
}

// WithSearcher 使用指定的搜索客户端
func WithSearcher(s search.Searcher) Option {
	return func(r *Researcher) { r.searcher = s }
}

// WithFetcher 使用指定的正文抓取器
func WithFetcher(f Fetcher) Option {
	return func(r *Researcher) { r.fetcher = f }
}

// WithLimiter 使用指定的限流器
func WithLimiter(l *rate.Limiter) Option {
	return func(r *Researcher) { r.limiter = l }
}

// WithRetry 设置 429 重试次数与退避基数
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(r *Researcher) {
		r.maxRetries = maxRetries
		r.baseDelay = baseDelay
	}
}

// New 创建引擎实例。未通过选项注入的依赖按配置创建。
func New(ctx context.Context, cfg *config.Config, req dm.ReportRequest, opts ...Option) (*Researcher, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}

	r := &Researcher{
		cfg:        cfg,
		req:        req,
		transport:  stream.NewSafeTransport(req.Transport),
		maxRetries: 3,
		baseDelay:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.chatModel == nil {
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("LLM 初始化失败: %w", err)
		}
		r.chatModel = chatModel
	}

	if r.searcher == nil && needsWeb(req.ReportSource, cfg.Research.ComplementSourceURLs) {
		searcher, err := factory.NewSearcher(cfg, req.Headers["retriever"])
		if err != nil {
			return nil, fmt.Errorf("搜索客户端初始化失败: %w", err)
		}
		r.searcher = searcher
	}

	if r.fetcher == nil {
		r.fetcher = NewReadabilityFetcher(time.Duration(cfg.Research.FetchTimeout) * time.Second)
	}

	if r.limiter == nil {
		r.limiter = NewLimiter(cfg.Concurrency)
	}

	return r, nil
}

// NewLimiter 按配置创建限流器：Limit 为 RPM/60，Burst 为 QPS
func NewLimiter(c config.ConcurrencyConfig) *rate.Limiter {
	if c.RPM <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := c.QPS
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(c.RPM)/60.0), burst)
}

// State 返回当前生命周期状态
func (r *Researcher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Sources 返回已收集的资料副本
func (r *Researcher) Sources() []dm.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dm.Source(nil), r.sources...)
}

// SubQueries 返回 web 调研时使用的子查询
func (r *Researcher) SubQueries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.subQueries...)
}

func needsWeb(src dm.ReportSource, complement bool) bool {
	switch src {
	case dm.SourceLocal, dm.SourceDocuments:
		return false
	case dm.SourceStatic:
		return complement
	default:
		return true
	}
}
