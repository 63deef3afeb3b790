package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
	"github.com/iWorld-y/research_report/app/researcher/pkg/engine"
	"github.com/iWorld-y/research_report/app/researcher/pkg/logger"
	dm "github.com/iWorld-y/research_report/app/researcher/pkg/model"
)

// mockResearcher 记录调用顺序
type mockResearcher struct {
	calls      []string
	researchFn func() error
	report     string
	writeErr   error
}

func (m *mockResearcher) ConductResearch(ctx context.Context) error {
	m.calls = append(m.calls, "research")
	if m.researchFn != nil {
		return m.researchFn()
	}
	return nil
}

func (m *mockResearcher) WriteReport(ctx context.Context) (string, error) {
	m.calls = append(m.calls, "write")
	return m.report, m.writeErr
}

func TestBasicReport_Run(t *testing.T) {
	mock := &mockResearcher{report: "# Report"}
	var got dm.ReportRequest
	factory := func(ctx context.Context, req dm.ReportRequest) (Researcher, error) {
		got = req
		return mock, nil
	}

	req := dm.ReportRequest{
		Query:             "量子计算最新进展",
		QueryDomains:      []string{"arxiv.org"},
		ReportType:        dm.ResearchReport,
		ReportSource:      dm.SourceWeb,
		SourceURLs:        []string{"https://a"},
		DocumentURLs:      []string{"https://b"},
		Tone:              "Skeptical",
		ConfigPath:        "custom.yaml",
		AdditionalSources: []map[string]any{{"content": "x"}},
	}
	br := NewBasicReport(req, factory)

	report, err := br.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "# Report", report)
	assert.Equal(t, []string{"research", "write"}, mock.calls)

	// 参数原样透传，Headers 默认为空 map
	assert.Equal(t, req.Query, got.Query)
	assert.Equal(t, req.QueryDomains, got.QueryDomains)
	assert.Equal(t, dm.Tone("Skeptical"), got.Tone)
	assert.Equal(t, "custom.yaml", got.ConfigPath)
	assert.Equal(t, req.AdditionalSources, got.AdditionalSources)
	assert.NotNil(t, got.Headers)
	assert.Empty(t, got.Headers)
}

// progressResearcher 额外暴露调研进度
type progressResearcher struct {
	mockResearcher
}

func (p *progressResearcher) State() engine.State { return engine.StateResearched }

func (p *progressResearcher) SubQueries() []string { return []string{"go", "go generics"} }

func (p *progressResearcher) Sources() []dm.Source {
	return []dm.Source{{URL: "https://go.dev"}, {URL: "https://pkg.go.dev"}}
}

func TestBasicReport_LogsProgress(t *testing.T) {
	hook := logtest.NewLocal(logger.Log)
	t.Cleanup(hook.Reset)

	r := &progressResearcher{mockResearcher{report: "ok"}}
	factory := func(ctx context.Context, req dm.ReportRequest) (Researcher, error) { return r, nil }

	_, err := NewBasicReport(dm.ReportRequest{Query: "go"}, factory).Run(context.Background())
	require.NoError(t, err)

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.InfoLevel && e.Message == `调研完成: state=researched 子查询=["go" "go generics"] 资料 2 条` {
			found = true
		}
	}
	assert.True(t, found, "progress summary not logged")

	// 未实现 Progress 的引擎不记录摘要
	hook.Reset()
	plain := func(ctx context.Context, req dm.ReportRequest) (Researcher, error) { return &mockResearcher{}, nil }
	_, err = NewBasicReport(dm.ReportRequest{Query: "go"}, plain).Run(context.Background())
	require.NoError(t, err)
	for _, e := range hook.AllEntries() {
		assert.NotContains(t, e.Message, "调研完成")
	}
}

func TestBasicReport_ErrorsPropagate(t *testing.T) {
	boom := errors.New("engine exploded")

	mock := &mockResearcher{researchFn: func() error { return boom }}
	br := NewBasicReport(dm.ReportRequest{Query: "q"}, func(context.Context, dm.ReportRequest) (Researcher, error) {
		return mock, nil
	})
	_, err := br.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"research"}, mock.calls, "write must not run after a failed research")

	mock = &mockResearcher{writeErr: boom}
	br = NewBasicReport(dm.ReportRequest{Query: "q"}, func(context.Context, dm.ReportRequest) (Researcher, error) {
		return mock, nil
	})
	_, err = br.Run(context.Background())
	require.ErrorIs(t, err, boom)

	br = NewBasicReport(dm.ReportRequest{Query: "q"}, func(context.Context, dm.ReportRequest) (Researcher, error) {
		return nil, boom
	})
	_, err = br.Run(context.Background())
	require.ErrorIs(t, err, boom)
}

type staticChat struct{ out string }

func (s staticChat) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(s.out, nil), nil
}

func TestEngineFactory(t *testing.T) {
	factory := EngineFactory(config.Default(),
		engine.WithChatModel(staticChat{out: "# From engine"}),
		engine.WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	)

	br := NewBasicReport(dm.ReportRequest{
		Query:             "q",
		ReportSource:      dm.SourceLocal,
		AdditionalSources: []map[string]any{{"title": "t", "content": "c"}},
	}, factory)
	report, err := br.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "# From engine", report)

	_, err = factory(context.Background(), dm.ReportRequest{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  provider: searxng\n  searxng:\n    base_url: http://localhost:1\n"), 0o644))
	r, err := factory(context.Background(), dm.ReportRequest{Query: "q", ConfigPath: path})
	require.NoError(t, err)
	assert.IsType(t, &engine.Researcher{}, r)
}
