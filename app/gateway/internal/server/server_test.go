package server

import (
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/research_report/app/gateway/internal/conf"
	"github.com/iWorld-y/research_report/app/gateway/internal/service"
	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
	"github.com/iWorld-y/research_report/app/researcher/pkg/export"
)

func TestNewResearchConfig(t *testing.T) {
	cfg := NewResearchConfig(&conf.Research{
		Llm:      &conf.LLM{BaseUrl: "http://llm", ApiKey: "k", Model: "m"},
		Search:   &conf.Search{Provider: "searxng", Searxng: &conf.SearXNG{BaseUrl: "http://sx"}},
		Research: &conf.Limits{MaxSubQueries: 5, ComplementSourceUrls: true},
		Output:   &conf.Output{Dir: "out", BrowserBin: "/usr/bin/chromium"},
		Log:      &conf.Log{Level: "error"},
	}, &conf.Data{Database: &conf.Database{Host: "db", Port: 5433, User: "u", Name: "n"}}, log.DefaultLogger)

	assert.Equal(t, "http://llm", cfg.LLM.BaseURL)
	assert.Equal(t, "searxng", cfg.Search.Provider)
	assert.Equal(t, "http://sx", cfg.Search.SearXNG.BaseURL)
	assert.Equal(t, 30, cfg.Search.SearXNG.Timeout)
	assert.Equal(t, 5, cfg.Research.MaxSubQueries)
	assert.Equal(t, 5, cfg.Research.MaxResultsPerQuery)
	assert.True(t, cfg.Research.ComplementSourceURLs)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, "/usr/bin/chromium", cfg.Output.BrowserBin)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 60, cfg.Concurrency.RPM)
	assert.Equal(t, "db", cfg.DB.Host)
	assert.Equal(t, 5433, cfg.DB.Port)
}

func TestNewResearchConfig_Defaults(t *testing.T) {
	cfg := NewResearchConfig(nil, nil, log.DefaultLogger)
	assert.Equal(t, config.Default(), cfg)
}

func TestNewHTTPServer(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Output.Dir, "task_1_q.md"), []byte("# q"), 0o644))

	s := service.NewReportService(&conf.Server{}, nil, log.DefaultLogger)
	srv := NewHTTPServer(&conf.Server{Http: &conf.HTTP{Timeout: "bogus"}}, cfg, s, log.DefaultLogger)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/", nil))
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Research Report")

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, filepath.ToSlash(filepath.Join(cfg.Output.Dir, "task_1_q.md")), nil))
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "# q", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, filepath.ToSlash(filepath.Join(cfg.Output.Dir, "missing.md")), nil))
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)
}

// 导出返回的路径在非默认输出目录下也能直接访问
func TestNewHTTPServer_OutputLinks(t *testing.T) {
	t.Chdir(t.TempDir())

	for _, dir := range []string{"outputs", "reports/out", "./my reports/"} {
		t.Run(dir, func(t *testing.T) {
			cfg := config.Default()
			cfg.Output.Dir = dir
			exp := export.New(export.WithDir(dir))
			defer exp.Close()
			p, err := exp.WriteTextToMD("# hello", "task_1 a&b")
			require.NoError(t, err)

			s := service.NewReportService(&conf.Server{}, nil, log.DefaultLogger)
			srv := NewHTTPServer(&conf.Server{}, cfg, s, log.DefaultLogger)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/"+p, nil))
			assert.Equal(t, nethttp.StatusOK, rec.Code, p)
			assert.Equal(t, "# hello", rec.Body.String())
		})
	}
}

func TestOutputsPrefix(t *testing.T) {
	tests := []struct {
		dir  string
		want string
		ok   bool
	}{
		{"outputs", "/outputs/", true},
		{"./reports/out/", "/reports/out/", true},
		{"/var/lib/research", "/var/lib/research/", true},
		{".", "", false},
		{"../outside", "", false},
	}
	for _, tt := range tests {
		got, ok := outputsPrefix(tt.dir)
		assert.Equal(t, tt.ok, ok, tt.dir)
		assert.Equal(t, tt.want, got, tt.dir)
	}
}

func TestNewExporter(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()

	exp, cleanup, err := NewExporter(cfg, log.DefaultLogger)
	require.NoError(t, err)
	assert.Equal(t, cfg.Output.Dir, exp.Dir())
	cleanup()
}
