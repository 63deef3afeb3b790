package server

import (
	"embed"
	nethttp "net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/research_report/app/gateway/internal/conf"
	"github.com/iWorld-y/research_report/app/gateway/internal/service"
	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
)

//go:embed assets/*
var assets embed.FS

func NewHTTPServer(c *conf.Server, cfg *config.Config, s *service.ReportService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Http != nil && c.Http.Addr != "" {
		opts = append(opts, http.Address(c.Http.Addr))
	}
	if c.Http != nil && c.Http.Timeout != "" {
		if d, err := time.ParseDuration(c.Http.Timeout); err == nil {
			opts = append(opts, http.Timeout(d))
		} else {
			log.NewHelper(logger).Warnf("invalid http timeout %q: %v", c.Http.Timeout, err)
		}
	}

	srv := http.NewServer(opts...)

	srv.HandleFunc("/ws", s.ServeWS)
	// 导出文件挂在输出目录同名的路由下，path 消息中的路径可直接访问
	if prefix, ok := outputsPrefix(cfg.Output.Dir); ok {
		srv.HandlePrefix(prefix, outputsHandler(prefix, cfg.Output.Dir))
	} else {
		log.NewHelper(logger).Warnf("output dir %q cannot be served over http", cfg.Output.Dir)
	}

	r := srv.Route("/api")
	r.POST("/export/{format}", s.Export)
	r.GET("/reports", s.ListReports)
	r.GET("/reports/{id}", s.GetReport)

	srv.HandleFunc("/", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		content, _ := assets.ReadFile("assets/index.html")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(content)
	})

	return srv
}

// outputsHandler 按解码后的路径去掉前缀再交给文件服务。
// 导出路径里 & + = 等字符被转义，RawPath 与前缀对不上，不能直接用 StripPrefix
func outputsHandler(prefix, dir string) nethttp.Handler {
	fs := nethttp.FileServer(nethttp.Dir(dir))
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/" + strings.TrimPrefix(r.URL.Path, prefix)
		r2.URL.RawPath = ""
		fs.ServeHTTP(w, r2)
	})
}

// outputsPrefix 由输出目录得到路由前缀。目录为 "." 或在工作目录之外的相对路径时无法映射
func outputsPrefix(dir string) (string, bool) {
	p := filepath.ToSlash(filepath.Clean(dir))
	if p == "." || p == "/" || p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return "/" + strings.TrimPrefix(p, "/") + "/", true
}
