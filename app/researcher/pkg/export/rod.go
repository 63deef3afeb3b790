package export

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/iWorld-y/research_report/app/researcher/pkg/logger"
)

// RodRenderer 用无头 Chrome 打印 PDF。浏览器在第一次渲染时启动，多次渲染共用
type RodRenderer struct {
	bin string

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRodRenderer bin 为空时由 launcher 查找或下载 Chrome
func NewRodRenderer(bin string) *RodRenderer {
	return &RodRenderer{bin: bin}
}

func (r *RodRenderer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		if _, err := r.browser.Version(); err == nil {
			return r.browser, nil
		}
		logger.Log.Warn("浏览器连接失效，重新启动")
		r.closeLocked()
	}

	l := launcher.New().Headless(true)
	if r.bin != "" {
		l = l.Bin(r.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	logger.Log.Infof("无头浏览器已启动: %s", controlURL)

	r.launcher = l
	r.browser = browser
	return browser, nil
}

// RenderPDF 每次渲染使用独立的标签页
func (r *RodRenderer) RenderPDF(ctx context.Context, html string, w io.Writer) error {
	browser, err := r.connect()
	if err != nil {
		return err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	p := page.Context(ctx)
	if err := p.SetDocumentContent(html); err != nil {
		return fmt.Errorf("set content: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}

	stream, err := p.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return fmt.Errorf("print pdf: %w", err)
	}
	if _, err := io.Copy(w, stream); err != nil {
		return fmt.Errorf("read pdf stream: %w", err)
	}
	return nil
}

// Close 关闭浏览器，未启动时为空操作
func (r *RodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *RodRenderer) closeLocked() error {
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher = nil
	}
	return err
}
