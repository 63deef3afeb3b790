package export

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
	"github.com/iWorld-y/research_report/app/researcher/pkg/docx"
	"github.com/iWorld-y/research_report/app/researcher/pkg/logger"
)

// 文件名最多保留的字符数
const nameLimit = 60

// ErrInvalidName 文件名包含路径分隔符，或者就是 "." / ".."
var ErrInvalidName = errors.New("invalid file name")

// readFile 读回临时文件，测试中可替换
var readFile = os.ReadFile

//go:embed assets/pdf_styles.css
var defaultStylesheet string

// ConversionError 格式转换失败。对应操作同时返回空结果
type ConversionError struct {
	Converter string // pdf / docx
	Op        string // write / export
	Err       error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Converter, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// PDFRenderer 把完整的 HTML 页面打印为 PDF 写入 w
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string, w io.Writer) error
}

// Exporter 把 Markdown 报告导出为 md / pdf / docx
type Exporter struct {
	dir        string
	stylesheet string
	renderer   PDFRenderer
	md         goldmark.Markdown
}

type Option func(*Exporter)

// WithDir 输出目录，默认 outputs
func WithDir(dir string) Option {
	return func(e *Exporter) {
		e.dir = dir
	}
}

// WithStylesheet 替换 PDF 默认样式
func WithStylesheet(css string) Option {
	return func(e *Exporter) {
		e.stylesheet = css
	}
}

func WithRenderer(r PDFRenderer) Option {
	return func(e *Exporter) {
		e.renderer = r
	}
}

// New 未指定渲染器时使用无头 Chrome
func New(opts ...Option) *Exporter {
	e := &Exporter{
		dir:        "outputs",
		stylesheet: defaultStylesheet,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.renderer == nil {
		e.renderer = NewRodRenderer("")
	}
	return e
}

// NewFromConfig 按 output 配置创建，样式文件读取失败时返回错误
func NewFromConfig(cfg config.OutputConfig, opts ...Option) (*Exporter, error) {
	base := []Option{WithRenderer(NewRodRenderer(cfg.BrowserBin))}
	if cfg.Dir != "" {
		base = append(base, WithDir(cfg.Dir))
	}
	if cfg.PDFStylesheet != "" {
		css, err := os.ReadFile(cfg.PDFStylesheet)
		if err != nil {
			return nil, fmt.Errorf("read pdf stylesheet: %w", err)
		}
		base = append(base, WithStylesheet(string(css)))
	}
	return New(append(base, opts...)...), nil
}

// Dir 输出目录
func (e *Exporter) Dir() string {
	return e.dir
}

// Close 释放渲染器持有的浏览器
func (e *Exporter) Close() error {
	if c, ok := e.renderer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WriteToFile 以 UTF-8 写入文本，非字符串先格式化，非法字节替换为 U+FFFD
func WriteToFile(path string, text any) error {
	var s string
	switch v := text.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}
	return os.WriteFile(path, []byte(strings.ToValidUTF8(s, "\uFFFD")), 0o644)
}

// WriteTextToMD 写入 <dir>/<name>.md，返回转义后的路径。错误直接返回
func (e *Exporter) WriteTextToMD(text, name string) (string, error) {
	path, err := e.target(name, ".md")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := WriteToFile(path, text); err != nil {
		return "", err
	}
	logger.Log.Infof("报告已写入 %s", path)
	return escapePath(path), nil
}

// WriteMDToPDF 转换失败时记录日志，返回 "" 和 *ConversionError
func (e *Exporter) WriteMDToPDF(ctx context.Context, text, name string) (string, error) {
	path, err := e.target(name, ".pdf")
	if err != nil {
		return "", err
	}
	if err := e.writeFile(path, func(w io.Writer) error { return e.renderPDF(ctx, text, w) }); err != nil {
		return "", e.fail("pdf", "write", err)
	}
	logger.Log.Infof("报告已写入 %s", path)
	return escapePath(path), nil
}

// WriteMDToWord Markdown 转 HTML 再转 docx，失败时返回 "" 和 *ConversionError
func (e *Exporter) WriteMDToWord(ctx context.Context, text, name string) (string, error) {
	path, err := e.target(name, ".docx")
	if err != nil {
		return "", err
	}
	if err := e.writeFile(path, func(w io.Writer) error { return e.renderDOCX(ctx, text, w) }); err != nil {
		return "", e.fail("docx", "write", err)
	}
	logger.Log.Infof("报告已写入 %s", path)
	return escapePath(path), nil
}

// ExportPDF 经临时文件生成 PDF 并返回内容，临时文件总会被删除
func (e *Exporter) ExportPDF(ctx context.Context, text string) ([]byte, error) {
	data, err := e.viaTemp(".pdf", func(w io.Writer) error { return e.renderPDF(ctx, text, w) })
	if err != nil {
		return nil, e.fail("pdf", "export", err)
	}
	return data, nil
}

// ExportDOCX 同 ExportPDF，输出 docx
func (e *Exporter) ExportDOCX(ctx context.Context, text string) ([]byte, error) {
	data, err := e.viaTemp(".docx", func(w io.Writer) error { return e.renderDOCX(ctx, text, w) })
	if err != nil {
		return nil, e.fail("docx", "export", err)
	}
	return data, nil
}

func (e *Exporter) fail(converter, op string, err error) error {
	logger.Log.Errorf("Markdown 转 %s 失败: %v", strings.ToUpper(converter), err)
	return &ConversionError{Converter: converter, Op: op, Err: err}
}

// target 校验并截断文件名，返回 <dir>/<name><ext>
func (e *Exporter) target(name, ext string) (string, error) {
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(e.dir, truncateName(name)+ext), nil
}

// writeFile 渲染到 path，失败时删除不完整的文件
func (e *Exporter) writeFile(path string, render func(io.Writer) error) (err error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return render(f)
}

// viaTemp 渲染到 <dir>/temp_<uuid><ext> 后读回
func (e *Exporter) viaTemp(ext string, render func(io.Writer) error) ([]byte, error) {
	tmp := filepath.Join(e.dir, "temp_"+uuid.NewString()+ext)
	defer os.Remove(tmp)

	if err := e.writeFile(tmp, render); err != nil {
		return nil, err
	}
	return readFile(tmp)
}

func (e *Exporter) toHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := e.md.Convert([]byte(strings.ToValidUTF8(text, "\uFFFD")), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}

func (e *Exporter) renderPDF(ctx context.Context, text string, w io.Writer) error {
	body, err := e.toHTML(text)
	if err != nil {
		return err
	}
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
%s
</style>
</head>
<body>
%s
</body>
</html>
`, e.stylesheet, body)
	return e.renderer.RenderPDF(ctx, page, w)
}

func (e *Exporter) renderDOCX(ctx context.Context, text string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := e.toHTML(text)
	if err != nil {
		return err
	}
	doc, err := docx.New()
	if err != nil {
		return err
	}
	if err := doc.AddHTML(body); err != nil {
		return err
	}
	_, err = doc.WriteTo(w)
	return err
}

// truncateName 按字符截断，非法 UTF-8 先替换
func truncateName(name string) string {
	name = strings.ToValidUTF8(name, "\uFFFD")
	if utf8.RuneCountInString(name) <= nameLimit {
		return name
	}
	return string([]rune(name)[:nameLimit])
}

// escapePath 对路径做百分号转义，只保留字母数字、"-_.~" 和分隔符 "/"
func escapePath(p string) string {
	const hex = "0123456789ABCDEF"
	p = filepath.ToSlash(p)
	var sb strings.Builder
	sb.Grow(len(p))
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '-', c == '_', c == '.', c == '~', c == '/':
			sb.WriteByte(c)
		default:
			sb.WriteByte('%')
			sb.WriteByte(hex[c>>4])
			sb.WriteByte(hex[c&0x0f])
		}
	}
	return sb.String()
}
