// Package docx 把 goldmark 渲染出的 HTML 写成 Word 文档，底层基于 godocx 的默认模板。
package docx

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

// Document 一个 Word 文档，由段落和表格顺序组成
type Document struct {
	root *docx.RootDoc
}

// New 基于 godocx 默认模板创建空文档
func New() (*Document, error) {
	root, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("new docx: %w", err)
	}
	return &Document{root: root}, nil
}

// AddHTML 解析 HTML 片段并追加到文档末尾
func (d *Document) AddHTML(src string) error {
	blocks, err := convertHTML(src)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		b.render(d.root)
	}
	return nil
}

// WriteTo 把文档打包成 .docx 写入 w
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	if err := d.root.Write(&buf); err != nil {
		return 0, fmt.Errorf("write docx: %w", err)
	}
	return buf.WriteTo(w)
}
