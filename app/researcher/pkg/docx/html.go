package docx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/gg/gptr"
	"github.com/gomutex/godocx/docx"
	"github.com/gomutex/godocx/wml/ctypes"
	"github.com/gomutex/godocx/wml/stypes"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// 默认模板中的样式 ID
const (
	styleCode     = "MacroText"
	styleQuote    = "Quote"
	styleListItem = "ListParagraph"
	styleTable    = "TableGrid"

	linkColor = "0563C1"
	codeFill  = "F2F2F2"
)

type block interface {
	render(rd *docx.RootDoc)
}

type runStyle struct {
	bold, italic, strike, code bool
	link                       string // 目标 URL
}

type run struct {
	text  string
	style runStyle
	br    bool
}

type paragraph struct {
	style  string
	indent int // 缩进层级，每级 360 twips
	rule   bool
	runs   []run
}

type table struct {
	rows [][]cell
}

type cell struct {
	paras []*paragraph
}

type blockCtx struct {
	style string
	pre   bool
	level int
}

// converter 把 HTML 节点树压平为段落与表格
type converter struct {
	blocks []block
	cur    *paragraph
	marker string // 待写入下一个段落开头的列表标记
}

func convertHTML(src string) ([]block, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	c := &converter{}
	c.walk(root, runStyle{}, blockCtx{})
	c.flush()
	return c.blocks, nil
}

func (c *converter) open(style string, indent int) {
	c.flush()
	c.cur = c.newParagraph(style, indent)
}

func (c *converter) newParagraph(style string, indent int) *paragraph {
	p := &paragraph{style: style, indent: indent}
	if c.marker != "" {
		p.runs = append(p.runs, run{text: c.marker})
		c.marker = ""
	}
	return p
}

// flush 结束当前段落，去掉首尾空白，空段落丢弃
func (c *converter) flush() {
	p := c.cur
	c.cur = nil
	if p == nil {
		return
	}
	if p.style != styleCode {
		if len(p.runs) > 0 && !p.runs[0].br {
			p.runs[0].text = strings.TrimLeft(p.runs[0].text, " ")
		}
		if n := len(p.runs); n > 0 && !p.runs[n-1].br {
			p.runs[n-1].text = strings.TrimRight(p.runs[n-1].text, " ")
		}
	}
	for _, r := range p.runs {
		if r.br || r.text != "" {
			c.blocks = append(c.blocks, p)
			return
		}
	}
}

func (c *converter) add(r run, bc blockCtx) {
	if c.cur == nil {
		c.cur = c.newParagraph(bc.style, bc.level)
	}
	c.cur.runs = append(c.cur.runs, r)
}

func (c *converter) walk(n *html.Node, rs runStyle, bc blockCtx) {
	switch n.Type {
	case html.TextNode:
		c.text(n.Data, rs, bc)
		return
	case html.DocumentNode:
		c.children(n, rs, bc)
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Title:
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		c.open("Heading"+strconv.Itoa(level), 0)
		c.children(n, rs, bc)
		c.flush()
	case atom.P, atom.Div, atom.Section, atom.Article:
		c.open(bc.style, bc.level)
		c.children(n, rs, bc)
		c.flush()
	case atom.Ul, atom.Ol:
		c.list(n, rs, bc)
	case atom.Pre:
		c.open(styleCode, bc.level)
		rs.code = true
		bc.pre = true
		c.children(n, rs, bc)
		c.flush()
	case atom.Blockquote:
		c.flush()
		bc.style = styleQuote
		c.children(n, rs, bc)
		c.flush()
	case atom.Hr:
		c.flush()
		c.blocks = append(c.blocks, &paragraph{rule: true})
	case atom.Br:
		c.add(run{br: true, style: rs}, bc)
	case atom.Table:
		c.flush()
		c.blocks = append(c.blocks, c.table(n, rs), &paragraph{})
	case atom.Strong, atom.B:
		rs.bold = true
		c.children(n, rs, bc)
	case atom.Em, atom.I:
		rs.italic = true
		c.children(n, rs, bc)
	case atom.Del, atom.S, atom.Strike:
		rs.strike = true
		c.children(n, rs, bc)
	case atom.Code:
		rs.code = true
		c.children(n, rs, bc)
	case atom.A:
		if href := attr(n, "href"); href != "" && !strings.HasPrefix(href, "#") {
			rs.link = href
		}
		c.children(n, rs, bc)
	case atom.Img:
		if alt := attr(n, "alt"); alt != "" {
			c.add(run{text: "[" + alt + "]", style: rs}, bc)
		}
	case atom.Input:
		// GFM 任务列表
		if attr(n, "type") == "checkbox" {
			mark := "☐ "
			if hasAttr(n, "checked") {
				mark = "☑ "
			}
			c.add(run{text: mark, style: rs}, bc)
		}
	default:
		c.children(n, rs, bc)
	}
}

func (c *converter) children(n *html.Node, rs runStyle, bc blockCtx) {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.walk(ch, rs, bc)
	}
}

func (c *converter) text(s string, rs runStyle, bc blockCtx) {
	if bc.pre {
		s = strings.TrimSuffix(s, "\n")
		lines := strings.Split(s, "\n")
		for i, line := range lines {
			if i > 0 {
				c.add(run{br: true, style: rs}, bc)
			}
			if line != "" {
				c.add(run{text: line, style: rs}, bc)
			}
		}
		return
	}

	s = collapseSpace(s)
	if strings.TrimSpace(s) == "" && c.cur == nil {
		return
	}
	c.add(run{text: s, style: rs}, bc)
}

// list 每个列表项一个段落，编号以文本前缀表示
func (c *converter) list(n *html.Node, rs runStyle, bc blockCtx) {
	c.flush()
	ordered := n.DataAtom == atom.Ol
	idx := 1
	if v, err := strconv.Atoi(attr(n, "start")); err == nil {
		idx = v
	}

	inner := blockCtx{style: styleListItem, level: bc.level + 1}
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		c.flush()
		c.marker = "• "
		if ordered {
			c.marker = strconv.Itoa(idx) + ". "
			idx++
		}
		c.children(li, rs, inner)
		c.flush()
		if c.marker != "" {
			c.blocks = append(c.blocks, c.newParagraph(inner.style, inner.level))
		}
	}
}

func (c *converter) table(n *html.Node, rs runStyle) *table {
	t := &table{}
	var rows func(*html.Node)
	rows = func(n *html.Node) {
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			if ch.Type != html.ElementNode {
				continue
			}
			switch ch.DataAtom {
			case atom.Thead, atom.Tbody, atom.Tfoot:
				rows(ch)
			case atom.Tr:
				t.rows = append(t.rows, c.row(ch, rs))
			}
		}
	}
	rows(n)
	return t
}

func (c *converter) row(tr *html.Node, rs runStyle) []cell {
	var cells []cell
	for td := tr.FirstChild; td != nil; td = td.NextSibling {
		if td.Type != html.ElementNode || (td.DataAtom != atom.Td && td.DataAtom != atom.Th) {
			continue
		}
		// 表头以粗体区分
		crs := rs
		if td.DataAtom == atom.Th {
			crs.bold = true
		}
		sub := &converter{}
		sub.children(td, crs, blockCtx{})
		sub.flush()

		var paras []*paragraph
		for _, b := range sub.blocks {
			if p, ok := b.(*paragraph); ok {
				paras = append(paras, p)
			}
		}
		cells = append(cells, cell{paras: paras})
	}
	return cells
}

func (p *paragraph) render(rd *docx.RootDoc) {
	p.fill(rd.AddEmptyParagraph())
}

// fill 把段落内容写入 godocx 段落
func (p *paragraph) fill(dp *docx.Paragraph) {
	if p.style != "" {
		dp.Style(p.style)
	}
	if p.rule || p.indent > 0 {
		ct := dp.GetCT()
		if ct.Property == nil {
			ct.Property = &ctypes.ParagraphProp{}
		}
		if p.rule {
			ct.Property.Border = &ctypes.ParaBorder{Bottom: &ctypes.Border{
				Val:   stypes.BorderStyleSingle,
				Color: gptr.Of("auto"),
				Space: gptr.Of("1"),
			}}
		}
		if p.indent > 0 {
			ct.Property.Indent = &ctypes.Indent{
				Left:    gptr.Of((p.indent + 1) * 360),
				Hanging: gptr.Of(uint64(360)),
			}
		}
	}

	for i := 0; i < len(p.runs); {
		link := p.runs[i].style.link
		if link == "" {
			p.runs[i].fill(dp)
			i++
			continue
		}
		// 模板不支持外部超链接，相邻且指向同一链接的 run 之后补上 URL
		var text strings.Builder
		for i < len(p.runs) && p.runs[i].style.link == link {
			p.runs[i].fill(dp)
			text.WriteString(p.runs[i].text)
			i++
		}
		if strings.TrimSpace(text.String()) != link {
			dp.AddText(" (" + link + ")")
		}
	}
}

func (r run) fill(dp *docx.Paragraph) {
	if r.br {
		dp.AddRun().AddBreak(nil)
		return
	}
	dr := dp.AddText(r.text)
	s := r.style
	if s.link != "" {
		dr.Color(linkColor).Underline(stypes.UnderlineSingle)
	}
	if s.code {
		dr.Shading(stypes.ShdClear, "auto", codeFill)
	}
	if s.bold {
		dr.Bold(true)
	}
	if s.italic {
		dr.Italic(true)
	}
	if s.strike {
		dr.Strike(true)
	}
}

func (t *table) render(rd *docx.RootDoc) {
	cols := 0
	for _, row := range t.rows {
		cols = max(cols, len(row))
	}
	dt := rd.AddTable()
	dt.Style(styleTable)

	for _, row := range t.rows {
		dr := dt.AddRow()
		for i := range cols {
			dc := dr.AddCell()
			var paras []*paragraph
			if i < len(row) {
				paras = row[i].paras
			}
			// 每个单元格至少包含一个段落
			if len(paras) == 0 {
				dc.AddEmptyPara()
			}
			for _, p := range paras {
				p.fill(dc.AddEmptyPara())
			}
		}
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func collapseSpace(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			if !space {
				sb.WriteByte(' ')
			}
			space = true
		default:
			sb.WriteRune(r)
			space = false
		}
	}
	return sb.String()
}
