package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Format 导出格式
type Format string

const (
	FormatMD   Format = "md"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// AllFormats 报告生成后默认导出的格式
var AllFormats = []Format{FormatMD, FormatPDF, FormatDOCX}

// ParseFormats 解析逗号分隔的格式列表，忽略大小写和重复项
func ParseFormats(s string) ([]Format, error) {
	var out []Format
	seen := make(map[Format]struct{})
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f == "" {
			continue
		}
		switch f {
		case FormatMD, FormatPDF, FormatDOCX:
		case "word":
			f = FormatDOCX
		default:
			return nil, fmt.Errorf("unknown format: %s", part)
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, errors.New("no export format given")
	}
	return out, nil
}

// Write 依次导出各格式，返回格式到转义路径的映射。
// md 写入失败或文件名非法时返回错误；pdf/docx 转换失败只记日志，对应路径为空
func (e *Exporter) Write(ctx context.Context, text, name string, formats ...Format) (map[Format]string, error) {
	paths := make(map[Format]string, len(formats))
	for _, f := range formats {
		var (
			p   string
			err error
		)
		switch f {
		case FormatMD:
			p, err = e.WriteTextToMD(text, name)
		case FormatPDF:
			p, err = e.WriteMDToPDF(ctx, text, name)
		case FormatDOCX:
			p, err = e.WriteMDToWord(ctx, text, name)
		default:
			return nil, fmt.Errorf("unknown format: %s", f)
		}

		var convErr *ConversionError
		if err != nil && !errors.As(err, &convErr) {
			return nil, err
		}
		paths[f] = p
	}
	return paths, nil
}

var nameReplacer = strings.NewReplacer(
	"/", "-", `\`, "-", ":", "-", "*", "-", "?", "-",
	`"`, "-", "<", "-", ">", "-", "|", "-", "..", "_",
	" ", "_", "\t", "_", "\n", "_", "\r", "_",
)

// FileName 由查询生成报告文件名 task_<unix>_<query>，去掉路径分隔符等特殊字符
func FileName(query string, now time.Time) string {
	s := nameReplacer.Replace(fmt.Sprintf("task_%d_%s", now.Unix(), query))
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
	// 替换后仍可能拼出 ".."
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", "_")
	}
	return s
}
