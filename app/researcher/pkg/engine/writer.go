package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/iWorld-y/research_report/app/researcher/pkg/logger"
	dm "github.com/iWorld-y/research_report/app/researcher/pkg/model"
	"github.com/iWorld-y/research_report/app/researcher/pkg/stream"
)

// WriteReport 基于已收集的资料撰写 Markdown 报告。必须在 ConductResearch 成功之后调用，且只能调用一次。
func (r *Researcher) WriteReport(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateUnstarted:
		return "", ErrNotResearched
	case StateReported:
		return "", ErrAlreadyReported
	}

	stream.Logs(r.transport, "writing_report",
		fmt.Sprintf("✍️ 正在撰写报告: %s", r.req.Query), nil)

	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt(r.req.ReportType)},
		{Role: schema.User, Content: reportPrompt(r.req, buildContext(r.sources), r.cfg.Research.TotalWords)},
	}

	content, err := r.generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	report := stripCodeFence(content)
	if r.req.ReportType != dm.OutlineReport {
		report = appendReferences(report, r.sources)
	}

	r.state = StateReported
	if err := stream.Send(r.transport, stream.Message{Type: stream.TypeReport, Output: report}); err != nil {
		logger.Log.Warnf("推送报告失败: %v", err)
	}
	stream.Logs(r.transport, "report_written", "📝 报告撰写完成", nil)
	return report, nil
}

func systemPrompt(t dm.ReportType) string {
	switch t {
	case dm.ResourceReport:
		return "你是一名资料整理专家，擅长为研究问题推荐并点评参考资料。"
	case dm.OutlineReport:
		return "你是一名研究规划专家，擅长为研究报告设计结构清晰的大纲。"
	default:
		return "你是一名资深研究分析师，擅长基于资料撰写客观、严谨、结构清晰的研究报告。"
	}
}

// reportPrompt 按报告类型拼装用户提示词
func reportPrompt(req dm.ReportRequest, material string, totalWords int) string {
	if totalWords <= 0 {
		totalWords = 1000
	}
	tone := string(req.Tone)
	if tone == "" {
		tone = string(dm.ToneObjective)
	}
	date := time.Now().Format(time.DateOnly)

	var sb strings.Builder
	fmt.Fprintf(&sb, "资料：\n\"\"\"\n%s\"\"\"\n\n", material)

	switch req.ReportType {
	case dm.ResourceReport:
		fmt.Fprintf(&sb, "请基于以上资料，为以下问题生成一份参考资料推荐报告：\"%s\"。\n", req.Query)
		sb.WriteString("报告需要逐条说明每份资料的内容、与问题的相关性以及可信度，使用 Markdown 格式，每条资料附上 Markdown 链接。\n")
	case dm.OutlineReport:
		fmt.Fprintf(&sb, "请基于以上资料，为以下问题设计一份研究报告大纲：\"%s\"。\n", req.Query)
		sb.WriteString("大纲使用 Markdown 标题层级表示章节结构，每个章节附一句说明，不要撰写正文。\n")
	case dm.CustomReport:
		fmt.Fprintf(&sb, "请基于以上资料完成以下任务：%s\n", req.Query)
	case dm.DetailedReport:
		totalWords *= 2
		fallthrough
	default:
		fmt.Fprintf(&sb, "请基于以上资料，针对以下问题撰写一份详细的研究报告：\"%s\"。\n", req.Query)
		fmt.Fprintf(&sb, "报告需要结构清晰、信息详实，尽量包含事实与数据，字数不少于 %d 字。\n", totalWords)
		sb.WriteString("请给出你自己基于资料得出的明确结论，避免空泛的总结。\n")
		sb.WriteString("正文引用资料时使用 Markdown 超链接标注来源，例如 ([来源标题](url))。\n")
	}

	fmt.Fprintf(&sb, "报告语气：%s。\n", tone)
	sb.WriteString("报告使用与问题相同的语言撰写，输出 Markdown 格式，不要用代码块包裹整个报告。\n")
	fmt.Fprintf(&sb, "当前日期：%s。\n", date)
	return sb.String()
}

func buildContext(sources []dm.Source) string {
	var sb strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&sb, "资料 %d:\n", i+1)
		if s.URL != "" {
			fmt.Fprintf(&sb, "来源: %s\n", s.URL)
		}
		if s.Title != "" {
			fmt.Fprintf(&sb, "标题: %s\n", s.Title)
		}
		fmt.Fprintf(&sb, "内容: %s\n\n", s.Content)
	}
	return sb.String()
}

// appendReferences 报告没有参考资料章节时，追加来源链接列表
func appendReferences(report string, sources []dm.Source) string {
	lower := strings.ToLower(report)
	if strings.Contains(lower, "## references") || strings.Contains(report, "## 参考") {
		return report
	}

	var refs []string
	for _, s := range sources {
		if s.URL == "" {
			continue
		}
		title := s.Title
		if title == "" {
			title = s.URL
		}
		refs = append(refs, fmt.Sprintf("- [%s](%s)", title, s.URL))
	}
	if len(refs) == 0 {
		return report
	}
	return strings.TrimRight(report, "\n") + "\n\n## References\n\n" + strings.Join(refs, "\n") + "\n"
}
