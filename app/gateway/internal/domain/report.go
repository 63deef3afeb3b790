package domain

import (
	"strings"

	dm "github.com/iWorld-y/research_report/app/researcher/pkg/model"
	"github.com/iWorld-y/research_report/app/researcher/pkg/stream"
)

// Task 客户端通过 websocket 发来的报告任务
type Task struct {
	Task              string            `json:"task"`
	ReportType        string            `json:"report_type"`
	ReportSource      string            `json:"report_source"`
	Tone              string            `json:"tone"`
	QueryDomains      []string          `json:"query_domains"`
	SourceURLs        []string          `json:"source_urls"`
	DocumentURLs      []string          `json:"document_urls"`
	Headers           map[string]string `json:"headers"`
	ConfigPath        string            `json:"config_path"`
	AdditionalSources []map[string]any  `json:"additional_sources"`
}

// Request 转换为调研请求，进度通过 t 推送
func (t *Task) Request(tr stream.Transport) dm.ReportRequest {
	reportType := dm.ReportType(t.ReportType)
	if reportType == "" {
		reportType = dm.ResearchReport
	}
	source := dm.ReportSource(t.ReportSource)
	if source == "" {
		source = dm.SourceWeb
	}
	return dm.ReportRequest{
		Query:             strings.TrimSpace(t.Task),
		QueryDomains:      t.QueryDomains,
		ReportType:        reportType,
		ReportSource:      source,
		SourceURLs:        t.SourceURLs,
		DocumentURLs:      t.DocumentURLs,
		Tone:              dm.Tone(t.Tone),
		ConfigPath:        t.ConfigPath,
		Transport:         tr,
		Headers:           t.Headers,
		AdditionalSources: t.AdditionalSources,
	}
}

// ReportPaths 导出文件的转义路径，转换失败的格式为空
type ReportPaths struct {
	MD   string `json:"md"`
	PDF  string `json:"pdf"`
	DOCX string `json:"docx"`
}

// ReportRun 报告任务记录
type ReportRun struct {
	ID           int64       `json:"id"`
	Query        string      `json:"query"`
	ReportType   string      `json:"report_type"`
	ReportSource string      `json:"report_source"`
	Tone         string      `json:"tone"`
	Status       string      `json:"status"`
	Error        string      `json:"error,omitempty"`
	Paths        ReportPaths `json:"paths"`
	CreatedAt    string      `json:"created_at"`
	FinishedAt   string      `json:"finished_at,omitempty"`
}
