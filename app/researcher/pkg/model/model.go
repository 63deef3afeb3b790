package model

import "github.com/iWorld-y/research_report/app/researcher/pkg/stream"

// ReportType 报告类型
type ReportType string

const (
	ResearchReport ReportType = "research_report"
	ResourceReport ReportType = "resource_report"
	OutlineReport  ReportType = "outline_report"
	CustomReport   ReportType = "custom_report"
	DetailedReport ReportType = "detailed_report"
)

// ReportSource 调研资料来源
type ReportSource string

const (
	SourceWeb       ReportSource = "web"
	SourceStatic    ReportSource = "static"
	SourceLocal     ReportSource = "local"
	SourceDocuments ReportSource = "documents"
	SourceHybrid    ReportSource = "hybrid"
)

// Tone 报告语气，本层不做解释，原样传给引擎
type Tone string

const (
	ToneObjective  Tone = "Objective"
	ToneFormal     Tone = "Formal"
	ToneAnalytical Tone = "Analytical"
	ToneInformal   Tone = "Informal"
)

// ReportRequest 一次报告请求的全部参数
type ReportRequest struct {
	Query             string
	QueryDomains      []string
	ReportType        ReportType
	ReportSource      ReportSource
	SourceURLs        []string
	DocumentURLs      []string
	Tone              Tone
	ConfigPath        string
	Transport         stream.Transport
	Headers           map[string]string
	AdditionalSources []map[string]any
}

// Source 调研过程中收集到的一条资料
type Source struct {
	Title   string
	URL     string
	Content string
	PubDate string
	Query   string // 命中该资料的子查询
}
