package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
	"github.com/iWorld-y/research_report/app/researcher/pkg/export"
	"github.com/iWorld-y/research_report/app/researcher/pkg/logger"
	dm "github.com/iWorld-y/research_report/app/researcher/pkg/model"
	"github.com/iWorld-y/research_report/app/researcher/pkg/report"
	"github.com/iWorld-y/research_report/app/researcher/pkg/storage"
)

type runOptions struct {
	query        string
	reportType   string
	reportSource string
	tone         string
	domains      []string
	sourceURLs   []string
	documentURLs []string
	headers      map[string]string
	requestCfg   string
	name         string
	formats      string
	print        bool
}

func (o *runOptions) request() dm.ReportRequest {
	return dm.ReportRequest{
		Query:        strings.TrimSpace(o.query),
		QueryDomains: o.domains,
		ReportType:   dm.ReportType(o.reportType),
		ReportSource: dm.ReportSource(o.reportSource),
		SourceURLs:   o.sourceURLs,
		DocumentURLs: o.documentURLs,
		Tone:         dm.Tone(o.tone),
		ConfigPath:   o.requestCfg,
		Headers:      o.headers,
	}
}

func newRunCmd(load func() (*config.Config, error)) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [query]",
		Short: "Research a query and write the report",
		Example: `  researcher run "What is the state of fusion energy?" --format md,pdf
  researcher run -q "Go 1.25 release notes" --source static --source-url https://go.dev/doc/go1.25 --print`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				o.query = args[0]
			}
			return runReport(cmd, o, load)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.query, "query", "q", "", "research query")
	f.StringVarP(&o.reportType, "type", "t", string(dm.ResearchReport),
		"report type: research_report, resource_report, outline_report, custom_report, detailed_report")
	f.StringVarP(&o.reportSource, "source", "s", string(dm.SourceWeb), "report source: web, static, local, documents, hybrid")
	f.StringVar(&o.tone, "tone", string(dm.ToneObjective), "report tone")
	f.StringSliceVar(&o.domains, "domain", nil, "restrict web search to these domains")
	f.StringSliceVar(&o.sourceURLs, "source-url", nil, "URLs to research for the static source")
	f.StringSliceVar(&o.documentURLs, "document-url", nil, "document URLs for the local/documents/hybrid sources")
	f.StringToStringVar(&o.headers, "header", nil, "headers forwarded when fetching given URLs (key=value)")
	f.StringVar(&o.requestCfg, "request-config", "", "config file used by the research engine for this request")
	f.StringVarP(&o.name, "name", "n", "", "output file name without extension (default task_<unix>_<query>)")
	f.StringVarP(&o.formats, "format", "f", "md,pdf,docx", "comma separated export formats")
	f.BoolVarP(&o.print, "print", "p", false, "render the report in the terminal")
	return cmd
}

func runReport(cmd *cobra.Command, o *runOptions, load func() (*config.Config, error)) error {
	req := o.request()
	if req.Query == "" {
		return errors.New("query is required")
	}
	formats, err := export.ParseFormats(o.formats)
	if err != nil {
		return err
	}

	cfg, err := load()
	if err != nil {
		return err
	}
	exp, err := newExporter(cfg.Output)
	if err != nil {
		return err
	}
	defer exp.Close()

	ctx := cmd.Context()
	store := openStorage(ctx, cfg.DB)
	if store != nil {
		defer store.Close()
	}
	rec := newRecorder(store)
	rec.start(ctx, req)

	text, err := report.NewBasicReport(req, newFactory(cfg)).Run(ctx)
	if err != nil {
		rec.fail(ctx, err)
		return err
	}

	name := o.name
	if name == "" {
		name = export.FileName(req.Query, time.Now())
	}
	paths, err := exp.Write(ctx, text, name, formats...)
	if err != nil {
		rec.fail(ctx, err)
		return err
	}
	rec.finish(ctx, storage.Paths{MD: paths[export.FormatMD], PDF: paths[export.FormatPDF], DOCX: paths[export.FormatDOCX]})

	out := cmd.OutOrStdout()
	if o.print {
		fmt.Fprintln(out, renderMarkdown(text))
	}
	for _, f := range formats {
		p := paths[f]
		if p == "" {
			p = "(conversion failed, see log)"
		}
		fmt.Fprintf(out, "%-4s %s\n", f, p)
	}
	return nil
}

// recorder 把任务写入数据库，store 为 nil 时为空操作
type recorder struct {
	store *storage.Storage
	id    int64
}

func newRecorder(store *storage.Storage) *recorder {
	return &recorder{store: store}
}

func (r *recorder) start(ctx context.Context, req dm.ReportRequest) {
	if r.store == nil {
		return
	}
	id, err := r.store.CreateRun(ctx, req)
	if err != nil {
		logger.Log.Errorf("记录任务失败: %v", err)
		return
	}
	r.id = id
}

func (r *recorder) finish(ctx context.Context, paths storage.Paths) {
	if r.store == nil || r.id == 0 {
		return
	}
	if err := r.store.FinishRun(ctx, r.id, paths); err != nil {
		logger.Log.Errorf("更新任务状态失败 [%d]: %v", r.id, err)
	}
}

func (r *recorder) fail(ctx context.Context, cause error) {
	if r.store == nil || r.id == 0 {
		return
	}
	if err := r.store.FailRun(ctx, r.id, cause.Error()); err != nil {
		logger.Log.Errorf("更新任务状态失败 [%d]: %v", r.id, err)
	}
}
