package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/research_report/app/gateway/internal/domain"
	"github.com/iWorld-y/research_report/app/researcher/pkg/export"
	dm "github.com/iWorld-y/research_report/app/researcher/pkg/model"
	"github.com/iWorld-y/research_report/app/researcher/pkg/report"
	"github.com/iWorld-y/research_report/app/researcher/pkg/stream"
)

// mockReportRepo 模拟任务仓库
type mockReportRepo struct {
	created  []dm.ReportRequest
	finished map[int64]domain.ReportPaths
	failed   map[int64]string
}

func newMockRepo() *mockReportRepo {
	return &mockReportRepo{finished: map[int64]domain.ReportPaths{}, failed: map[int64]string{}}
}

func (m *mockReportRepo) CreateRun(_ context.Context, req dm.ReportRequest) (int64, error) {
	m.created = append(m.created, req)
	return int64(len(m.created)), nil
}

func (m *mockReportRepo) FinishRun(_ context.Context, id int64, paths domain.ReportPaths) error {
	m.finished[id] = paths
	return nil
}

func (m *mockReportRepo) FailRun(_ context.Context, id int64, reason string) error {
	m.failed[id] = reason
	return nil
}

func (m *mockReportRepo) ListRuns(context.Context, int, int) ([]*domain.ReportRun, int, error) {
	return []*domain.ReportRun{{ID: 1, Query: "Test Report"}}, 1, nil
}

func (m *mockReportRepo) GetRun(_ context.Context, id int64) (*domain.ReportRun, error) {
	return &domain.ReportRun{ID: id}, nil
}

type mockResearcher struct {
	err    error
	report string
}

func (m *mockResearcher) ConductResearch(context.Context) error { return m.err }

func (m *mockResearcher) WriteReport(context.Context) (string, error) { return m.report, nil }

type mockExporter struct {
	writeErr  error
	exportErr error
	name      string
	text      string
}

func (m *mockExporter) Write(_ context.Context, text, name string, formats ...export.Format) (map[export.Format]string, error) {
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	m.name, m.text = name, text
	out := map[export.Format]string{}
	for _, f := range formats {
		out[f] = "outputs/" + name + "." + string(f)
	}
	// pdf 转换失败
	out[export.FormatPDF] = ""
	return out, nil
}

func (m *mockExporter) ExportPDF(_ context.Context, text string) ([]byte, error) {
	if m.exportErr != nil {
		return nil, &export.ConversionError{Converter: "pdf", Op: "export", Err: m.exportErr}
	}
	return []byte("%PDF " + text), nil
}

func (m *mockExporter) ExportDOCX(_ context.Context, text string) ([]byte, error) {
	return []byte("PK " + text), nil
}

type nopTransport struct{}

func (nopTransport) WriteJSON(any) error { return nil }

func newUseCase(r *mockReportRepo, res *mockResearcher, exp *mockExporter) (*ReportUseCase, *dm.ReportRequest) {
	var got dm.ReportRequest
	factory := func(_ context.Context, req dm.ReportRequest) (report.Researcher, error) {
		got = req
		return res, nil
	}
	uc := NewReportUseCase(r, factory, exp, log.DefaultLogger)
	uc.now = func() time.Time { return time.Unix(1700000000, 0) }
	return uc, &got
}

func TestReportUseCase_Generate(t *testing.T) {
	r, exp := newMockRepo(), &mockExporter{}
	uc, got := newUseCase(r, &mockResearcher{report: "# report"}, exp)
	var tr stream.Transport = nopTransport{}

	paths, err := uc.Generate(context.Background(), &domain.Task{
		Task:         " fusion energy ",
		Tone:         "Formal",
		SourceURLs:   []string{"https://a.example"},
		ReportSource: "static",
		Headers:      map[string]string{"retriever": "searxng"},
	}, tr)
	require.NoError(t, err)

	assert.Equal(t, "fusion energy", got.Query)
	assert.Equal(t, dm.ResearchReport, got.ReportType)
	assert.Equal(t, dm.SourceStatic, got.ReportSource)
	assert.Equal(t, dm.Tone("Formal"), got.Tone)
	assert.Equal(t, tr, got.Transport)
	assert.Equal(t, "searxng", got.Headers["retriever"])

	assert.Equal(t, "task_1700000000_fusion_energy", exp.name)
	assert.Equal(t, "# report", exp.text)
	assert.Equal(t, "outputs/task_1700000000_fusion_energy.md", paths.MD)
	assert.Equal(t, "outputs/task_1700000000_fusion_energy.docx", paths.DOCX)
	assert.Empty(t, paths.PDF)

	require.Len(t, r.created, 1)
	assert.Equal(t, *paths, r.finished[1])
	assert.Empty(t, r.failed)
}

func TestReportUseCase_GenerateDefaults(t *testing.T) {
	uc, got := newUseCase(newMockRepo(), &mockResearcher{report: "r"}, &mockExporter{})

	_, err := uc.Generate(context.Background(), &domain.Task{Task: "q"}, nil)
	require.NoError(t, err)
	assert.Equal(t, dm.SourceWeb, got.ReportSource)
	assert.Equal(t, dm.ResearchReport, got.ReportType)
	assert.NotNil(t, got.Headers)
}

func TestReportUseCase_GenerateEmptyTask(t *testing.T) {
	r := newMockRepo()
	uc, _ := newUseCase(r, &mockResearcher{}, &mockExporter{})

	_, err := uc.Generate(context.Background(), &domain.Task{Task: "  "}, nil)
	assert.Equal(t, 400, kerrors.Code(err))
	assert.Empty(t, r.created)
}

func TestReportUseCase_GenerateResearchFailure(t *testing.T) {
	r := newMockRepo()
	uc, _ := newUseCase(r, &mockResearcher{err: errors.New("no sources collected")}, &mockExporter{})

	paths, err := uc.Generate(context.Background(), &domain.Task{Task: "q"}, nil)
	assert.Nil(t, paths)
	assert.EqualError(t, err, "conduct research: no sources collected")
	assert.Equal(t, "conduct research: no sources collected", r.failed[1])
	assert.Empty(t, r.finished)
}

func TestReportUseCase_GenerateExportFailure(t *testing.T) {
	r := newMockRepo()
	uc, _ := newUseCase(r, &mockResearcher{report: "r"}, &mockExporter{writeErr: export.ErrInvalidName})

	_, err := uc.Generate(context.Background(), &domain.Task{Task: "q"}, nil)
	assert.ErrorIs(t, err, export.ErrInvalidName)
	assert.Contains(t, r.failed, int64(1))
}

func TestReportUseCase_Export(t *testing.T) {
	uc, _ := newUseCase(newMockRepo(), &mockResearcher{}, &mockExporter{})
	ctx := context.Background()

	data, ct, name, err := uc.Export(ctx, "pdf", "body", "my report")
	require.NoError(t, err)
	assert.Equal(t, "%PDF body", string(data))
	assert.Equal(t, "application/pdf", ct)
	assert.Equal(t, "task_1700000000_my_report.pdf", name)

	data, ct, name, err = uc.Export(ctx, "docx", "body", "")
	require.NoError(t, err)
	assert.Equal(t, "PK body", string(data))
	assert.Contains(t, ct, "wordprocessingml")
	assert.Equal(t, "task_1700000000_report.docx", name)

	_, _, _, err = uc.Export(ctx, "html", "body", "")
	assert.Equal(t, "UNSUPPORTED_FORMAT", kerrors.Reason(err))

	_, _, _, err = uc.Export(ctx, "pdf", "", "")
	assert.Equal(t, "EMPTY_REPORT", kerrors.Reason(err))
}

func TestReportUseCase_ExportFailure(t *testing.T) {
	uc, _ := newUseCase(newMockRepo(), &mockResearcher{}, &mockExporter{exportErr: errors.New("no chrome")})

	data, _, _, err := uc.Export(context.Background(), "pdf", "body", "")
	assert.Nil(t, data)
	assert.Equal(t, 500, kerrors.Code(err))
	var convErr *export.ConversionError
	assert.ErrorAs(t, err, &convErr)
}

func TestReportUseCase_List(t *testing.T) {
	uc, _ := newUseCase(newMockRepo(), &mockResearcher{}, &mockExporter{})

	runs, total, err := uc.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, runs, 1)
	assert.Equal(t, "Test Report", runs[0].Query)

	run, err := uc.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), run.ID)
}
