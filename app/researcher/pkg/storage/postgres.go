package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
	dm "github.com/iWorld-y/research_report/app/researcher/pkg/model"
)

// RunStatus 报告任务状态
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// ErrRunNotFound 指定 ID 的任务不存在
var ErrRunNotFound = errors.New("report run not found")

// Paths 导出文件的转义路径，转换失败的格式为空
type Paths struct {
	MD   string `json:"md"`
	PDF  string `json:"pdf"`
	DOCX string `json:"docx"`
}

// Run 一次报告生成任务
type Run struct {
	ID           int64      `json:"id"`
	Query        string     `json:"query"`
	ReportType   string     `json:"report_type"`
	ReportSource string     `json:"report_source"`
	Tone         string     `json:"tone"`
	Status       RunStatus  `json:"status"`
	Error        string     `json:"error,omitempty"`
	Paths        Paths      `json:"paths"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

type Storage struct {
	db *sql.DB
}

// DSN 拼接 lib/pq 连接串
func DSN(cfg config.DBConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, port, cfg.User, cfg.Password, cfg.Name)
}

// NewStorage 连接数据库并初始化表结构
func NewStorage(ctx context.Context, cfg config.DBConfig) (*Storage, error) {
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS report_runs (
			id BIGSERIAL PRIMARY KEY,
			query TEXT NOT NULL,
			report_type TEXT NOT NULL DEFAULT '',
			report_source TEXT NOT NULL DEFAULT '',
			tone TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			md_path TEXT NOT NULL DEFAULT '',
			pdf_path TEXT NOT NULL DEFAULT '',
			docx_path TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			finished_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS report_runs_created_at_idx ON report_runs (created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}

	return nil
}

// CreateRun 记录一次开始的任务，返回任务 ID
func (s *Storage) CreateRun(ctx context.Context, req dm.ReportRequest) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO report_runs (query, report_type, report_source, tone, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		req.Query, string(req.ReportType), string(req.ReportSource), string(req.Tone), StatusRunning).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert report run: %w", err)
	}
	return id, nil
}

// FinishRun 标记任务成功并保存导出路径
func (s *Storage) FinishRun(ctx context.Context, id int64, paths Paths) error {
	return s.finish(ctx, `
		UPDATE report_runs
		SET status = $2, md_path = $3, pdf_path = $4, docx_path = $5, finished_at = CURRENT_TIMESTAMP
		WHERE id = $1`,
		id, StatusSucceeded, paths.MD, paths.PDF, paths.DOCX)
}

// FailRun 标记任务失败
func (s *Storage) FailRun(ctx context.Context, id int64, reason string) error {
	return s.finish(ctx, `
		UPDATE report_runs
		SET status = $2, error = $3, finished_at = CURRENT_TIMESTAMP
		WHERE id = $1`,
		id, StatusFailed, reason)
}

func (s *Storage) finish(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update report run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update report run: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// ListRuns 按创建时间倒序分页，page 从 1 开始
func (s *Storage) ListRuns(ctx context.Context, page, pageSize int) ([]*Run, int, error) {
	limit, offset := Paginate(page, pageSize)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, report_type, report_source, tone, status, error,
			md_path, pdf_path, docx_path, created_at, finished_at
		FROM report_runs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query report runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate report runs: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM report_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count report runs: %w", err)
	}
	return runs, total, nil
}

// GetRun 不存在时返回 ErrRunNotFound
func (s *Storage) GetRun(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, query, report_type, report_source, tone, status, error,
			md_path, pdf_path, docx_path, created_at, finished_at
		FROM report_runs
		WHERE id = $1`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r        Run
		status   string
		finished sql.NullTime
	)
	err := sc.Scan(&r.ID, &r.Query, &r.ReportType, &r.ReportSource, &r.Tone, &status, &r.Error,
		&r.Paths.MD, &r.Paths.PDF, &r.Paths.DOCX, &r.CreatedAt, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan report run: %w", err)
	}
	r.Status = RunStatus(status)
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return &r, nil
}

// Paginate 规范化分页参数，返回 limit 和 offset。pageSize 上限 100，默认 10
func Paginate(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = 10
	case pageSize > 100:
		pageSize = 100
	}
	return pageSize, (page - 1) * pageSize
}
