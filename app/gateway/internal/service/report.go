package service

import (
	"context"
	"encoding/json"
	"mime"
	nethttp "net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/gorilla/websocket"

	"github.com/iWorld-y/research_report/app/gateway/internal/conf"
	"github.com/iWorld-y/research_report/app/gateway/internal/domain"
	"github.com/iWorld-y/research_report/app/gateway/internal/usecase"
	"github.com/iWorld-y/research_report/app/researcher/pkg/stream"
)

const defaultReadLimit = 1 << 20

type ReportService struct {
	uc        *usecase.ReportUseCase
	upgrader  websocket.Upgrader
	readLimit int64
	log       *log.Helper
}

func NewReportService(c *conf.Server, uc *usecase.ReportUseCase, logger log.Logger) *ReportService {
	s := &ReportService{
		uc:        uc,
		readLimit: defaultReadLimit,
		log:       log.NewHelper(logger),
	}
	var origins []string
	if c != nil && c.Websocket != nil {
		origins = c.Websocket.AllowedOrigins
		if c.Websocket.ReadLimit > 0 {
			s.readLimit = c.Websocket.ReadLimit
		}
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *nethttp.Request) bool {
			return len(origins) == 0 || slices.Contains(origins, r.Header.Get("Origin"))
		},
	}
	return s
}

// ServeWS 处理 /ws 连接。每个连接同一时刻只运行一个任务，连接关闭时取消正在运行的任务
func (s *ReportService) ServeWS(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.readLimit)

	tr := stream.NewSafeTransport(conn)
	// 请求超时只约束握手，任务随连接结束
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	var (
		wg   sync.WaitGroup
		busy atomic.Bool
	)
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warnf("websocket read: %v", err)
			}
			return
		}

		task, err := parseTask(data)
		if err != nil {
			s.sendError(tr, "invalid task: "+err.Error())
			continue
		}
		if !busy.CompareAndSwap(false, true) {
			s.sendError(tr, "a report is already running on this connection")
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer busy.Store(false)
			s.generate(ctx, task, tr)
		}()
	}
}

func (s *ReportService) generate(ctx context.Context, task *domain.Task, tr stream.Transport) {
	paths, err := s.uc.Generate(ctx, task, tr)
	if err != nil {
		s.sendError(tr, errors.FromError(err).Message)
		return
	}
	if err := stream.Send(tr, stream.Message{Type: stream.TypePath, Output: paths}); err != nil {
		s.log.Warnf("send report paths: %v", err)
	}
}

func (s *ReportService) sendError(tr stream.Transport, msg string) {
	if err := stream.Send(tr, stream.Message{Type: stream.TypeError, Content: "error", Output: msg}); err != nil {
		s.log.Warnf("send error message: %v", err)
	}
}

// parseTask 解析任务 JSON，兼容 "start {...}" 形式
func parseTask(data []byte) (*domain.Task, error) {
	raw := strings.TrimSpace(string(data))
	raw = strings.TrimPrefix(raw, "start ")
	var task domain.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

type exportRequest struct {
	Report string `json:"report"`
	Name   string `json:"name"`
}

type exportReply struct {
	data        []byte
	contentType string
	filename    string
}

// Export POST /api/export/{format}，以附件形式返回 pdf 或 docx
func (s *ReportService) Export(ctx http.Context) error {
	var req exportRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.BadRequest("INVALID_BODY", err.Error())
	}
	format := ctx.Vars().Get("format")

	h := ctx.Middleware(func(c context.Context, _ any) (any, error) {
		data, contentType, filename, err := s.uc.Export(c, format, req.Report, req.Name)
		if err != nil {
			return nil, err
		}
		return &exportReply{data: data, contentType: contentType, filename: filename}, nil
	})
	out, err := h(ctx, &req)
	if err != nil {
		return err
	}
	reply := out.(*exportReply)
	ctx.Response().Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": reply.filename}))
	return ctx.Blob(nethttp.StatusOK, reply.contentType, reply.data)
}

type listReply struct {
	Reports []*domain.ReportRun `json:"reports"`
	Total   int                 `json:"total"`
}

// ListReports GET /api/reports?page=&page_size=
func (s *ReportService) ListReports(ctx http.Context) error {
	q := ctx.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize < 1 {
		pageSize = 10
	}

	h := ctx.Middleware(func(c context.Context, _ any) (any, error) {
		runs, total, err := s.uc.List(c, page, pageSize)
		if err != nil {
			return nil, err
		}
		if runs == nil {
			runs = []*domain.ReportRun{}
		}
		return &listReply{Reports: runs, Total: total}, nil
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(nethttp.StatusOK, out)
}

// GetReport GET /api/reports/{id}
func (s *ReportService) GetReport(ctx http.Context) error {
	id, err := strconv.ParseInt(ctx.Vars().Get("id"), 10, 64)
	if err != nil || id < 1 {
		return errors.BadRequest("INVALID_ID", "invalid report id")
	}

	h := ctx.Middleware(func(c context.Context, _ any) (any, error) {
		return s.uc.Get(c, id)
	})
	out, err := h(ctx, id)
	if err != nil {
		return err
	}
	return ctx.Result(nethttp.StatusOK, out)
}
