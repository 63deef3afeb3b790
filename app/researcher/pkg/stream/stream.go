// Package stream 将调研进度推送给请求方（通常是 websocket 连接）。
package stream

import (
	"sync"

	"github.com/iWorld-y/research_report/app/researcher/pkg/logger"
)

// 消息类型
const (
	TypeLogs   = "logs"
	TypeReport = "report"
	TypePath   = "path"
	TypeError  = "error"
)

// Transport 可以写出 JSON 消息的连接，*websocket.Conn 满足该接口
type Transport interface {
	WriteJSON(v any) error
}

// Message 推送给客户端的一条消息
type Message struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Output   any    `json:"output,omitempty"`
	Metadata any    `json:"metadata,omitempty"`
}

// Send 发送消息，t 为 nil 时直接忽略
func Send(t Transport, msg Message) error {
	if t == nil {
		return nil
	}
	return t.WriteJSON(msg)
}

// Logs 记录一条进度日志并推送给客户端。推送失败只记日志，不影响调研流程。
func Logs(t Transport, content string, output string, metadata any) {
	logger.Log.WithField("stage", content).Info(output)
	if err := Send(t, Message{Type: TypeLogs, Content: content, Output: output, Metadata: metadata}); err != nil {
		logger.Log.Warnf("推送进度失败 [%s]: %v", content, err)
	}
}

// SafeTransport 串行化并发写入。gorilla websocket 同一时刻只允许一个写者。
type SafeTransport struct {
	mu sync.Mutex
	t  Transport
}

// NewSafeTransport 包装 t；t 为 nil 时返回 nil
func NewSafeTransport(t Transport) *SafeTransport {
	if t == nil {
		return nil
	}
	if st, ok := t.(*SafeTransport); ok {
		return st
	}
	return &SafeTransport{t: t}
}

// WriteJSON 实现 Transport。nil 接收者直接忽略
func (s *SafeTransport) WriteJSON(v any) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.WriteJSON(v)
}
