package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"

	"github.com/iWorld-y/research_report/app/researcher/pkg/logger"
)

// generate 调用模型，等待限流令牌，遇到 429 指数退避重试
func (r *Researcher) generate(ctx context.Context, messages []*schema.Message) (string, error) {
	var lastErr error
	for i := 0; i <= r.maxRetries; i++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("limiter wait error: %w", err)
		}

		resp, err := r.chatModel.Generate(ctx, messages)
		if err == nil {
			return resp.Content, nil
		}
		if !isRateLimited(err) {
			return "", err
		}

		lastErr = err
		if i == r.maxRetries {
			break
		}
		delay := r.baseDelay * time.Duration(1<<i)
		logger.Log.Warnf("触发 429 限流，等待 %v 后重试 (%d/%d)...", delay, i+1, r.maxRetries)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// generateJSON 调用模型并把输出解析到 out，解析失败时重试
func (r *Researcher) generateJSON(ctx context.Context, messages []*schema.Message, out any) error {
	var lastErr error
	for i := 0; i <= r.maxRetries; i++ {
		content, err := r.generate(ctx, messages)
		if err != nil {
			return err
		}

		cleanContent := stripCodeFence(content)
		if err := json.Unmarshal([]byte(cleanContent), out); err != nil {
			lastErr = fmt.Errorf("json unmarshal error: %w, content: %s", err, cleanContent)
			if i < r.maxRetries {
				logger.Log.Warnf("JSON 解析失败，重试 (%d/%d): %v", i+1, r.maxRetries, lastErr)
			}
			continue
		}
		return nil
	}
	return lastErr
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}

// stripCodeFence 清理模型输出外层可能的 markdown 代码块标记
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// 去掉语言标记，例如 ```json / ```markdown
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], " \t") {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// truncate 按字节上限截断，不切断 UTF-8 字符
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
