package browser

import (
	"context"
	"errors"
	"strings"
)

type walkErrorType int

const (
	errTypeUnknown walkErrorType = iota
	errTypeTimeout
	errTypeNetwork
	errTypeBlocked
	errTypeParse
)

// ClassifyError 统一的错误分类函数，返回值用作 metrics 标签。
func ClassifyError(err error) string {
	switch classifyError(err) {
	case errTypeTimeout:
		return "timeout"
	case errTypeNetwork:
		return "network_error"
	case errTypeBlocked:
		return "blocked"
	case errTypeParse:
		return "parse_error"
	default:
		return "unknown"
	}
}

func classifyError(err error) walkErrorType {
	if err == nil {
		return errTypeUnknown
	}

	// 先检查标准 context 错误
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errTypeTimeout
	}

	msg := strings.ToLower(err.Error())

	// 检查被封禁的错误
	blockedKeywords := []string{
		"cloudflare", "attention required", "access denied",
		"403", "429", "forbidden", "too many requests",
	}
	for _, kw := range blockedKeywords {
		if strings.Contains(msg, kw) {
			return errTypeBlocked
		}
	}

	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return errTypeTimeout
	}

	networkKeywords := []string{"net::", "connection", "navigate"}
	for _, kw := range networkKeywords {
		if strings.Contains(msg, kw) {
			return errTypeNetwork
		}
	}

	parseKeywords := []string{"parse", "selector", "element", "results list"}
	for _, kw := range parseKeywords {
		if strings.Contains(msg, kw) {
			return errTypeParse
		}
	}

	return errTypeUnknown
}
