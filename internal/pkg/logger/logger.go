// Package logger 提供统一的 slog 构造入口。
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewDefault 根据级别字符串创建标准输出的文本日志记录器。
//
// 未识别的级别回落到 info。
func NewDefault(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
