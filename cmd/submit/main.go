package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	"newswalker/internal/config"
	"newswalker/internal/pkg/logger"
	"newswalker/internal/pkg/workitem"
)

// main 向工作项队列提交一次遍历请求，可选阻塞等待结果载荷。
func main() {
	var (
		query    = flag.String("query", workitem.DefaultQuery, "search query")
		months   = flag.Int("months", workitem.DefaultMonths, "months to walk back (cutoff = first day of months-1 ago)")
		category = flag.String("category", workitem.DefaultCategory, "section filter")
		wait     = flag.Duration("wait", 0, "block up to this long for the result payload (0 = fire and forget)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	appLogger := logger.NewDefault(cfg.App.LogLevel)

	queue := workitem.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
	defer queue.Close()

	ctx := context.Background()
	item := workitem.Item{Query: *query, Months: *months, Category: *category}
	if err := queue.PushItem(ctx, item); err != nil {
		appLogger.Error("push work item failed", slog.String("error", err.Error()))
		return
	}
	appLogger.Info("work item submitted",
		slog.String("query", *query),
		slog.String("category", *category),
		slog.Int("months", *months))

	if *wait <= 0 {
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, *wait)
	defer cancel()
	res, err := queue.PopResult(waitCtx, *wait)
	if err != nil {
		appLogger.Error("wait for result failed", slog.String("error", err.Error()))
		return
	}
	if res.Error != "" {
		appLogger.Error("walk failed", slog.String("error", res.Error))
		return
	}
	appLogger.Info("walk completed",
		slog.String("filename", res.Filename),
		slog.Int("results_found", res.ResultsFound),
		slog.Duration("waited_within", *wait),
		slog.String("output_dir", cfg.Output.Dir),
		slog.String("finished_at", time.Now().Format(time.RFC3339)))
}
