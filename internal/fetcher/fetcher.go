// Package fetcher 在浏览上下文内派发主动抓取任务。
//
// 主动抓取的目的不是拿到字节，而是强迫源站（以及被动捕获监听器）
// 看到这次请求：懒加载器由此材料化资源。结果被丢弃，单个任务的
// 失败绝不中断批次。
package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"newswalker/internal/pkg/metrics"
	"newswalker/internal/pkg/taskgroup"

	"golang.org/x/time/rate"
)

// ContextFetcher 在页面上下文内发起一次请求并返回 HTTP 状态码。
type ContextFetcher interface {
	FetchInContext(ctx context.Context, url string) (int, error)
}

// Dispatcher 主动抓取的任务派发器，带限流。
type Dispatcher struct {
	page    ContextFetcher
	group   *taskgroup.Group
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New 创建派发器。ratePerSec <= 0 时不限流。
func New(page ContextFetcher, logger *slog.Logger, workers, capacity int, ratePerSec float64, burst int) *Dispatcher {
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return &Dispatcher{
		page:    page,
		group:   taskgroup.New(logger, workers, capacity),
		limiter: limiter,
		logger:  logger,
	}
}

// Start 启动后台任务组。
func (d *Dispatcher) Start(ctx context.Context) {
	d.group.Start(ctx)
}

// Dispatch 派发一个抓取任务，队列满或已排空时返回 false。
//
// 任务内部：等待限流令牌，在页面上下文内 fetch，非 2xx 视为失败。
// 失败只计入统计和日志，由任务组隔离。
func (d *Dispatcher) Dispatch(url string) bool {
	ok := d.group.Go(func(ctx context.Context) error {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				metrics.FetchTasksTotal.WithLabelValues("failed").Inc()
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}

		status, err := d.page.FetchInContext(ctx, url)
		if err != nil {
			metrics.FetchTasksTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("fetch asset: %w", err)
		}
		if status < 200 || status >= 300 {
			metrics.FetchTasksTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("fetch asset: status %d", status)
		}
		metrics.FetchTasksTotal.WithLabelValues("succeeded").Inc()
		return nil
	})
	if ok {
		metrics.FetchTasksTotal.WithLabelValues("dispatched").Inc()
	} else {
		d.logger.Warn("fetch dispatch rejected", slog.String("url", url))
	}
	return ok
}

// Drain 等待所有在途抓取任务完成，幂等。
func (d *Dispatcher) Drain() {
	d.group.Drain()
}

// Stats 返回任务组统计快照。
func (d *Dispatcher) Stats() taskgroup.Stats {
	return d.group.Stats()
}
