// Package walker 实现截止日期约束的批次遍历状态机。
//
// Driver 每次持有一个结果批次，对其执行滚动穷尽循环直到资源集合
// 稳定，然后推进到下一批次；提取中出现早于截止日期的条目或没有
// 更多批次时整个遍历结束。所有批次派发的抓取任务共享一个任务组，
// 无论以何种路径退出都恰好等待其排空一次。
package walker

import (
	"context"
	"log/slog"
	"time"

	"newswalker/internal/aggregate"
	"newswalker/internal/annotate"
	"newswalker/internal/model"
	"newswalker/internal/pkg/metrics"
)

// Session 抽象遍历所依赖的活动页面操作。
type Session interface {
	// Extract 对当前 DOM 快照做一次提取。
	Extract(ctx context.Context) ([]model.RawItem, error)
	// ScrollY 当前纵向滚动位置。
	ScrollY(ctx context.Context) (float64, error)
	// ScrollableHeight 可滚动总高度。
	ScrollableHeight(ctx context.Context) (float64, error)
	// ViewportHeight 视口高度。
	ViewportHeight(ctx context.Context) (float64, error)
	// ScrollBy 纵向滚动指定距离。
	ScrollBy(ctx context.Context, deltaY float64) error
	// WaitSettle 等待页面渲染安定。
	WaitSettle(ctx context.Context, d time.Duration) error
	// NextBatch 触发“加载更多”，返回是否还有下一批次。
	// 控件缺失是正常的终止信号而不是错误。
	NextBatch(ctx context.Context) (bool, error)
}

// Fetcher 抽象主动抓取的派发与收尾。
type Fetcher interface {
	// Dispatch 派发一个后台抓取任务，队列满时返回 false。
	Dispatch(url string) bool
	// Drain 停止接收新任务并等待在途任务完成，幂等。
	Drain()
}

// Driver 截止日期约束的批次遍历驱动器。
type Driver struct {
	session         Session
	fetcher         Fetcher
	policy          ScrollPolicy
	logger          *slog.Logger
	maxScrollPasses int
}

// Option 配置 Driver 的可选项。
type Option func(*Driver)

// WithMaxScrollPasses 覆盖单批次滚动扫描上限。
func WithMaxScrollPasses(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.maxScrollPasses = n
		}
	}
}

// New 创建遍历驱动器。
func New(session Session, fetcher Fetcher, policy ScrollPolicy, logger *slog.Logger, opts ...Option) *Driver {
	d := &Driver{
		session:         session,
		fetcher:         fetcher,
		policy:          policy,
		logger:          logger,
		maxScrollPasses: 40,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run 执行一次完整遍历并返回去重、排序、标注后的唯一结果。
//
// 退出路径有三条：截止日期、批次耗尽、致命错误。三条路径都会
// 先等抓取任务组排空再返回，保证没有任务被中途遗弃。
func (d *Driver) Run(ctx context.Context, query string, cutoff time.Time) ([]model.UniqueResult, error) {
	start := time.Now()
	defer func() {
		metrics.WalkDuration.Observe(time.Since(start).Seconds())
	}()
	defer d.fetcher.Drain()

	posts := make([]model.RawItem, 0, 64)

	for batch := 1; ; batch++ {
		cutoffReached, err := d.exhaustBatch(ctx, batch, cutoff, &posts)
		if err != nil {
			return nil, err
		}
		metrics.BatchesWalked.Inc()

		if cutoffReached {
			break
		}

		more, err := d.session.NextBatch(ctx)
		if err != nil {
			return nil, err
		}
		if !more {
			d.logger.Info("no further batch", slog.Int("batches", batch))
			break
		}
	}

	results := aggregate.Unique(posts)
	annotate.Apply(results, query)

	metrics.WalkResults.Observe(float64(len(results)))
	d.logger.Info("walk completed",
		slog.String("query", query),
		slog.Int("raw_items", len(posts)),
		slog.Int("unique_results", len(results)),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}
