// Package taskgroup 提供整个遍历共享的后台任务组。
//
// 主动抓取任务在这里异步执行；遍历结束时（无论是截止日期、批次耗尽
// 还是错误退出）任务组必须被 Drain 恰好一次，保证没有任务被中途遗弃。
package taskgroup

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Task 表示一个可执行的后台任务。
type Task func(ctx context.Context) error

// Group 固定 worker 数的后台任务组。
//
// 单个任务失败或 panic 只计入统计并记日志，不影响其它任务，
// 更不会向调用方传播——失败隔离是抓取路径的硬性要求。
type Group struct {
	logger  *slog.Logger
	workers int
	tasks   chan Task

	wg      sync.WaitGroup
	drained atomic.Bool

	stats groupStats
}

// groupStats 内部统计（atomic 类型）。
type groupStats struct {
	TotalDispatched atomic.Int64
	TotalCompleted  atomic.Int64
	TotalSucceeded  atomic.Int64
	TotalFailed     atomic.Int64
	TotalDropped    atomic.Int64
	TotalPanics     atomic.Int64
}

// Stats 统计信息快照（普通值类型，可安全拷贝）。
type Stats struct {
	TotalDispatched int64
	TotalCompleted  int64
	TotalSucceeded  int64
	TotalFailed     int64
	TotalDropped    int64
	TotalPanics     int64
}

// New 创建任务组。workers 与 capacity 至少为 1。
func New(logger *slog.Logger, workers int, capacity int) *Group {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 1
	}
	return &Group{
		logger:  logger,
		workers: workers,
		tasks:   make(chan Task, capacity),
	}
}

// Start 启动 worker 池，直到 ctx 取消或 Drain 被调用。
func (g *Group) Start(ctx context.Context) {
	for i := 0; i < g.workers; i++ {
		g.wg.Add(1)
		go g.worker(ctx, i)
	}
}

func (g *Group) worker(ctx context.Context, id int) {
	defer g.wg.Done()

	for {
		select {
		case <-ctx.Done():
			g.logger.Debug("worker stopped", slog.Int("worker_id", id))
			return
		case task, ok := <-g.tasks:
			if !ok {
				g.logger.Debug("worker exit on closed channel", slog.Int("worker_id", id))
				return
			}
			if task != nil {
				g.run(ctx, task, id)
			}
		}
	}
}

// run 执行单个任务，带 panic 恢复。
func (g *Group) run(ctx context.Context, task Task, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			g.stats.TotalPanics.Add(1)
			g.logger.Error("task panic recovered",
				slog.Int("worker_id", workerID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	err := task(ctx)
	g.stats.TotalCompleted.Add(1)

	if err != nil {
		g.stats.TotalFailed.Add(1)
		g.logger.Warn("task failed",
			slog.Int("worker_id", workerID),
			slog.String("error", err.Error()))
	} else {
		g.stats.TotalSucceeded.Add(1)
	}
}

// Go 将任务放入任务组，队列已满时返回 false（非阻塞）。
func (g *Group) Go(task Task) bool {
	if task == nil {
		return false
	}
	if g.drained.Load() {
		g.logger.Warn("task group drained, reject task")
		return false
	}

	select {
	case g.tasks <- task:
		g.stats.TotalDispatched.Add(1)
		return true
	default:
		g.stats.TotalDropped.Add(1)
		g.logger.Warn("task group full, drop task",
			slog.Int("capacity", cap(g.tasks)),
			slog.Int("pending", len(g.tasks)))
		return false
	}
}

// GoBlocking 阻塞式派发，直到成功或 ctx 取消。
func (g *Group) GoBlocking(ctx context.Context, task Task) error {
	if task == nil {
		return fmt.Errorf("task is nil")
	}
	if g.drained.Load() {
		return fmt.Errorf("task group drained")
	}

	select {
	case g.tasks <- task:
		g.stats.TotalDispatched.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain 停止接收新任务并等待所有在途任务完成。
//
// 幂等：重复调用只有第一次生效。遍历的每条退出路径都经过这里。
func (g *Group) Drain() {
	if g.drained.CompareAndSwap(false, true) {
		close(g.tasks)
		g.logger.Info("task group draining, waiting for in-flight tasks")
		g.wg.Wait()
		g.logger.Info("task group drained",
			slog.Int64("dispatched", g.stats.TotalDispatched.Load()),
			slog.Int64("failed", g.stats.TotalFailed.Load()))
	}
}

// DrainWithTimeout 带超时的 Drain，超时返回错误（任务组仍会被标记为已排空）。
func (g *Group) DrainWithTimeout(timeout time.Duration) error {
	if !g.drained.CompareAndSwap(false, true) {
		return nil
	}
	close(g.tasks)

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		g.logger.Error("task group drain timeout")
		return fmt.Errorf("drain timeout after %s", timeout)
	}
}

// Stats 获取统计信息快照。
func (g *Group) Stats() Stats {
	return Stats{
		TotalDispatched: g.stats.TotalDispatched.Load(),
		TotalCompleted:  g.stats.TotalCompleted.Load(),
		TotalSucceeded:  g.stats.TotalSucceeded.Load(),
		TotalFailed:     g.stats.TotalFailed.Load(),
		TotalDropped:    g.stats.TotalDropped.Load(),
		TotalPanics:     g.stats.TotalPanics.Load(),
	}
}

// Len 返回当前待执行的任务数。
func (g *Group) Len() int {
	return len(g.tasks)
}

// IsDrained 返回任务组是否已排空。
func (g *Group) IsDrained() bool {
	return g.drained.Load()
}
