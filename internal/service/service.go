// Package service 串联工作项队列与单次遍历的完整流水线。
//
// Worker 循环从 Redis 阻塞取出工作项，逐项执行：载荷去重、
// 浏览器会话引导、批次遍历、xlsx 落盘、可选的 MySQL 持久化，
// 最后无论成败都向结果队列推送一个载荷。
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"newswalker/internal/browser"
	"newswalker/internal/capture"
	"newswalker/internal/config"
	"newswalker/internal/fetcher"
	"newswalker/internal/output"
	"newswalker/internal/pkg/dedup"
	"newswalker/internal/pkg/metrics"
	"newswalker/internal/pkg/notify"
	"newswalker/internal/pkg/workitem"
	"newswalker/internal/storage"
	"newswalker/internal/walker"

	"github.com/redis/go-redis/v9"
)

const resultPushTimeout = 10 * time.Second // 结果入队的独立超时，不受遍历超时连累

// Service 遍历服务实例。
type Service struct {
	cfg      *config.Config
	logger   *slog.Logger
	queue    *workitem.Client
	deduper  *dedup.Deduplicator
	store    *storage.Store
	notifier notify.Notifier
	browser  *browser.Browser
}

// NewService 初始化遍历服务：浏览器、队列、去重器、可选存储与通知。
func NewService(ctx context.Context, cfg *config.Config, logger *slog.Logger, queue *workitem.Client) (*Service, error) {
	if queue == nil {
		return nil, errors.New("work item queue is nil")
	}

	b, err := browser.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init browser: %w", err)
	}

	store, err := storage.Open(cfg.MySQL.DSN, logger)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})

	return &Service{
		cfg:      cfg,
		logger:   logger,
		queue:    queue,
		deduper:  dedup.NewDeduplicator(rdb, time.Duration(cfg.App.DedupWindow)*time.Second),
		store:    store,
		notifier: notify.NewEmailNotifier(&cfg.Email, logger),
		browser:  b,
	}, nil
}

// StartWorker 启动工作项消费循环，直到 ctx 取消。
//
// RunOnce 模式下处理完第一个工作项后返回 nil。
func (s *Service) StartWorker(ctx context.Context) error {
	s.logger.Info("worker loop started",
		slog.Duration("pop_timeout", s.cfg.App.PopTimeout),
		slog.Bool("run_once", s.cfg.App.RunOnce))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		item, err := s.queue.PopItem(ctx, s.cfg.App.PopTimeout)
		if errors.Is(err, workitem.ErrNoItem) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("pop work item failed", slog.String("error", err.Error()))
			time.Sleep(time.Second)
			continue
		}

		s.ProcessItem(ctx, item)

		if s.cfg.App.RunOnce {
			s.logger.Info("run once mode, worker loop exiting")
			return nil
		}
	}
}

// ProcessItem 处理单个工作项。
//
// 重复载荷直接跳过；其余情况无论遍历成败都推送一个结果载荷，
// 失败时清除去重标记以允许立即重试。
func (s *Service) ProcessItem(ctx context.Context, item workitem.Item) {
	payload := item.Payload()

	dup, err := s.deduper.IsDuplicate(ctx, payload)
	if err != nil {
		s.logger.Warn("dedup check failed, continuing without dedup", slog.String("error", err.Error()))
	}
	if dup {
		s.logger.Info("duplicate work item skipped",
			slog.String("query", item.Query),
			slog.String("category", item.Category),
			slog.Int("months", item.Months))
		return
	}

	s.logger.Info("processing work item",
		slog.String("query", item.Query),
		slog.String("category", item.Category),
		slog.Int("months", item.Months))

	walkCtx, cancel := context.WithTimeout(ctx, s.cfg.Walk.WalkTimeout)
	res, walkErr := s.walk(walkCtx, item)
	cancel()

	if walkErr != nil {
		metrics.WalkErrorsTotal.WithLabelValues(browser.ClassifyError(walkErr)).Inc()
		s.logger.Error("walk failed",
			slog.String("query", item.Query),
			slog.String("error", walkErr.Error()))
		res = workitem.Result{Error: walkErr.Error()}

		// 失败的条件允许立即重新提交
		if err := s.deduper.Delete(context.Background(), payload); err != nil {
			s.logger.Warn("clear dedup mark failed", slog.String("error", err.Error()))
		}
	}

	// 结果入队用独立超时，遍历超时不应吞掉结果载荷
	pushCtx, pushCancel := context.WithTimeout(context.Background(), resultPushTimeout)
	defer pushCancel()
	if err := s.queue.PushResult(pushCtx, res); err != nil {
		s.logger.Error("push result failed", slog.String("error", err.Error()))
	}

	if err := s.notifier.SendWalkSummary(pushCtx, item, res, s.cfg.Email.ToEmail); err != nil {
		s.logger.Warn("send notification failed", slog.String("error", err.Error()))
	}
}

// walk 执行一次完整遍历：新会话、引导、驱动、落盘、持久化。
func (s *Service) walk(ctx context.Context, item workitem.Item) (workitem.Result, error) {
	var res workitem.Result

	capturer := capture.New(s.cfg.Walk.AssetDir, s.cfg.Walk.MinAssetWidth, s.logger)

	session, err := s.browser.NewSession(ctx, capturer)
	if err != nil {
		return res, fmt.Errorf("new session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Warn("close session failed", slog.String("error", err.Error()))
		}
	}()

	if err := session.Open(ctx, item.Query, item.Category); err != nil {
		return res, fmt.Errorf("open search: %w", err)
	}

	dispatcher := fetcher.New(session, s.logger,
		s.cfg.App.WorkerPoolSize, s.cfg.App.QueueCapacity,
		s.cfg.App.RateLimit, s.cfg.App.RateBurst)
	dispatcher.Start(ctx)

	policy := walker.NewRandomPolicy(
		time.Duration(s.cfg.Walk.ScrollMinWaitMs)*time.Millisecond,
		time.Duration(s.cfg.Walk.ScrollMaxWaitMs)*time.Millisecond)

	driver := walker.New(session, dispatcher, policy, s.logger,
		walker.WithMaxScrollPasses(s.cfg.Walk.MaxScrollPasses))

	cutoff := item.Cutoff(time.Now())
	results, err := driver.Run(ctx, item.Query, cutoff)
	if err != nil {
		return res, fmt.Errorf("walk: %w", err)
	}

	path := filepath.Join(s.cfg.Output.Dir, item.OutputFilename())
	if err := output.WriteXLSX(path, results, s.logger); err != nil {
		return res, fmt.Errorf("write workbook: %w", err)
	}

	if err := s.store.SaveResults(ctx, item.Query, results); err != nil {
		// 持久化失败不推翻已落盘的结果
		s.logger.Error("persist results failed", slog.String("error", err.Error()))
	}

	res.Filename = item.OutputFilename()
	res.ResultsFound = len(results)
	return res, nil
}

// Shutdown 优雅关闭服务持有的资源。
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.browser.Close(); err != nil {
			s.logger.Warn("close browser failed", slog.String("error", err.Error()))
		}
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close storage failed", slog.String("error", err.Error()))
		}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
