package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newswalker/internal/config"
	"newswalker/internal/pkg/logger"
	"newswalker/internal/pkg/workitem"
	"newswalker/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// main 是遍历服务的入口函数。
//
// 它负责：
// 1. 加载配置
// 2. 初始化日志记录器
// 3. 启动遍历服务实例
// 4. 启动 Redis Worker 与 Metrics 服务
// 5. 优雅关闭
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logger.NewDefault(cfg.App.LogLevel)
	ctx := context.Background()

	queue := workitem.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
	svc, err := service.NewService(ctx, cfg, appLogger, queue)
	if err != nil {
		appLogger.Error("init walker service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		defer func() {
			if r := recover(); r != nil {
				appLogger.Error("PANIC in worker loop", slog.Any("panic", r))
				// 记录日志后退出，由容器编排负责重启，保持状态干净
				os.Exit(1)
			}
		}()

		appLogger.Info("starting worker loop")
		if err := svc.StartWorker(workerCtx); err != nil && err != context.Canceled {
			appLogger.Error("worker loop stopped", slog.String("error", err.Error()))
		}
	}()

	metricsServer := &http.Server{
		Addr:    cfg.App.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		appLogger.Info("metrics server started", slog.String("addr", cfg.App.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("metrics server stopped with error", slog.String("error", err.Error()))
		}
	}()

	// 等待中断信号；RunOnce 模式下 worker 自行结束也触发关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		appLogger.Info("received os signal", slog.String("signal", sig.String()))
	case <-workerDone:
		appLogger.Info("worker loop finished")
	}

	appLogger.Info("shutting down walker service...")

	// 优雅关闭
	// 1. 停止拉取新工作项
	stopWorkers()

	// 2. 等待在途遍历收尾并释放浏览器
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("metrics shutdown error", slog.String("error", err.Error()))
	}

	if err := svc.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("service shutdown error", slog.String("error", err.Error()))
	} else {
		appLogger.Info("service shutdown completed")
	}

	if err := queue.Close(); err != nil {
		appLogger.Error("close queue error", slog.String("error", err.Error()))
	}

	appLogger.Info("walker service stopped gracefully")
}
