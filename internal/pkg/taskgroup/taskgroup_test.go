package taskgroup

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestGroup_DrainAwaitsAllTasks(t *testing.T) {
	g := New(testLogger(), 3, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	var completed atomic.Int32
	for i := 0; i < 8; i++ {
		ok := g.Go(func(ctx context.Context) error {
			time.Sleep(50 * time.Millisecond)
			completed.Add(1)
			return nil
		})
		if !ok {
			t.Fatalf("dispatch %d rejected", i)
		}
	}

	// Drain 必须等到所有在途任务完成才返回
	g.Drain()
	if completed.Load() != 8 {
		t.Errorf("expected 8 completed after drain, got %d", completed.Load())
	}

	// 排空后拒绝新任务
	if g.Go(func(ctx context.Context) error { return nil }) {
		t.Error("drained group should reject tasks")
	}
}

func TestGroup_DrainIdempotent(t *testing.T) {
	g := New(testLogger(), 2, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	g.Go(func(ctx context.Context) error { return nil })
	g.Drain()
	// 第二次 Drain 不得 panic（重复 close）也不得阻塞
	g.Drain()

	if !g.IsDrained() {
		t.Error("expected drained state")
	}
}

func TestGroup_FailureIsolation(t *testing.T) {
	g := New(testLogger(), 2, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	var executed atomic.Bool
	g.Go(func(ctx context.Context) error { return errors.New("single bad asset") })
	g.Go(func(ctx context.Context) error { panic("intentional panic") })
	g.Go(func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})

	g.Drain()

	stats := g.Stats()
	if stats.TotalFailed != 1 {
		t.Errorf("expected 1 failed, got %d", stats.TotalFailed)
	}
	if stats.TotalPanics != 1 {
		t.Errorf("expected 1 panic, got %d", stats.TotalPanics)
	}
	if !executed.Load() {
		t.Error("task after failures should still execute")
	}
}

func TestGroup_DropWhenFull(t *testing.T) {
	g := New(testLogger(), 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	block := make(chan struct{})
	g.Go(func(ctx context.Context) error {
		<-block
		return nil
	})
	time.Sleep(50 * time.Millisecond) // 确保第一个任务占住 worker

	g.Go(func(ctx context.Context) error { return nil }) // 填满队列
	if g.Go(func(ctx context.Context) error { return nil }) {
		t.Error("expected drop when group is full")
	}

	close(block)
	g.Drain()

	if g.Stats().TotalDropped < 1 {
		t.Errorf("expected at least 1 dropped, got %d", g.Stats().TotalDropped)
	}
}

func TestGroup_GoBlocking(t *testing.T) {
	g := New(testLogger(), 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	block := make(chan struct{})
	g.Go(func(ctx context.Context) error {
		<-block
		return nil
	})
	time.Sleep(50 * time.Millisecond)
	g.Go(func(ctx context.Context) error { return nil })

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer timeoutCancel()

	start := time.Now()
	err := g.GoBlocking(timeoutCtx, func(ctx context.Context) error { return nil })
	if err == nil {
		t.Error("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected to wait ~100ms, waited %v", elapsed)
	}

	close(block)
	g.Drain()
}

func TestGroup_DrainWithTimeout(t *testing.T) {
	g := New(testLogger(), 2, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	for i := 0; i < 3; i++ {
		g.Go(func(ctx context.Context) error {
			time.Sleep(30 * time.Millisecond)
			return nil
		})
	}

	if err := g.DrainWithTimeout(500 * time.Millisecond); err != nil {
		t.Errorf("expected clean drain, got %v", err)
	}
}
