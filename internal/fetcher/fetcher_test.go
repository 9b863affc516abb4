package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakePage 按 URL 返回预设状态码或错误。
type fakePage struct {
	mu       sync.Mutex
	statuses map[string]int
	errs     map[string]error
	fetched  []string
}

func (p *fakePage) FetchInContext(ctx context.Context, url string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetched = append(p.fetched, url)
	if err, ok := p.errs[url]; ok {
		return 0, err
	}
	if status, ok := p.statuses[url]; ok {
		return status, nil
	}
	return 200, nil
}

func TestDispatcher_SuccessAndFailureIsolation(t *testing.T) {
	page := &fakePage{
		statuses: map[string]int{
			"https://a.example/ok.jpg":       200,
			"https://a.example/missing.jpg":  404,
			"https://a.example/alsofine.jpg": 200,
		},
		errs: map[string]error{
			"https://a.example/broken.jpg": errors.New("net::ERR_FAILED"),
		},
	}

	d := New(page, testLogger(), 2, 8, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	urls := []string{
		"https://a.example/ok.jpg",
		"https://a.example/missing.jpg",
		"https://a.example/broken.jpg",
		"https://a.example/alsofine.jpg",
	}
	for _, u := range urls {
		if !d.Dispatch(u) {
			t.Fatalf("dispatch rejected for %s", u)
		}
	}

	d.Drain()

	stats := d.Stats()
	if stats.TotalDispatched != 4 {
		t.Errorf("expected 4 dispatched, got %d", stats.TotalDispatched)
	}
	// 404 和网络错误都算失败，但不影响其它任务
	if stats.TotalFailed != 2 {
		t.Errorf("expected 2 failed, got %d", stats.TotalFailed)
	}
	if stats.TotalSucceeded != 2 {
		t.Errorf("expected 2 succeeded, got %d", stats.TotalSucceeded)
	}

	page.mu.Lock()
	defer page.mu.Unlock()
	if len(page.fetched) != 4 {
		t.Errorf("expected all 4 urls fetched, got %d", len(page.fetched))
	}
}

func TestDispatcher_DrainIdempotent(t *testing.T) {
	d := New(&fakePage{}, testLogger(), 1, 2, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Dispatch("https://a.example/x.jpg")
	d.Drain()
	d.Drain()

	if d.Dispatch("https://a.example/late.jpg") {
		t.Error("drained dispatcher should reject tasks")
	}
}

func TestDispatcher_RateLimiterPacing(t *testing.T) {
	page := &fakePage{}
	// burst 1、每秒 50 个令牌：3 个任务需要约 40ms 以上
	d := New(page, testLogger(), 3, 8, 50, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	for i := 0; i < 3; i++ {
		d.Dispatch("https://a.example/x.jpg")
	}
	d.Drain()

	if got := d.Stats().TotalSucceeded; got != 3 {
		t.Errorf("expected 3 succeeded, got %d", got)
	}
}
