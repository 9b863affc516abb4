package walker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"newswalker/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeSession 用预设快照序列模拟懒加载页面。
// 每个批次是一组按滚动轮次排列的快照，超出的轮次复用最后一个快照。
type fakeSession struct {
	batches [][][]model.RawItem

	batch      int
	pass       int
	extracts   int
	scrolls    int
	nextCalls  int
	scrollY    float64
	extractErr error
}

func (s *fakeSession) Extract(ctx context.Context) ([]model.RawItem, error) {
	if s.extractErr != nil {
		return nil, s.extractErr
	}
	s.extracts++
	snapshots := s.batches[s.batch]
	idx := s.pass
	if idx >= len(snapshots) {
		idx = len(snapshots) - 1
	}
	s.pass++
	return snapshots[idx], nil
}

func (s *fakeSession) ScrollY(ctx context.Context) (float64, error)          { return s.scrollY, nil }
func (s *fakeSession) ScrollableHeight(ctx context.Context) (float64, error) { return 5000, nil }
func (s *fakeSession) ViewportHeight(ctx context.Context) (float64, error)   { return 800, nil }

func (s *fakeSession) ScrollBy(ctx context.Context, deltaY float64) error {
	s.scrolls++
	return nil
}

func (s *fakeSession) WaitSettle(ctx context.Context, d time.Duration) error { return nil }

func (s *fakeSession) NextBatch(ctx context.Context) (bool, error) {
	s.nextCalls++
	if s.batch+1 >= len(s.batches) {
		return false, nil
	}
	s.batch++
	s.pass = 0
	return true, nil
}

// fakeFetcher 记录派发与排空。
type fakeFetcher struct {
	dispatched []string
	drains     int
}

func (f *fakeFetcher) Dispatch(url string) bool {
	f.dispatched = append(f.dispatched, url)
	return true
}

func (f *fakeFetcher) Drain() { f.drains++ }

// rejectingFetcher 前 rejects 次派发被拒绝（模拟任务组队列已满），之后恢复接收。
type rejectingFetcher struct {
	rejects  int
	attempts int
	accepted []string
	drains   int
}

func (f *rejectingFetcher) Dispatch(url string) bool {
	f.attempts++
	if f.attempts <= f.rejects {
		return false
	}
	f.accepted = append(f.accepted, url)
	return true
}

func (f *rejectingFetcher) Drain() { f.drains++ }

// fixedPolicy 固定步长、零等待，测试用。
type fixedPolicy struct {
	reversals int
}

func (p *fixedPolicy) NextStep(viewportHeight float64) (float64, time.Duration) {
	return 100, 0
}

func (p *fixedPolicy) Reverse() { p.reversals++ }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rawItem(n int, date time.Time, resized bool) model.RawItem {
	it := model.RawItem{
		Date:           date,
		Title:          "story " + string(rune('a'+n)),
		Description:    "desc",
		AssetSourceURL: "https://example.com/full/asset" + string(rune('a'+n)) + ".jpg",
		AssetBasename:  "asset" + string(rune('a'+n)),
	}
	if resized {
		it.AssetResizedURL = "https://example.com/resized/asset" + string(rune('a'+n)) + ".jpg"
	}
	return it
}

// 懒加载条目在后续滚动轮次中材料化后，批次才稳定，且每个资源只派发一次。
func TestDriver_LazyMaterialization(t *testing.T) {
	d1 := day(2026, time.August, 20)
	pass0 := []model.RawItem{rawItem(0, d1, true), rawItem(1, d1, false)}
	pass1 := []model.RawItem{rawItem(0, d1, true), rawItem(1, d1, true)}

	session := &fakeSession{batches: [][][]model.RawItem{{pass0, pass1}}}
	fetcher := &fakeFetcher{}
	driver := New(session, fetcher, &fixedPolicy{}, testLogger())

	cutoff := day(2026, time.August, 1)
	results, err := driver.Run(context.Background(), "story", cutoff)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if session.extracts != 2 {
		t.Errorf("expected 2 extraction passes, got %d", session.extracts)
	}
	if session.scrolls != 1 {
		t.Errorf("expected 1 scroll step, got %d", session.scrolls)
	}
	if len(fetcher.dispatched) != 2 {
		t.Fatalf("expected 2 dispatches, got %v", fetcher.dispatched)
	}
	// 同一资源重复出现不得重复派发
	seen := map[string]int{}
	for _, u := range fetcher.dispatched {
		seen[u]++
	}
	for u, n := range seen {
		if n != 1 {
			t.Errorf("asset %s dispatched %d times", u, n)
		}
	}
	if len(results) != 2 {
		t.Errorf("expected 2 unique results, got %d", len(results))
	}
}

// 3 批次各 5 条，第 12 条早于截止日期：遍历在第 12 条终止，
// 返回 11 条唯一结果，且第 12 条的抓取也被派发并等待。
func TestDriver_CutoffEndToEnd(t *testing.T) {
	cutoff := day(2026, time.July, 1)

	mkBatch := func(from, to int) []model.RawItem {
		var items []model.RawItem
		for i := from; i <= to; i++ {
			date := cutoff.AddDate(0, 0, 11-i) // 单调递减，i=12 时早于截止日期
			it := rawItem(i, date, true)
			items = append(items, it)
		}
		return items
	}

	session := &fakeSession{batches: [][][]model.RawItem{
		{mkBatch(1, 5)},
		{mkBatch(6, 10)},
		{mkBatch(11, 15)},
	}}
	fetcher := &fakeFetcher{}
	driver := New(session, fetcher, &fixedPolicy{}, testLogger())

	results, err := driver.Run(context.Background(), "story", cutoff)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(results) != 11 {
		t.Fatalf("expected 11 unique results, got %d", len(results))
	}
	if len(fetcher.dispatched) != 12 {
		t.Errorf("expected 12 dispatched tasks (cutoff item included), got %d", len(fetcher.dispatched))
	}
	if fetcher.drains != 1 {
		t.Errorf("expected exactly 1 drain, got %d", fetcher.drains)
	}
	// 截止后不再推进批次
	if session.nextCalls != 2 {
		t.Errorf("expected 2 NextBatch calls, got %d", session.nextCalls)
	}
	for _, r := range results {
		if r.Date.Before(cutoff) {
			t.Errorf("result dated %v is before cutoff %v", r.Date, cutoff)
		}
	}
	// 日期降序
	for i := 1; i < len(results); i++ {
		if results[i].Date.After(results[i-1].Date) {
			t.Errorf("results not sorted descending at index %d", i)
		}
	}
}

// 批次耗尽（无下一批）是正常终止。
func TestDriver_ExhaustedBatches(t *testing.T) {
	d1 := day(2026, time.August, 20)
	session := &fakeSession{batches: [][][]model.RawItem{
		{{rawItem(0, d1, true)}},
		{{rawItem(1, d1, true)}},
	}}
	fetcher := &fakeFetcher{}
	driver := New(session, fetcher, &fixedPolicy{}, testLogger())

	results, err := driver.Run(context.Background(), "story", day(2026, time.August, 1))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
	if fetcher.drains != 1 {
		t.Errorf("expected 1 drain on normal exit, got %d", fetcher.drains)
	}
}

// 提取失败是致命错误，但任务组仍要被排空。
func TestDriver_FatalErrorStillDrains(t *testing.T) {
	session := &fakeSession{
		batches:    [][][]model.RawItem{{{}}},
		extractErr: errors.New("session crashed"),
	}
	fetcher := &fakeFetcher{}
	driver := New(session, fetcher, &fixedPolicy{}, testLogger())

	_, err := driver.Run(context.Background(), "story", day(2026, time.August, 1))
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if fetcher.drains != 1 {
		t.Errorf("expected drain on error path, got %d", fetcher.drains)
	}
}

// 队列满导致派发被拒绝的条目不得计入 done：批次不能在该资源
// 未派发的情况下宣告稳定，下一轮扫描必须重试派发。
func TestDriver_RejectedDispatchRetriedNextPass(t *testing.T) {
	d1 := day(2026, time.August, 20)
	snapshot := []model.RawItem{rawItem(0, d1, true)}
	session := &fakeSession{batches: [][][]model.RawItem{{snapshot}}}
	fetcher := &rejectingFetcher{rejects: 1}
	driver := New(session, fetcher, &fixedPolicy{}, testLogger())

	results, err := driver.Run(context.Background(), "story", day(2026, time.August, 1))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// 第一轮派发被拒绝，批次不得稳定；第二轮重试成功后才稳定
	if session.extracts != 2 {
		t.Errorf("expected 2 extraction passes (retry after rejection), got %d", session.extracts)
	}
	if fetcher.attempts != 2 {
		t.Errorf("expected 2 dispatch attempts, got %d", fetcher.attempts)
	}
	if len(fetcher.accepted) != 1 {
		t.Errorf("expected exactly 1 accepted dispatch, got %v", fetcher.accepted)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 unique result, got %d", len(results))
	}
	if fetcher.drains != 1 {
		t.Errorf("expected 1 drain, got %d", fetcher.drains)
	}
}

// 派发一直被拒绝时批次由扫描上限关闭，而不是假装稳定。
func TestDriver_AlwaysRejectedClosesByPassLimit(t *testing.T) {
	d1 := day(2026, time.August, 20)
	snapshot := []model.RawItem{rawItem(0, d1, true)}
	session := &fakeSession{batches: [][][]model.RawItem{{snapshot}}}
	fetcher := &rejectingFetcher{rejects: int(^uint(0) >> 1)}
	driver := New(session, fetcher, &fixedPolicy{}, testLogger(), WithMaxScrollPasses(3))

	results, err := driver.Run(context.Background(), "story", day(2026, time.August, 1))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if session.extracts != 3 {
		t.Errorf("expected 3 extraction passes before pass limit, got %d", session.extracts)
	}
	if fetcher.attempts != 3 {
		t.Errorf("expected a retry on every pass, got %d attempts", fetcher.attempts)
	}
	if len(fetcher.accepted) != 0 {
		t.Errorf("expected no accepted dispatches, got %v", fetcher.accepted)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 unique result, got %d", len(results))
	}
}

// 永不材料化的条目不会让批次死循环：达到扫描上限后批次关闭。
func TestDriver_PassLimit(t *testing.T) {
	d1 := day(2026, time.August, 20)
	snapshot := []model.RawItem{rawItem(0, d1, true), rawItem(1, d1, false)}
	session := &fakeSession{batches: [][][]model.RawItem{{snapshot}}}
	fetcher := &fakeFetcher{}
	policy := &fixedPolicy{}
	driver := New(session, fetcher, policy, testLogger(), WithMaxScrollPasses(3))

	results, err := driver.Run(context.Background(), "story", day(2026, time.August, 1))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if session.extracts != 3 {
		t.Errorf("expected 3 extraction passes, got %d", session.extracts)
	}
	if len(fetcher.dispatched) != 1 {
		t.Errorf("expected single dispatch, got %d", len(fetcher.dispatched))
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
	// scrollY 固定为 0，每次滚动后都应触发方向反转
	if policy.reversals != session.scrolls {
		t.Errorf("expected %d reversals, got %d", session.scrolls, policy.reversals)
	}
}
