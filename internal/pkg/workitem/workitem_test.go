package workitem

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rdb.Close() })

	c, err := NewClientWithRedis(rdb)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestItem_Normalize(t *testing.T) {
	var it Item
	it.Normalize()
	if it.Query != "Brazil" || it.Months != 1 || it.Category != "Business" {
		t.Errorf("unexpected defaults: %+v", it)
	}

	it = Item{Query: "  gold  ", Months: 3, Category: "Markets"}
	it.Normalize()
	if it.Query != "gold" {
		t.Errorf("expected trimmed query, got %q", it.Query)
	}
	if it.Months != 3 || it.Category != "Markets" {
		t.Errorf("explicit fields must survive normalize: %+v", it)
	}
}

func TestItem_Cutoff(t *testing.T) {
	now := time.Date(2026, time.August, 25, 13, 30, 0, 0, time.UTC)

	tests := []struct {
		months int
		want   time.Time
	}{
		{1, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)},
		{2, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)},
		{9, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		it := Item{Months: tt.months}
		if got := it.Cutoff(now); !got.Equal(tt.want) {
			t.Errorf("months=%d: cutoff=%v, want %v", tt.months, got, tt.want)
		}
	}
}

func TestItem_OutputFilename(t *testing.T) {
	it := Item{Query: "Brazil", Months: 1, Category: "Business"}
	want := "reuters_query-Brazil_cat-Business_months-1.xlsx"
	if got := it.OutputFilename(); got != want {
		t.Errorf("filename=%q, want %q", got, want)
	}

	// 非字母数字字符剔除，词间用连字符
	it = Item{Query: "oil & gas", Months: 2, Category: "Markets"}
	want = "reuters_query-oil--gas_cat-Markets_months-2.xlsx"
	if got := it.OutputFilename(); got != want {
		t.Errorf("filename=%q, want %q", got, want)
	}
}

func TestClient_ItemRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.PushItem(ctx, Item{Query: "coffee", Months: 2, Category: "Markets"}); err != nil {
		t.Fatalf("push item: %v", err)
	}

	got, err := c.PopItem(ctx, time.Second)
	if err != nil {
		t.Fatalf("pop item: %v", err)
	}
	if got.Query != "coffee" || got.Months != 2 || got.Category != "Markets" {
		t.Errorf("unexpected item: %+v", got)
	}
}

// 空载荷入队后出队必须带上缺省值。
func TestClient_PopItemAppliesDefaults(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.PushItem(ctx, Item{}); err != nil {
		t.Fatalf("push item: %v", err)
	}
	got, err := c.PopItem(ctx, time.Second)
	if err != nil {
		t.Fatalf("pop item: %v", err)
	}
	if got.Query != "Brazil" || got.Months != 1 || got.Category != "Business" {
		t.Errorf("expected defaults, got %+v", got)
	}
}

func TestClient_ResultRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.PushResult(ctx, Result{Filename: "out.xlsx", ResultsFound: 11}); err != nil {
		t.Fatalf("push result: %v", err)
	}
	got, err := c.PopResult(ctx, time.Second)
	if err != nil {
		t.Fatalf("pop result: %v", err)
	}
	if got.Filename != "out.xlsx" || got.ResultsFound != 11 || got.Error != "" {
		t.Errorf("unexpected result: %+v", got)
	}

	if err := c.PushResult(ctx, Result{Error: "walk failed: navigation timeout"}); err != nil {
		t.Fatalf("push error result: %v", err)
	}
	got, err = c.PopResult(ctx, time.Second)
	if err != nil {
		t.Fatalf("pop error result: %v", err)
	}
	if got.Error == "" || got.Filename != "" {
		t.Errorf("unexpected error result: %+v", got)
	}
}
