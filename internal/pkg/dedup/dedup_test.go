package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestDeduplicator_IsDuplicate(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer s.Close()

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Fatalf("close redis: %v", err)
		}
	})

	d := NewDeduplicator(rdb, time.Minute)
	ctx := context.Background()

	payload := `{"query":"Brazil","months":1,"category":"Business"}`

	dup, err := d.IsDuplicate(ctx, payload)
	if err != nil {
		t.Fatalf("first dedup: %v", err)
	}
	if dup {
		t.Fatalf("expected first payload to be non-duplicate")
	}

	dup, err = d.IsDuplicate(ctx, payload)
	if err != nil {
		t.Fatalf("second dedup: %v", err)
	}
	if !dup {
		t.Fatalf("expected second payload to be duplicate")
	}

	// 不同载荷互不影响
	dup, err = d.IsDuplicate(ctx, `{"query":"gold","months":2,"category":"Markets"}`)
	if err != nil {
		t.Fatalf("other payload: %v", err)
	}
	if dup {
		t.Fatalf("expected different payload to be non-duplicate")
	}
}

func TestDeduplicator_Delete(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer s.Close()

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	d := NewDeduplicator(rdb, time.Minute)
	ctx := context.Background()

	if _, err := d.IsDuplicate(ctx, "payload"); err != nil {
		t.Fatal(err)
	}
	if err := d.Delete(ctx, "payload"); err != nil {
		t.Fatal(err)
	}
	dup, err := d.IsDuplicate(ctx, "payload")
	if err != nil {
		t.Fatal(err)
	}
	if dup {
		t.Fatal("expected payload to be non-duplicate after delete")
	}
}

// nil 去重器与空载荷都应放行而不是报错。
func TestDeduplicator_NilSafety(t *testing.T) {
	var d *Deduplicator
	dup, err := d.IsDuplicate(context.Background(), "anything")
	if err != nil || dup {
		t.Errorf("nil deduplicator: dup=%v err=%v", dup, err)
	}
}
