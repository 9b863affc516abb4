// Package dedup 基于 Redis SetNX 对工作项载荷去重。
//
// 同一载荷（相同 query/months/category）在窗口期内重复提交时，
// 第二次遍历会被跳过，避免对同一检索条件的无谓重爬。
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "newswalker:dedup:payload:"

// Deduplicator 窗口期内的载荷去重器。
type Deduplicator struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDeduplicator 创建去重器，ttl 非正时取 1 小时。
func NewDeduplicator(rdb *redis.Client, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Deduplicator{
		rdb: rdb,
		ttl: ttl,
	}
}

// IsDuplicate 判断载荷是否在窗口期内已被处理过。
//
// 去重器或 Redis 未初始化时视为非重复（放行），不报错。
func (d *Deduplicator) IsDuplicate(ctx context.Context, payload string) (bool, error) {
	if d == nil || d.rdb == nil || payload == "" {
		return false, nil
	}
	key := keyPrefix + hashPayload(payload)
	ok, err := d.rdb.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return !ok, nil
}

// Delete 清除载荷的去重标记，允许立即重新遍历。
func (d *Deduplicator) Delete(ctx context.Context, payload string) error {
	if d == nil || d.rdb == nil || payload == "" {
		return nil
	}
	key := keyPrefix + hashPayload(payload)
	if err := d.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("dedup del: %w", err)
	}
	return nil
}

func hashPayload(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
