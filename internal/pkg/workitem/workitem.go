// Package workitem 定义遍历工作项及其 Redis 队列客户端。
//
// 工作项描述一次遍历的检索条件（query/months/category），
// 结果载荷携带输出文件名与唯一结果数，或一条错误信息。
package workitem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var filenameSafeRe = regexp.MustCompile(`[^a-zA-Z0-9 ]`)

const (
	KeyItemQueue   = "newswalker:queue:items"
	KeyResultQueue = "newswalker:queue:results"
)

var (
	ErrNoItem   = errors.New("no work item available")
	ErrNoResult = errors.New("no result available")
)

// 缺省检索条件，字段缺失或非法时回落到这里。
const (
	DefaultQuery    = "Brazil"
	DefaultMonths   = 1
	DefaultCategory = "Business"
)

// Item 一次遍历的检索条件。
type Item struct {
	Query    string `json:"query"`
	Months   int    `json:"months"`
	Category string `json:"category"`
}

// Normalize 填充缺省值并修剪空白。
func (it *Item) Normalize() {
	it.Query = strings.TrimSpace(it.Query)
	if it.Query == "" {
		it.Query = DefaultQuery
	}
	if it.Months < 1 {
		it.Months = DefaultMonths
	}
	it.Category = strings.TrimSpace(it.Category)
	if it.Category == "" {
		it.Category = DefaultCategory
	}
}

// Cutoff 计算遍历的截止日期：months-1 个月前那个月的 1 号（UTC 零点）。
//
// months=1 即本月 1 号，早于截止日期的条目不进入结果集。
func (it Item) Cutoff(now time.Time) time.Time {
	now = now.UTC()
	year, month, _ := now.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(it.Months - 1), 0)
}

// OutputFilename 根据检索条件生成结果文件名。
// 检索词逐词剔除非字母数字字符后用连字符拼接。
func (it Item) OutputFilename() string {
	words := strings.Fields(it.Query)
	for i, w := range words {
		words[i] = filenameSafeRe.ReplaceAllString(w, "")
	}
	return fmt.Sprintf("reuters_query-%s_cat-%s_months-%d.xlsx",
		strings.Join(words, "-"), it.Category, it.Months)
}

// Payload 返回规整后的 JSON 载荷，用于去重键。
func (it Item) Payload() string {
	data, err := json.Marshal(it)
	if err != nil {
		return ""
	}
	return string(data)
}

// Result 遍历完成后推回队列的载荷。成功时填 Filename/ResultsFound，
// 失败时只填 Error。
type Result struct {
	Filename     string `json:"filename,omitempty"`
	ResultsFound int    `json:"results_found,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Client 封装工作项与结果的 Redis List 操作。
type Client struct {
	rdb *redis.Client
}

// NewClient 用地址和密码创建队列客户端。
func NewClient(addr, password string) *Client {
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       0,
		}),
	}
}

// NewClientWithRedis 复用已有的 redis.Client。
func NewClientWithRedis(rdb *redis.Client) (*Client, error) {
	if rdb == nil {
		return nil, errors.New("redis client is nil")
	}
	return &Client{rdb: rdb}, nil
}

// PushItem 序列化工作项并入队。
func (c *Client) PushItem(ctx context.Context, item Item) error {
	if c == nil || c.rdb == nil {
		return errors.New("redis client is not initialized")
	}
	item.Normalize()
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	if err := c.rdb.LPush(ctx, KeyItemQueue, string(data)).Err(); err != nil {
		return fmt.Errorf("lpush item: %w", err)
	}
	return nil
}

// PopItem 阻塞等待工作项，超时返回 ErrNoItem。
//
// 取出的工作项已做缺省值规整，调用方拿到的字段总是可用的。
func (c *Client) PopItem(ctx context.Context, timeout time.Duration) (Item, error) {
	var item Item
	if c == nil || c.rdb == nil {
		return item, errors.New("redis client is not initialized")
	}
	result, err := c.rdb.BRPop(ctx, timeout, KeyItemQueue).Result()
	if errors.Is(err, redis.Nil) {
		return item, ErrNoItem
	}
	if err != nil {
		return item, fmt.Errorf("brpop item: %w", err)
	}
	if len(result) < 2 {
		return item, fmt.Errorf("invalid brpop response: %v", result)
	}
	if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
		return item, fmt.Errorf("unmarshal item: %w", err)
	}
	item.Normalize()
	return item, nil
}

// PushResult 序列化结果载荷并入队。每个工作项都必须产出一个结果，
// 即使遍历失败也要推送带 error 的载荷。
func (c *Client) PushResult(ctx context.Context, res Result) error {
	if c == nil || c.rdb == nil {
		return errors.New("redis client is not initialized")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := c.rdb.LPush(ctx, KeyResultQueue, string(data)).Err(); err != nil {
		return fmt.Errorf("lpush result: %w", err)
	}
	return nil
}

// PopResult 阻塞等待结果载荷，超时返回 ErrNoResult。
func (c *Client) PopResult(ctx context.Context, timeout time.Duration) (Result, error) {
	var res Result
	if c == nil || c.rdb == nil {
		return res, errors.New("redis client is not initialized")
	}
	result, err := c.rdb.BRPop(ctx, timeout, KeyResultQueue).Result()
	if errors.Is(err, redis.Nil) {
		return res, ErrNoResult
	}
	if err != nil {
		return res, fmt.Errorf("brpop result: %w", err)
	}
	if len(result) < 2 {
		return res, fmt.Errorf("invalid brpop response: %v", result)
	}
	if err := json.Unmarshal([]byte(result[1]), &res); err != nil {
		return res, fmt.Errorf("unmarshal result: %w", err)
	}
	return res, nil
}

// QueueDepth 返回工作项队列与结果队列的当前长度。
func (c *Client) QueueDepth(ctx context.Context) (int64, int64, error) {
	if c == nil || c.rdb == nil {
		return 0, 0, errors.New("redis client is not initialized")
	}
	items, err := c.rdb.LLen(ctx, KeyItemQueue).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("llen items: %w", err)
	}
	results, err := c.rdb.LLen(ctx, KeyResultQueue).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("llen results: %w", err)
	}
	return items, results, nil
}

// Close 关闭底层 Redis 连接。
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
