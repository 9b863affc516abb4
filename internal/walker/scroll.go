package walker

import (
	"context"
	"log/slog"
	"time"

	"newswalker/internal/model"
	"newswalker/internal/pkg/metrics"
)

// exhaustBatch 对当前批次执行滚动穷尽循环。
//
// 状态机：提取 → 滚动 → 提取 → … → 稳定。每轮先对当前 DOM 快照做
// 提取，把每个条目的资源标识加入 seen；首次见到且带缩放资源 URL 的
// 条目派发一次主动抓取，派发被接收后才标记 done。seen == done 时
// 批次稳定。
//
// 提取过程中遇到早于截止日期的条目立即发出 cutoff 信号，整个遍历
// （而不只是本批次）终止；截止条目本身的抓取照常派发，但不进入
// 结果累加器。
func (d *Driver) exhaustBatch(ctx context.Context, batch int, cutoff time.Time, acc *[]model.RawItem) (bool, error) {
	seen := make(map[string]struct{})
	done := make(map[string]struct{})

	// 滚动范围只在进入批次时读取一次
	viewportH, err := d.session.ViewportHeight(ctx)
	if err != nil {
		return false, err
	}
	scrollableH, err := d.session.ScrollableHeight(ctx)
	if err != nil {
		return false, err
	}

	for pass := 0; pass < d.maxScrollPasses; pass++ {
		items, err := d.session.Extract(ctx)
		if err != nil {
			return false, err
		}
		metrics.ScrollPasses.Inc()
		metrics.ItemsExtracted.Add(float64(len(items)))

		for _, it := range items {
			if id := it.AssetBasename; id != "" {
				seen[id] = struct{}{}
				// 懒加载尚未材料化的条目没有缩放 URL，留在 seen 里
				// 等后续滚动轮次补上；已派发过的不再重复派发。
				// 队列满被拒绝的派发同样不计入 done，下一轮重试，
				// 批次不得在资源未派发的情况下宣告稳定
				if _, ok := done[id]; !ok && it.AssetResizedURL != "" {
					if d.fetcher.Dispatch(it.AssetResizedURL) {
						done[id] = struct{}{}
					}
				}
			}

			if it.Date.Before(cutoff) {
				d.logger.Info("cutoff reached",
					slog.Int("batch", batch),
					slog.Int("pass", pass),
					slog.Time("item_date", it.Date),
					slog.Time("cutoff", cutoff))
				return true, nil
			}

			*acc = append(*acc, it)
		}

		if len(seen) == len(done) {
			d.logger.Debug("batch stable",
				slog.Int("batch", batch),
				slog.Int("passes", pass+1),
				slog.Int("assets", len(done)))
			return false, nil
		}

		delta, settle := d.policy.NextStep(viewportH)
		if err := d.session.ScrollBy(ctx, delta); err != nil {
			return false, err
		}
		if err := d.session.WaitSettle(ctx, settle); err != nil {
			return false, err
		}

		y, err := d.session.ScrollY(ctx)
		if err != nil {
			return false, err
		}
		if y <= 0 || y+viewportH >= scrollableH {
			d.policy.Reverse()
		}
	}

	d.logger.Warn("scroll exhaustion pass limit reached, closing batch",
		slog.Int("batch", batch),
		slog.Int("max_passes", d.maxScrollPasses),
		slog.Int("seen", len(seen)),
		slog.Int("done", len(done)))
	return false, nil
}
