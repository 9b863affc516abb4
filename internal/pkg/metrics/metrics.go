// Package metrics 定义遍历过程的 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesWalked 已处理的结果批次数。
	BatchesWalked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newswalker_batches_walked_total",
		Help: "Number of result batches processed by the pagination driver",
	})

	// ScrollPasses 滚动穷尽循环执行的扫描轮数。
	ScrollPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newswalker_scroll_passes_total",
		Help: "Number of extract-scroll passes across all batches",
	})

	// ItemsExtracted 提取出的原始条目数（含重复扫描产生的重复条目）。
	ItemsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newswalker_items_extracted_total",
		Help: "Raw items extracted, duplicates across scroll passes included",
	})

	// FetchTasksTotal 主动抓取任务计数，按结果分类。
	FetchTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswalker_fetch_tasks_total",
		Help: "Active fetch tasks by outcome",
	}, []string{"status"}) // dispatched / succeeded / failed

	// CapturesTotal 被动捕获计数，按结果分类。
	CapturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswalker_captures_total",
		Help: "Passive network captures by outcome",
	}, []string{"status"}) // persisted / below_threshold / failed

	// WalkDuration 单次完整遍历耗时。
	WalkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newswalker_walk_duration_seconds",
		Help:    "Wall time of a complete walk",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	// WalkResults 单次遍历产出的唯一结果数。
	WalkResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newswalker_walk_results",
		Help:    "Unique results produced per walk",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	// WalkErrorsTotal 致命遍历错误计数，按分类标签。
	WalkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswalker_walk_errors_total",
		Help: "Fatal walk errors by classification",
	}, []string{"type"})
)
