// Package aggregate 将整个遍历累积的原始条目折叠成唯一结果集。
package aggregate

import (
	"sort"
	"time"

	"newswalker/internal/model"
)

// key 是去重用的完整字段元组。
//
// 刻意不用资源 basename 去重：两篇不同的报道可能碰巧共用一张图，
// 不能因此被折叠成一条。
type key struct {
	date        time.Time
	title       string
	description string
}

// Unique 剥离易变字段、按剩余字段元组去重并按日期降序排序。
//
// 幂等：对结果再次折叠得到相同序列。同日期条目之间的先后顺序
// 不作保证，调用方不应依赖。
func Unique(items []model.RawItem) []model.UniqueResult {
	seen := make(map[key]struct{}, len(items))
	out := make([]model.UniqueResult, 0, len(items))

	for _, it := range items {
		k := key{date: model.Day(it.Date), title: it.Title, description: it.Description}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, model.UniqueResult{
			Date:        k.date,
			Title:       it.Title,
			Description: it.Description,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}
