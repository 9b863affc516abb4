package model

import (
	"time"
)

// RawItem 表示一次提取扫描中解析出的单条列表条目。
//
// 同一条目可能在多次滚动扫描中被重复解析，重复是预期行为，
// 去重在聚合阶段统一处理（见 internal/aggregate）。
type RawItem struct {
	Date        time.Time // 发布日期（天精度，UTC 零点）
	Title       string    // 标题
	Description string    // 描述（来自图片 alt，可能为空）

	AssetSourceURL  string // 原始图片链接
	AssetBasename   string // 图片 basename（资源身份，见 internal/assetid）
	AssetResizedURL string // 缩放变体链接（responsive 描述符解析失败时为空）
}

// HasAsset 返回该条目是否携带可抓取的图片资源。
func (r RawItem) HasAsset() bool {
	return r.AssetBasename != ""
}

// UniqueResult 是整个遍历结束后产出的唯一结果行。
//
// 易变字段（图片链接、basename）已剥离，仅保留对输出有意义的字段，
// 并附带查询词匹配数与价格提及标记。
type UniqueResult struct {
	Date        time.Time // 发布日期（天精度）
	Title       string
	Description string

	MatchCount     int  // 查询词在标题中的全词匹配总数
	PriceMentioned bool // 标题或描述中是否提及价格
}

// Post 是唯一结果在 MySQL 中的持久化形态（可选，DSN 为空时不启用）。
type Post struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time // 首次写入时间
	UpdatedAt time.Time

	Date        time.Time `gorm:"uniqueIndex:idx_date_title;not null"` // 发布日期
	Title       string    `gorm:"type:varchar(512);uniqueIndex:idx_date_title,length:191;not null"` // 标题
	Description string    `gorm:"type:text"`

	Query          string `gorm:"type:varchar(191);index"` // 产生该行的查询词
	MatchCount     int    `gorm:"default:0"`
	PriceMentioned bool   `gorm:"default:false"`
}

// Day 将任意时间截断到天精度（UTC 零点）。
//
// RawItem.Date 与 UniqueResult.Date 均以此为规范形态，
// 保证聚合阶段的字段元组相等判断不受时分秒干扰。
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
