// Package extract 将单个批次的 DOM 快照解析为原始条目列表。
//
// 解析是纯函数式的：输入一段 HTML，输出 RawItem 切片。
// 单条列表项解析失败只跳过该条并记警告，不影响同批次的其它条目。
package extract

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"newswalker/internal/assetid"
	"newswalker/internal/model"

	"github.com/PuerkitoBio/goquery"
)

// 列表项内的字段选择器。站点改版不在本工程的恢复范围内，
// 选择器变更直接体现为条目解析失败。
const (
	selListEntry = "li"
	selHeading   = `span[data-testid="Heading"]`
	selTime      = "time"
	selImage     = "img"
)

// datetime 属性的两种已知格式：带毫秒与不带毫秒。
var dateLayouts = []string{
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
}

// Extractor 负责批次快照的解析。
type Extractor struct {
	logger *slog.Logger
}

// New 创建解析器。
func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract 解析一个批次快照，返回其中所有可解析的条目。
//
// 重复滚动扫描会对同一 DOM 产生重复条目，这里不去重（聚合阶段统一处理）。
func (e *Extractor) Extract(html string) ([]model.RawItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse batch snapshot: %w", err)
	}

	items := make([]model.RawItem, 0, 16)
	skipped := 0
	doc.Find(selListEntry).Each(func(i int, sel *goquery.Selection) {
		item, err := extractEntry(sel)
		if err != nil {
			skipped++
			if skipped <= 3 {
				e.logger.Warn("extract entry failed",
					slog.Int("index", i),
					slog.String("error", err.Error()))
			}
			return
		}
		items = append(items, item)
	})

	if skipped > 0 {
		e.logger.Debug("batch extracted with skips",
			slog.Int("items", len(items)),
			slog.Int("skipped", skipped))
	}
	return items, nil
}

// extractEntry 解析单个列表项。标题与日期缺失视为解析失败，
// 图片字段缺失只意味着该条目没有可抓取的资源。
func extractEntry(sel *goquery.Selection) (model.RawItem, error) {
	heading := sel.Find(selHeading).First()
	if heading.Length() == 0 {
		return model.RawItem{}, fmt.Errorf("heading not found")
	}
	title := strings.TrimSpace(heading.Text())
	if title == "" {
		return model.RawItem{}, fmt.Errorf("empty heading")
	}

	dtAttr, ok := sel.Find(selTime).First().Attr("datetime")
	if !ok {
		return model.RawItem{}, fmt.Errorf("datetime attribute not found")
	}
	date, err := parseDate(dtAttr)
	if err != nil {
		return model.RawItem{}, err
	}

	item := model.RawItem{
		Date:  model.Day(date),
		Title: title,
	}

	img := sel.Find(selImage).First()
	if img.Length() > 0 {
		if alt, ok := img.Attr("alt"); ok {
			item.Description = strings.TrimSpace(alt)
		}
		if src, ok := img.Attr("src"); ok {
			item.AssetSourceURL = src
			item.AssetBasename = assetid.FromURL(src)
		}
		if srcset, ok := img.Attr("srcset"); ok {
			item.AssetResizedURL = smallestVariant(srcset)
		}
	}

	return item, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable datetime %q", value)
}

// smallestVariant 解析 responsive-image 描述符（srcset），
// 返回宽度最小的变体 URL。描述符无法解析时返回空串，
// 调用方据此跳过主动抓取（条目本身仍然有效）。
func smallestVariant(srcset string) string {
	best := ""
	bestWidth := 0
	for _, part := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) != 2 || !strings.HasSuffix(fields[1], "w") {
			continue
		}
		width, err := strconv.Atoi(strings.TrimSuffix(fields[1], "w"))
		if err != nil || width <= 0 {
			continue
		}
		if best == "" || width < bestWidth {
			best = fields[0]
			bestWidth = width
		}
	}
	return best
}
