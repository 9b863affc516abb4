// Package annotate 为唯一结果补充查询词匹配数与价格提及标记。
//
// 两个分类器都是无状态的文本函数，语义刻意保持简单：
// 全词正则匹配而非分词/词干化，两段式价格正则而非金额解析。
package annotate

import (
	"regexp"
	"strings"

	"newswalker/internal/model"
)

var (
	// priceIsolateRe 圈出候选价格片段：$ 前缀的数字串，或以 dollars/USD
	// 结尾的数字串。两种形态都要求以数字收尾，排除悬挂的逗号或句点。
	priceIsolateRe = regexp.MustCompile(`\$[\d,.]*\d|\b[\d,.]*\d (dollars|USD)$`)

	// priceValidateRe 校验候选片段：首位非零数字，千位用逗号分组，
	// 小数部分可选。
	priceValidateRe = regexp.MustCompile(`^\$[1-9]\d{0,2}(,\d{3})*(\.\d+)?$|^[1-9]\d{0,2}(,\d{3})*(\.\d+)? (dollars|USD)$`)
)

// MatchCount 统计查询中每个空白分隔的词在标题中的全词匹配数并求和。
//
// 匹配不区分大小写，只看标题不看描述。词边界语义与正则 \b 一致：
// "Brazil's" 中的 "Brazil" 算一次匹配（撇号构成边界）。
func MatchCount(query, title string) int {
	count := 0
	for _, word := range strings.Fields(query) {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
		if err != nil {
			continue
		}
		count += len(re.FindAllString(title, -1))
	}
	return count
}

// PriceMentioned 判断文本中是否提及一个格式合法的价格。
//
// 第一段圈出候选片段，第二段逐个严格校验，命中任意一个即返回 true。
func PriceMentioned(text string) bool {
	for _, candidate := range priceIsolateRe.FindAllString(text, -1) {
		if priceValidateRe.MatchString(candidate) {
			return true
		}
	}
	return false
}

// Apply 为每个唯一结果填充 MatchCount 与 PriceMentioned。
//
// 价格判断沿用标题+描述拼接文本，匹配计数只针对标题。
func Apply(results []model.UniqueResult, query string) []model.UniqueResult {
	for i := range results {
		results[i].MatchCount = MatchCount(query, results[i].Title)
		results[i].PriceMentioned = PriceMentioned(results[i].Title + " " + results[i].Description)
	}
	return results
}
