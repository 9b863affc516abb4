// Package assetid 从图片 URL 推导稳定的资源身份。
//
// 同一张图片的缩略图变体与原图变体共享同一个 basename，
// 因此 basename 可以作为主动抓取与被动捕获两条路径共用的去重键。
package assetid

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// resizerPathRe 匹配图片缩放服务的路径段：/resizer/<version>/<basename>.<ext>
var resizerPathRe = regexp.MustCompile(`^/resizer/v\d+/([A-Za-z0-9_-]+)\.(jpe?g|png|webp|gif|avif)$`)

// FromURL 返回 URL 路径最后一段去掉扩展名后的 basename。
//
// URL 非法或为空时返回空字符串，调用方应将其视为"该条目没有可抓取的资源"
// 并跳过抓取调度，而不是报错。
func FromURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return ""
	}
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// ResizedAsset 描述一次命中缩放服务投递模式的响应。
type ResizedAsset struct {
	Basename string
	Ext      string
	Width    int // width 查询参数，缩略图阈值判断用
	Quality int
}

// Filename 返回该资源落盘时使用的文件名。
func (a ResizedAsset) Filename() string {
	return a.Basename + "." + a.Ext
}

// ParseResizerURL 判断 URL 是否命中资源投递模式并解析其组成部分。
//
// 模式要求：https、路径形如 /resizer/v2/<basename>.<ext>、
// 查询串携带 auth 令牌与 width/quality 参数。不命中时返回 ok=false。
func ParseResizerURL(rawURL string) (ResizedAsset, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ResizedAsset{}, false
	}
	if u.Scheme != "https" || u.Host == "" {
		return ResizedAsset{}, false
	}

	m := resizerPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return ResizedAsset{}, false
	}

	q := u.Query()
	if q.Get("auth") == "" {
		return ResizedAsset{}, false
	}
	width, err := strconv.Atoi(q.Get("width"))
	if err != nil || width <= 0 {
		return ResizedAsset{}, false
	}
	quality, err := strconv.Atoi(q.Get("quality"))
	if err != nil || quality <= 0 {
		return ResizedAsset{}, false
	}

	return ResizedAsset{
		Basename: m[1],
		Ext:      m[2],
		Width:    width,
		Quality:  quality,
	}, true
}
