// Package capture 实现对网络响应的被动资源捕获。
//
// 监听器注册一次、伴随页面整个生命周期。命中资源分发模式且宽度
// 达标的响应体会落盘，同一标识重复送达时直接覆盖（幂等）。这是
// 一条机会主义路径：任何失败都就地吞掉，绝不影响持有它的会话。
package capture

import (
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"

	"newswalker/internal/assetid"
	"newswalker/internal/pkg/metrics"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Capturer 被动捕获器。
type Capturer struct {
	dir      string
	minWidth int
	logger   *slog.Logger
}

// New 创建捕获器。minWidth 以下的缩略图变体不落盘。
func New(dir string, minWidth int, logger *slog.Logger) *Capturer {
	if minWidth <= 0 {
		minWidth = 400
	}
	return &Capturer{
		dir:      dir,
		minWidth: minWidth,
		logger:   logger,
	}
}

// Match 判断响应 URL 是否是值得落盘的资源变体。
//
// 纯函数：不命中资源分发模式返回 false；命中但宽度低于阈值
// 同样返回 false（缩略图不值得保存）。
func (c *Capturer) Match(rawURL string) (assetid.ResizedAsset, bool) {
	asset, ok := assetid.ParseResizerURL(rawURL)
	if !ok {
		return assetid.ResizedAsset{}, false
	}
	if asset.Width < c.minWidth {
		metrics.CapturesTotal.WithLabelValues("below_threshold").Inc()
		return assetid.ResizedAsset{}, false
	}
	return asset, true
}

// Persist 将响应体写入 (basename, ext) 派生的文件名，覆盖旧内容。
func (c *Capturer) Persist(asset assetid.ResizedAsset, body []byte) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, asset.Filename()), body, 0644)
}

// Attach 把捕获器挂到页面的网络事件流上，伴随页面生命周期运行。
func (c *Capturer) Attach(page *rod.Page) error {
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return err
	}

	go page.EachEvent(func(e *proto.NetworkResponseReceived) {
		c.handleResponse(page, e)
	})()

	c.logger.Info("passive capture attached",
		slog.String("dir", c.dir),
		slog.Int("min_width", c.minWidth))
	return nil
}

// handleResponse 处理单个响应。所有失败就地吞掉，只记录日志与指标。
func (c *Capturer) handleResponse(page *rod.Page, e *proto.NetworkResponseReceived) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("capture handler panic swallowed", slog.Any("panic", r))
		}
	}()

	asset, ok := c.Match(e.Response.URL)
	if !ok {
		return
	}

	body, err := proto.NetworkGetResponseBody{RequestID: e.RequestID}.Call(page)
	if err != nil {
		metrics.CapturesTotal.WithLabelValues("failed").Inc()
		c.logger.Debug("read response body failed",
			slog.String("basename", asset.Basename),
			slog.String("error", err.Error()))
		return
	}

	data := []byte(body.Body)
	if body.Base64Encoded {
		decoded, decErr := base64.StdEncoding.DecodeString(body.Body)
		if decErr != nil {
			metrics.CapturesTotal.WithLabelValues("failed").Inc()
			c.logger.Debug("decode response body failed",
				slog.String("basename", asset.Basename),
				slog.String("error", decErr.Error()))
			return
		}
		data = decoded
	}

	if err := c.Persist(asset, data); err != nil {
		metrics.CapturesTotal.WithLabelValues("failed").Inc()
		c.logger.Debug("persist capture failed",
			slog.String("basename", asset.Basename),
			slog.String("error", err.Error()))
		return
	}

	metrics.CapturesTotal.WithLabelValues("persisted").Inc()
	c.logger.Debug("asset captured",
		slog.String("basename", asset.Basename),
		slog.Int("width", asset.Width),
		slog.Int("bytes", len(data)))
}
