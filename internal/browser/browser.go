// Package browser 负责浏览器会话的启动、页面引导与遍历原语的实现。
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"newswalker/internal/capture"
	"newswalker/internal/config"
	"newswalker/internal/extract"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

const (
	// 超时常量
	browserInitTimeout   = 30 * time.Second       // 浏览器初始化超时
	pageCreateTimeout    = 10 * time.Second       // 页面创建超时
	stealthScriptTimeout = 5 * time.Second        // Stealth 脚本应用超时
	navigateTimeout      = 60 * time.Second       // 页面导航超时
	loadStateTimeout     = 30 * time.Second       // WaitLoad 超时
	cookiePopupTimeout   = 15 * time.Second       // Cookie 弹窗等待超时
	affordanceTimeout    = 30 * time.Second       // 搜索/筛选控件等待超时
	nextBatchTimeout     = 5 * time.Second        // “加载更多”控件等待超时
	evalTimeout          = 5 * time.Second        // 页面脚本求值超时
	settleLoadTimeout    = 3 * time.Second        // 滚动安定后的加载等待

	defaultUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"
)

// Browser 包装一个 rod 浏览器实例。
type Browser struct {
	browser *rod.Browser
	cfg     *config.Config
	logger  *slog.Logger
}

// New 根据配置启动浏览器。
//
// 针对 Docker/EC2 环境做了适配（NoSandbox、禁用 /dev/shm 等）。
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Browser, error) {
	initCtx, cancel := context.WithTimeout(ctx, browserInitTimeout)
	defer cancel()

	bin := cfg.Browser.BinPath
	if bin == "" {
		logger.Info("no browser binary specified, downloading default...")
		path, err := launcher.NewBrowser().Get()
		if err != nil {
			return nil, fmt.Errorf("download browser: %w", err)
		}
		bin = path
	}

	l := launcher.New().
		Headless(cfg.Browser.Headless).
		Bin(bin).
		NoSandbox(true).
		// 禁用 /dev/shm，防止容器内内存崩溃
		Set("disable-dev-shm-usage", "true").
		// 禁用 GPU，服务器环境不需要，节省资源
		Set("disable-gpu", "true").
		Set("disable-software-rasterizer", "true").
		Set("remote-allow-origins", "*").
		// 缓存与内存优化，减少磁盘写入压力
		Set("disk-cache-size", "1").
		Set("media-cache-size", "1").
		Set("disable-application-cache", "true").
		Set("js-flags", "--max_old_space_size=512")

	var proxyUser, proxyPass string
	if cfg.Browser.ProxyURL != "" {
		parsed, err := url.Parse(cfg.Browser.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid proxy url: %s", cfg.Browser.ProxyURL)
		}
		l = l.Proxy(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host))
		if parsed.User != nil {
			proxyUser = parsed.User.Username()
			if pass, ok := parsed.User.Password(); ok {
				proxyPass = pass
			}
		}
		logger.Info("using http proxy", slog.String("server", parsed.Host))
	}

	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().Context(initCtx).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	if proxyUser != "" {
		go b.MustHandleAuth(proxyUser, proxyPass)()
		logger.Info("proxy authentication handler registered")
	}

	logger.Info("browser started",
		slog.String("bin", bin),
		slog.Bool("headless", cfg.Browser.Headless))
	return &Browser{browser: b, cfg: cfg, logger: logger}, nil
}

// NewSession 创建带 Stealth 与被动捕获监听的页面会话。
//
// capturer 可为 nil（不做被动捕获）。
func (b *Browser) NewSession(ctx context.Context, capturer *capture.Capturer) (*PageSession, error) {
	// 页面对象继承完整的会话 context，超时只在外层 select 保护
	type pageResult struct {
		page *rod.Page
		err  error
	}
	pageResultCh := make(chan pageResult, 1)
	go func() {
		page, pageErr := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: ""})
		select {
		case pageResultCh <- pageResult{page: page, err: pageErr}:
		default:
			if page != nil {
				_ = page.Close()
			}
			b.logger.Warn("page creation completed after timeout, cleaned up")
		}
	}()

	pageCreateTimer := time.NewTimer(pageCreateTimeout)
	defer pageCreateTimer.Stop()

	var page *rod.Page
	select {
	case result := <-pageResultCh:
		if result.err != nil {
			return nil, fmt.Errorf("create page failed: %w", result.err)
		}
		page = result.page
	case <-pageCreateTimer.C:
		return nil, fmt.Errorf("create page timeout after %v", pageCreateTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled during page creation: %w", ctx.Err())
	}

	// Stealth 脚本应用 - 同样只用 select 做超时保护
	stealthTimer := time.NewTimer(stealthScriptTimeout)
	defer stealthTimer.Stop()
	stealthDone := make(chan error, 1)
	go func() {
		_, evalErr := page.EvalOnNewDocument(stealth.JS)
		stealthDone <- evalErr
	}()

	select {
	case err := <-stealthDone:
		if err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("apply stealth script: %w", err)
		}
	case <-stealthTimer.C:
		_ = page.Close()
		return nil, fmt.Errorf("apply stealth script timeout after %v", stealthScriptTimeout)
	case <-ctx.Done():
		_ = page.Close()
		return nil, fmt.Errorf("context cancelled during stealth script: %w", ctx.Err())
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: defaultUA}); err != nil {
		b.logger.Warn("set user agent failed", slog.String("error", err.Error()))
	}

	if capturer != nil {
		if err := capturer.Attach(page); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("attach passive capture: %w", err)
		}
	}

	return &PageSession{
		page:    page,
		ex:      extract.New(b.logger),
		baseURL: b.cfg.Browser.BaseURL,
		logger:  b.logger,
	}, nil
}

// Close 关闭浏览器实例。
func (b *Browser) Close() error {
	if b == nil || b.browser == nil {
		return nil
	}
	return b.browser.Close()
}
