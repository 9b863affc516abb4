package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newswalker/internal/extract"
	"newswalker/internal/model"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// 页面选择器
const (
	selCookieReject  = "button#onetrust-reject-all-handler"
	selSearchOpen    = "//button[@aria-label='Open search bar']"
	selSearchInput   = `[data-testid="FormField:input"]`
	selSearchSubmit  = "//button[@aria-label='Search']"
	selSectionFilter = "button#sectionfilter"
	selSortBy        = "button#sortby"
	selResultsList   = "ul[class*='search-results']"
	selNextBatch     = "//button[contains(@aria-label, 'Next stories')]"
	fmtFilterDataKey = "//li[@data-key='%s']"
)

// PageSession 单个结果页面的活动会话，实现遍历原语。
type PageSession struct {
	page    *rod.Page
	ex      *extract.Extractor
	baseURL string
	logger  *slog.Logger
}

// Open 导航到站点并完成检索引导：拒绝 Cookie 弹窗（容忍缺失）、
// 输入检索词、选择栏目、按最新排序，最后等待结果列表出现。
func (s *PageSession) Open(ctx context.Context, query, category string) error {
	s.logger.Info("loading page", slog.String("url", s.baseURL))

	// 在 goroutine 中执行 Navigate，超时则强制返回
	navigateCtx, navigateCancel := context.WithTimeout(ctx, navigateTimeout)
	defer navigateCancel()

	navigateErrCh := make(chan error, 1)
	go func() {
		navigateErrCh <- s.page.Navigate(s.baseURL)
	}()

	select {
	case navErr := <-navigateErrCh:
		if navErr != nil {
			return fmt.Errorf("navigate: %w", navErr)
		}
	case <-navigateCtx.Done():
		return fmt.Errorf("navigate timeout: %w", navigateCtx.Err())
	}

	loadCtx, loadCancel := context.WithTimeout(ctx, loadStateTimeout)
	defer loadCancel()
	if err := s.page.Context(loadCtx).WaitLoad(); err != nil {
		s.logger.Warn("WaitLoad failed, continuing anyway", slog.String("error", err.Error()))
	}

	s.rejectCookiesIfPresent()

	if err := s.search(ctx, query); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := s.selectFilter(ctx, selSectionFilter, category); err != nil {
		return fmt.Errorf("select category: %w", err)
	}
	if err := s.selectFilter(ctx, selSortBy, "Newest"); err != nil {
		return fmt.Errorf("sort by newest: %w", err)
	}

	if _, err := s.page.Context(ctx).Timeout(affordanceTimeout).Element(selResultsList); err != nil {
		return fmt.Errorf("wait results list: %w", err)
	}
	s.logger.Info("search results ready",
		slog.String("query", query),
		slog.String("category", category))
	return nil
}

// rejectCookiesIfPresent 拒绝 Cookie 弹窗，弹窗缺失是正常情况。
func (s *PageSession) rejectCookiesIfPresent() {
	el, err := s.page.Timeout(cookiePopupTimeout).Element(selCookieReject)
	if err != nil {
		s.logger.Info("cookies popup not found, continuing")
		return
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		s.logger.Warn("reject cookies click failed", slog.String("error", err.Error()))
	}
}

func (s *PageSession) search(ctx context.Context, query string) error {
	open, err := s.page.Context(ctx).Timeout(affordanceTimeout).ElementX(selSearchOpen)
	if err != nil {
		return fmt.Errorf("open search bar: %w", err)
	}
	if err := open.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click search bar: %w", err)
	}

	input, err := s.page.Context(ctx).Timeout(affordanceTimeout).Element(selSearchInput)
	if err != nil {
		return fmt.Errorf("search input: %w", err)
	}
	if err := input.Input(query); err != nil {
		return fmt.Errorf("type query: %w", err)
	}

	submit, err := s.page.Context(ctx).Timeout(affordanceTimeout).ElementX(selSearchSubmit)
	if err != nil {
		return fmt.Errorf("search button: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("submit search: %w", err)
	}
	return nil
}

// selectFilter 点开下拉控件并选中 data-key 对应的选项。
func (s *PageSession) selectFilter(ctx context.Context, buttonSel, dataKey string) error {
	btn, err := s.page.Context(ctx).Timeout(affordanceTimeout).Element(buttonSel)
	if err != nil {
		return fmt.Errorf("filter button %s: %w", buttonSel, err)
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click filter button: %w", err)
	}

	option, err := s.page.Context(ctx).Timeout(affordanceTimeout).ElementX(fmt.Sprintf(fmtFilterDataKey, dataKey))
	if err != nil {
		return fmt.Errorf("filter option %s: %w", dataKey, err)
	}
	if err := option.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click filter option: %w", err)
	}
	return nil
}

// Extract 对当前结果列表做一次快照提取。
func (s *PageSession) Extract(ctx context.Context) ([]model.RawItem, error) {
	list, err := s.page.Context(ctx).Timeout(affordanceTimeout).Element(selResultsList)
	if err != nil {
		return nil, fmt.Errorf("results list: %w", err)
	}
	html, err := list.HTML()
	if err != nil {
		return nil, fmt.Errorf("results html: %w", err)
	}
	return s.ex.Extract(html)
}

// ScrollY 当前纵向滚动位置。
func (s *PageSession) ScrollY(ctx context.Context) (float64, error) {
	return s.evalNum(ctx, `() => window.scrollY`)
}

// ScrollableHeight 可滚动总高度。
func (s *PageSession) ScrollableHeight(ctx context.Context) (float64, error) {
	return s.evalNum(ctx, `() => document.documentElement.scrollHeight`)
}

// ViewportHeight 视口高度。
func (s *PageSession) ViewportHeight(ctx context.Context) (float64, error) {
	return s.evalNum(ctx, `() => window.innerHeight`)
}

// ScrollBy 纵向滚动 deltaY（向下为正）。
func (s *PageSession) ScrollBy(ctx context.Context, deltaY float64) error {
	_, err := s.page.Context(ctx).Timeout(evalTimeout).Eval(`(dy) => window.scrollBy(0, dy)`, deltaY)
	return err
}

// WaitSettle 等待渲染安定：固定等待加上一次容错的加载状态等待。
func (s *PageSession) WaitSettle(ctx context.Context, d time.Duration) error {
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	loadCtx, cancel := context.WithTimeout(ctx, settleLoadTimeout)
	defer cancel()
	if err := s.page.Context(loadCtx).WaitLoad(); err != nil {
		s.logger.Debug("settle WaitLoad skipped", slog.String("error", err.Error()))
	}
	return nil
}

// NextBatch 点击“加载更多”。控件缺失返回 (false, nil)，是正常的
// 终止信号而不是错误。
func (s *PageSession) NextBatch(ctx context.Context) (bool, error) {
	btn, err := s.page.Context(ctx).Timeout(nextBatchTimeout).ElementX(selNextBatch)
	if err != nil {
		s.logger.Debug("next batch control absent", slog.String("error", err.Error()))
		return false, nil
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, fmt.Errorf("click next batch: %w", err)
	}

	loadCtx, cancel := context.WithTimeout(ctx, loadStateTimeout)
	defer cancel()
	if err := s.page.Context(loadCtx).WaitLoad(); err != nil {
		s.logger.Warn("next batch WaitLoad failed, continuing", slog.String("error", err.Error()))
	}
	return true, nil
}

// FetchInContext 在页面上下文内对 URL 发起 fetch 并返回状态码。
// 响应体被丢弃，调用的意义在于让懒加载器与被动捕获看到这次请求。
func (s *PageSession) FetchInContext(ctx context.Context, url string) (int, error) {
	obj, err := s.page.Context(ctx).Eval(`async (u) => {
		const resp = await fetch(u);
		return resp.status;
	}`, url)
	if err != nil {
		return 0, err
	}
	return obj.Value.Int(), nil
}

// Close 关闭页面。
func (s *PageSession) Close() error {
	if s == nil || s.page == nil {
		return nil
	}
	return s.page.Close()
}

func (s *PageSession) evalNum(ctx context.Context, js string) (float64, error) {
	obj, err := s.page.Context(ctx).Timeout(evalTimeout).Eval(js)
	if err != nil {
		return 0, err
	}
	return obj.Value.Num(), nil
}
