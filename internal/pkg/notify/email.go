package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"newswalker/internal/config"
	"newswalker/internal/pkg/workitem"

	"gopkg.in/gomail.v2"
)

// EmailNotifier 实现邮件通知。
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier 创建一个新的邮件通知器。
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// SendWalkSummary 发送遍历完成摘要邮件。
//
// 配置不完整或收件人为空时静默跳过，通知失败不影响遍历结果入队。
func (n *EmailNotifier) SendWalkSummary(ctx context.Context, item workitem.Item, res workitem.Result, toEmail string) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		n.logger.Warn("email config missing, skip notification")
		return nil
	}
	if strings.TrimSpace(toEmail) == "" {
		n.logger.Warn("email recipient empty, skip notification")
		return nil
	}

	subject := "[NewsWalker] 遍历完成"
	if res.Error != "" {
		subject = "[NewsWalker] 遍历失败"
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", n.buildHTMLBody(item, res))

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("email notification sent",
		slog.String("to", toEmail),
		slog.String("query", item.Query))
	return nil
}

func (n *EmailNotifier) buildHTMLBody(item workitem.Item, res workitem.Result) string {
	outcome := fmt.Sprintf(`<div class="price">%d 条唯一结果</div>
      <div class="title">输出文件: %s</div>`, res.ResultsFound, res.Filename)
	if res.Error != "" {
		outcome = fmt.Sprintf(`<div class="price" style="color:#ef4444;">遍历失败</div>
      <div class="title">%s</div>`, res.Error)
	}

	template := `
<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8" />
<style>
  body { font-family: Arial, sans-serif; background: #f6f7fb; color: #1f2937; }
  .card { max-width: 600px; margin: 24px auto; background: #ffffff; border-radius: 12px; overflow: hidden; border: 1px solid #e5e7eb; }
  .header { background: #0f172a; color: #ffffff; padding: 16px 20px; font-size: 16px; font-weight: bold; }
  .content { padding: 20px; }
  .price { font-size: 26px; font-weight: bold; color: #22c55e; margin: 8px 0 12px; }
  .title { font-size: 16px; margin-bottom: 16px; }
  .footer { margin-top: 20px; font-size: 12px; color: #6b7280; }
</style>
</head>
<body>
  <div class="card">
    <div class="header">[NewsWalker] 新闻检索摘要</div>
    <div class="content">
      %s
      <div class="footer">检索词: %s ｜ 栏目: %s ｜ 回溯月数: %d</div>
    </div>
  </div>
</body>
</html>`

	return fmt.Sprintf(template, outcome, item.Query, item.Category, item.Months)
}
