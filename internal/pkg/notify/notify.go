package notify

import (
	"context"

	"newswalker/internal/pkg/workitem"
)

// Notifier 定义遍历完成通知接口。
type Notifier interface {
	// SendWalkSummary 发送遍历完成摘要。
	//
	// 参数:
	//   ctx: 上下文
	//   item: 本次遍历的检索条件
	//   res: 遍历结果载荷（成功或失败）
	//   toEmail: 接收邮箱
	SendWalkSummary(ctx context.Context, item workitem.Item, res workitem.Result, toEmail string) error
}
