package walker

import (
	"math/rand"
	"time"
)

// ScrollPolicy 决定滚动穷尽循环每一步的滚动距离与等待时长。
//
// 抽成接口是为了让测试注入固定序列的策略，生产环境使用随机策略。
type ScrollPolicy interface {
	// NextStep 返回下一步滚动距离（向下为正、向上为负）与等待时长。
	NextStep(viewportHeight float64) (delta float64, settle time.Duration)
	// Reverse 通知策略滚动位置已到达边界，下一步反向。
	Reverse()
}

// RandomPolicy 随机幅度的来回滚动策略。
//
// 单调向下滚动会跑在懒加载前面，漏掉未触发的图片请求；
// 到达边界后反向可以把这些行重新暴露在视口里。
type RandomPolicy struct {
	rng       *rand.Rand
	direction float64
	minWait   time.Duration
	maxWait   time.Duration
}

// NewRandomPolicy 创建随机滚动策略，初始方向向下。
func NewRandomPolicy(minWait, maxWait time.Duration) *RandomPolicy {
	if minWait <= 0 {
		minWait = 400 * time.Millisecond
	}
	if maxWait <= minWait {
		maxWait = minWait + 800*time.Millisecond
	}
	return &RandomPolicy{
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		direction: 1,
		minWait:   minWait,
		maxWait:   maxWait,
	}
}

// NextStep 在 [1, viewportHeight] 内取随机幅度。
func (p *RandomPolicy) NextStep(viewportHeight float64) (float64, time.Duration) {
	if viewportHeight < 1 {
		viewportHeight = 1
	}
	magnitude := 1 + p.rng.Float64()*(viewportHeight-1)
	settle := p.minWait + time.Duration(p.rng.Int63n(int64(p.maxWait-p.minWait)))
	return p.direction * magnitude, settle
}

// Reverse 翻转滚动方向。
func (p *RandomPolicy) Reverse() {
	p.direction = -p.direction
}
