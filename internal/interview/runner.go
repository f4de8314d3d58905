package interview

import (
	"context"
	"sync"
	"time"

	"mock-interview-go/internal/constants"

	"github.com/rs/zerolog"
)

// Runner 按固定间隔驱动 Manager.TickAll
type Runner struct {
	manager  *Manager
	interval time.Duration
	logger   zerolog.Logger
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRunner 创建计时驱动，interval 不合法时使用一秒
func NewRunner(manager *Manager, interval time.Duration, logger zerolog.Logger) *Runner {
	if interval <= 0 {
		interval = constants.DefaultTickInterval
	}
	return &Runner{
		manager:  manager,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start 在后台 goroutine 中开始计时
func (r *Runner) Start() {
	r.logger.Info().Dur("interval", r.interval).Msg("计时驱动启动")
	ticker := time.NewTicker(r.interval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				r.logger.Info().Msg("计时驱动已停止")
				return
			case <-ticker.C:
				r.manager.TickAll(context.Background())
			}
		}
	}()
}

// Stop 停止计时并等待后台 goroutine 退出，可重复调用
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}
