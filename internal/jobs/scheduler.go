package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	jobIdleSweep     = "idle-sweep"
	jobOutboxCleanup = "outbox-cleanup"

	jobTimeout = 2 * time.Minute
)

// IdleSweeper 终止长时间无操作的会话，只处理本实例内存中的会话
type IdleSweeper interface {
	EvictIdle(ctx context.Context, idle time.Duration) (terminated, evicted int)
}

// OutboxCleaner 删除已发送的 outbox 记录
type OutboxCleaner interface {
	CleanupSent(ctx context.Context, before time.Time) (int64, error)
}

// Locker 跨实例互斥，保证清理任务同一时刻只在一个实例上运行
type Locker interface {
	AcquireLock(ctx context.Context, name string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, name, token string) (bool, error)
}

// Config 定时任务配置
type Config struct {
	IdleSweepSpec     string
	IdleTimeout       time.Duration
	OutboxCleanupSpec string
	OutboxRetention   time.Duration
}

// Scheduler 基于 cron 的后台任务
type Scheduler struct {
	cron    *cron.Cron
	cfg     Config
	sweeper IdleSweeper
	cleaner OutboxCleaner
	locker  Locker
	log     zerolog.Logger
	now     func() time.Time
}

// NewScheduler cleaner 和 locker 可以为 nil
func NewScheduler(cfg Config, sweeper IdleSweeper, cleaner OutboxCleaner, locker Locker, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		cfg:     cfg,
		sweeper: sweeper,
		cleaner: cleaner,
		locker:  locker,
		log:     log,
		now:     time.Now,
	}
}

// Start 注册任务并启动调度
func (s *Scheduler) Start() error {
	if s.sweeper != nil && s.cfg.IdleSweepSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.IdleSweepSpec, func() { s.RunIdleSweep(context.Background()) }); err != nil {
			return fmt.Errorf("注册 %s 任务失败: %w", jobIdleSweep, err)
		}
	}
	if s.cleaner != nil && s.cfg.OutboxCleanupSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.OutboxCleanupSpec, func() {
			if err := s.RunOutboxCleanup(context.Background()); err != nil {
				s.log.Error().Err(err).Str("job", jobOutboxCleanup).Msg("定时任务失败")
			}
		}); err != nil {
			return fmt.Errorf("注册 %s 任务失败: %w", jobOutboxCleanup, err)
		}
	}
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("定时任务已启动")
	return nil
}

// Stop 停止调度并等待正在运行的任务
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("定时任务已停止")
}

// RunIdleSweep 执行一次空闲会话清理
func (s *Scheduler) RunIdleSweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	terminated, evicted := s.sweeper.EvictIdle(ctx, s.cfg.IdleTimeout)
	if terminated > 0 || evicted > 0 {
		s.log.Info().Int("terminated", terminated).Int("evicted", evicted).Msg("空闲会话清理完成")
	}
}

// RunOutboxCleanup 执行一次 outbox 清理。其他实例持有锁时跳过
func (s *Scheduler) RunOutboxCleanup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	if s.locker != nil {
		token, err := s.locker.AcquireLock(ctx, jobOutboxCleanup, jobTimeout)
		if err != nil {
			return fmt.Errorf("获取任务锁失败: %w", err)
		}
		if token == "" {
			s.log.Debug().Str("job", jobOutboxCleanup).Msg("任务锁被其他实例持有，跳过")
			return nil
		}
		defer func() {
			if _, err := s.locker.ReleaseLock(context.Background(), jobOutboxCleanup, token); err != nil {
				s.log.Warn().Err(err).Msg("释放任务锁失败")
			}
		}()
	}

	removed, err := s.cleaner.CleanupSent(ctx, s.now().Add(-s.cfg.OutboxRetention))
	if err != nil {
		return err
	}
	s.log.Info().Int64("removed", removed).Msg("outbox 清理完成")
	return nil
}
