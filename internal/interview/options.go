package interview

import (
	"math/rand"
	"time"

	"mock-interview-go/internal/constants"

	"github.com/rs/zerolog"
)

type options struct {
	clock        func() time.Time
	rng          *rand.Rand
	scheduler    Scheduler
	revealDelay  time.Duration
	storeTimeout time.Duration
	logger       zerolog.Logger
	snapshots    SnapshotCache
	latch        TerminationLatch
}

func defaultOptions() options {
	return options{
		clock:        time.Now,
		scheduler:    RealScheduler(),
		revealDelay:  constants.DefaultRevealDelay,
		storeTimeout: 5 * time.Second,
		logger:       zerolog.Nop(),
	}
}

// Option 会话配置项
type Option func(*options)

// WithClock 注入时钟
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithRand 注入随机源，用于可复现的抽题
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithScheduler 注入延迟调度器
func WithScheduler(s Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithRevealDelay 提交后到下一题出现的停顿
func WithRevealDelay(d time.Duration) Option {
	return func(o *options) { o.revealDelay = d }
}

// WithStoreTimeout 延迟续作写存储时使用的超时
func WithStoreTimeout(d time.Duration) Option {
	return func(o *options) { o.storeTimeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSnapshotCache 每次状态变化后写入快照
func WithSnapshotCache(c SnapshotCache) Option {
	return func(o *options) { o.snapshots = c }
}

// WithTerminationLatch 多实例部署时使用的终止锁
func WithTerminationLatch(l TerminationLatch) Option {
	return func(o *options) { o.latch = l }
}
