package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mock-interview-go/internal/config"
	"mock-interview-go/internal/constants"
	"mock-interview-go/internal/types"

	guuid "github.com/google/uuid"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound key 不存在
var ErrNotFound = redis.Nil

var redisTracer = otel.Tracer("mock-interview-go/storage/redis")

const (
	defaultSnapshotTTL = 24 * time.Hour
	// 闩锁只需要覆盖一次面试的生命周期
	terminationLatchTTL = 48 * time.Hour
)

// Redis 会话快照、终止闩锁、任务锁、简历去重和排行榜
type Redis struct {
	Client      *redis.Client
	config      *config.RedisConfig
	snapshotTTL time.Duration
}

// NewRedisAdapter 创建 Redis 客户端并挂上 OpenTelemetry 钩子
func NewRedisAdapter(cfg *config.RedisConfig, snapshotTTL time.Duration) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return NewRedisFromClient(client, cfg, snapshotTTL), nil
}

// NewRedisFromClient 包装已有客户端（测试中连接 miniredis）
func NewRedisFromClient(client *redis.Client, cfg *config.RedisConfig, snapshotTTL time.Duration) *Redis {
	if cfg == nil {
		cfg = &config.RedisConfig{}
	}
	if snapshotTTL <= 0 {
		snapshotTTL = defaultSnapshotTTL
	}
	return &Redis{Client: client, config: cfg, snapshotTTL: snapshotTTL}
}

// Close 关闭连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// GetMD5ExpireDuration 简历去重记录的过期时间
func (r *Redis) GetMD5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// SaveSnapshot 缓存会话快照，供其他实例和看板读取
func (r *Redis) SaveSnapshot(ctx context.Context, snap types.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("序列化会话快照失败: %w", err)
	}
	key := fmt.Sprintf(constants.KeyInterviewSnapshot, snap.CandidateID)
	return r.Client.Set(ctx, key, data, r.snapshotTTL).Err()
}

// GetSnapshot 读取会话快照，不存在时返回 ErrNotFound
func (r *Redis) GetSnapshot(ctx context.Context, candidateID string) (*types.SessionSnapshot, error) {
	key := fmt.Sprintf(constants.KeyInterviewSnapshot, candidateID)
	data, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var snap types.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("解析会话快照失败: %w", err)
	}
	return &snap, nil
}

// DeleteSnapshot 删除快照，删除候选人时调用
func (r *Redis) DeleteSnapshot(ctx context.Context, candidateID string) error {
	return r.Client.Del(ctx,
		fmt.Sprintf(constants.KeyInterviewSnapshot, candidateID),
		fmt.Sprintf(constants.KeyTerminationLatch, candidateID),
	).Err()
}

// AcquireTerminationLatch 多实例部署时保证一次面试只被终止一次
func (r *Redis) AcquireTerminationLatch(ctx context.Context, candidateID string) (bool, error) {
	ctx, span := redisTracer.Start(ctx, "Redis.AcquireTerminationLatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("candidate.id", candidateID)))
	defer span.End()

	key := fmt.Sprintf(constants.KeyTerminationLatch, candidateID)
	ok, err := r.Client.SetNX(ctx, key, time.Now().Unix(), terminationLatchTTL).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	span.SetAttributes(attribute.Bool("latch.acquired", ok))
	return ok, nil
}

// AcquireLock 尝试获取分布式锁，未获取时返回空字符串
func (r *Redis) AcquireLock(ctx context.Context, name string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	lockValue := guuid.NewString()
	ok, err := r.Client.SetNX(ctx, fmt.Sprintf(constants.KeyJobLock, name), lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	return "", nil
}

var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// ReleaseLock 只释放自己持有的锁
func (r *Redis) ReleaseLock(ctx context.Context, name, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	res, err := releaseLockScript.Run(ctx, r.Client, []string{fmt.Sprintf(constants.KeyJobLock, name)}, lockValue).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// CheckAndSetMD5 原子地登记简历指纹。已存在时返回之前的候选人ID
func (r *Redis) CheckAndSetMD5(ctx context.Context, md5, candidateID string) (bool, string, error) {
	ctx, span := redisTracer.Start(ctx, "Redis.CheckAndSetMD5", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	key := fmt.Sprintf(constants.KeyFileMD5ToCandidate, md5)
	ok, err := r.Client.SetNX(ctx, key, candidateID, r.GetMD5ExpireDuration()).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, "", fmt.Errorf("登记简历MD5失败: %w", err)
	}
	if ok {
		return false, "", nil
	}
	existing, err := r.Client.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return true, "", fmt.Errorf("读取已存在的候选人ID失败: %w", err)
	}
	span.SetAttributes(attribute.Bool("md5.duplicate", true))
	return true, existing, nil
}

// RemoveMD5 删除指纹映射，候选人被删除或上传失败时调用
func (r *Redis) RemoveMD5(ctx context.Context, md5 string) error {
	return r.Client.Del(ctx, fmt.Sprintf(constants.KeyFileMD5ToCandidate, md5)).Err()
}

// RecordFinalScore 写入排行榜
func (r *Redis) RecordFinalScore(ctx context.Context, candidateID string, score float64) error {
	return r.Client.ZAdd(ctx, constants.KeyLeaderboard, redis.Z{Score: score, Member: candidateID}).Err()
}

// RemoveFromLeaderboard 从排行榜移除
func (r *Redis) RemoveFromLeaderboard(ctx context.Context, candidateID string) error {
	return r.Client.ZRem(ctx, constants.KeyLeaderboard, candidateID).Err()
}

// TopScores 按分数从高到低返回前 n 名
func (r *Redis) TopScores(ctx context.Context, n int64) ([]types.LeaderboardEntry, error) {
	if n <= 0 {
		n = 10
	}
	zs, err := r.Client.ZRevRangeWithScores(ctx, constants.KeyLeaderboard, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]types.LeaderboardEntry, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, types.LeaderboardEntry{CandidateID: id, Score: z.Score})
	}
	return out, nil
}
