package storage

import (
	"context"
	"fmt"
	"strings"

	"mock-interview-go/internal/config"
	"mock-interview-go/internal/interview"
	"mock-interview-go/internal/logger"
)

var (
	_ interview.Store            = (*InterviewRepository)(nil)
	_ interview.SnapshotCache    = (*Redis)(nil)
	_ interview.TerminationLatch = (*Redis)(nil)
)

// Storage 聚合所有存储依赖
type Storage struct {
	MinIO    *MinIO
	RabbitMQ *RabbitMQ
	MySQL    *MySQL
	Redis    *Redis

	Interviews *InterviewRepository
}

// NewStorage 按配置初始化各组件。MySQL 是必需的，其余组件失败时降级运行
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	l := logger.Component("storage")

	s := &Storage{}
	var err error
	var initErrors []string

	s.MySQL, err = NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}
	s.Interviews = NewInterviewRepository(s.MySQL.DB(), EventRoutingFromConfig(&cfg.RabbitMQ))

	if cfg.MinIO.Endpoint != "" {
		s.MinIO, err = NewMinIO(&cfg.MinIO)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		}
	}

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err == nil {
			if err = s.RabbitMQ.SetupInterviewTopology(); err != nil {
				_ = s.RabbitMQ.Close()
			}
		}
		if err != nil {
			s.RabbitMQ = nil
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	}

	if cfg.Redis.Address != "" {
		ttl := config.GetDuration(cfg.Interview.SnapshotTTL, defaultSnapshotTTL)
		s.Redis, err = NewRedisAdapter(&cfg.Redis, ttl)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	} else {
		l.Info().Msg("Redis未配置, 跳过初始化")
	}

	if len(initErrors) > 0 {
		l.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败，相关功能降级")
	}
	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	l := logger.Component("storage")
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			l.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			l.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			l.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
