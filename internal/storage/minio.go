package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"mock-interview-go/internal/config"
	"mock-interview-go/internal/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
)

// ObjectStorage 简历原件和解析文本的对象存储
type ObjectStorage interface {
	UploadResumeFile(ctx context.Context, candidateID, fileExt string, data []byte) (string, error)
	UploadParsedText(ctx context.Context, candidateID, text string) (string, error)
	GetResumeFile(ctx context.Context, objectKey string) ([]byte, error)
	GetParsedText(ctx context.Context, objectKey string) (string, error)
	GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	DeleteCandidateObjects(ctx context.Context, resumeKey, parsedKey string) error
}

var _ ObjectStorage = (*MinIO)(nil)

// MinIO 对象存储实现
type MinIO struct {
	client         *minio.Client
	cfg            *config.MinIOConfig
	originalBucket string
	parsedBucket   string
	log            zerolog.Logger
}

// NewMinIO 创建客户端，确保存储桶存在并设置原件的过期规则
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	l := logger.Component("minio")

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client:         client,
		cfg:            cfg,
		originalBucket: cfg.OriginalsBucket,
		parsedBucket:   cfg.ParsedTextBucket,
		log:            l,
	}
	if m.originalBucket == "" {
		m.originalBucket = "resume-originals"
	}
	if m.parsedBucket == "" {
		m.parsedBucket = "resume-parsed-text"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, bucket := range []string{m.originalBucket, m.parsedBucket} {
		if err := m.ensureBucketExists(ctx, bucket, cfg.Location); err != nil {
			return nil, err
		}
	}
	if cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.originalBucket, "expire-originals", cfg.OriginalFileExpireDays); err != nil {
			// 生命周期规则失败不影响使用
			l.Warn().Err(err).Str("bucket", m.originalBucket).Msg("设置生命周期规则失败")
		}
	}

	l.Info().Str("endpoint", cfg.Endpoint).Msg("MinIO客户端初始化完成")
	return m, nil
}

func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	m.log.Info().Str("bucket", bucketName).Msg("存储桶已创建")
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, lc)
}

// UploadResumeFile 上传简历原件，返回对象键
func (m *MinIO) UploadResumeFile(ctx context.Context, candidateID, fileExt string, data []byte) (string, error) {
	ext := strings.ToLower(fileExt)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	key := fmt.Sprintf("resumes/%s/original%s", candidateID, ext)
	_, err := m.client.PutObject(ctx, m.originalBucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: getContentType(ext)})
	if err != nil {
		return "", fmt.Errorf("上传简历原件失败: %w", err)
	}
	m.log.Debug().Str("key", key).Int("size", len(data)).Msg("简历原件已上传")
	return key, nil
}

// UploadParsedText 上传抽取出的纯文本
func (m *MinIO) UploadParsedText(ctx context.Context, candidateID, text string) (string, error) {
	key := fmt.Sprintf("parsed/%s/resume.txt", candidateID)
	_, err := m.client.PutObject(ctx, m.parsedBucket, key, strings.NewReader(text), int64(len(text)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return "", fmt.Errorf("上传解析文本失败: %w", err)
	}
	return key, nil
}

func (m *MinIO) download(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucket, key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 失败: %w", bucket, key, err)
	}
	return data, nil
}

// GetResumeFile 下载简历原件
func (m *MinIO) GetResumeFile(ctx context.Context, objectKey string) ([]byte, error) {
	return m.download(ctx, m.originalBucket, objectKey)
}

// GetParsedText 下载解析文本
func (m *MinIO) GetParsedText(ctx context.Context, objectKey string) (string, error) {
	data, err := m.download(ctx, m.parsedBucket, objectKey)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetPresignedURL 生成简历原件的临时下载链接
func (m *MinIO) GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = time.Duration(m.cfg.PresignExpiryMinutes) * time.Minute
	}
	u, err := m.client.PresignedGetObject(ctx, m.originalBucket, objectKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败: %w", err)
	}
	return u.String(), nil
}

// DeleteCandidateObjects 删除候选人的原件和解析文本，空键跳过
func (m *MinIO) DeleteCandidateObjects(ctx context.Context, resumeKey, parsedKey string) error {
	if resumeKey != "" {
		if err := m.client.RemoveObject(ctx, m.originalBucket, resumeKey, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("删除简历原件失败: %w", err)
		}
	}
	if parsedKey != "" {
		if err := m.client.RemoveObject(ctx, m.parsedBucket, parsedKey, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("删除解析文本失败: %w", err)
		}
	}
	return nil
}

func getContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
