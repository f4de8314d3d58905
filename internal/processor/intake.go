package processor

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"mock-interview-go/internal/metrics"
	"mock-interview-go/internal/tracing"
	"mock-interview-go/internal/types"
	"mock-interview-go/pkg/utils"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TextParser 按文件名分派的文本提取
type TextParser interface {
	Extract(ctx context.Context, fileName string, data []byte) (string, error)
}

// CandidateStore 候选人持久化
type CandidateStore interface {
	CreateCandidate(ctx context.Context, c *types.Candidate) error
	GetCandidate(ctx context.Context, candidateID string) (*types.Candidate, error)
	FindCandidateByResumeMD5(ctx context.Context, md5 string) (string, error)
}

// Deduplicator 文件 MD5 到候选人 ID 的映射（Redis）
type Deduplicator interface {
	CheckAndSetMD5(ctx context.Context, md5, candidateID string) (bool, string, error)
	RemoveMD5(ctx context.Context, md5 string) error
}

// FileStore 简历原件与解析文本的对象存储
type FileStore interface {
	UploadResumeFile(ctx context.Context, candidateID, fileExt string, data []byte) (string, error)
	UploadParsedText(ctx context.Context, candidateID, text string) (string, error)
}

// IntakeResult 一次上传的处理结果
type IntakeResult struct {
	Candidate *types.Candidate
	// Missing 需要候选人补填的字段
	Missing []string
	// Duplicate 相同文件之前已上传过，Candidate 为已有记录
	Duplicate bool
}

// IntakeService 简历上传入库：校验、去重、提取文本和身份字段、存档、建档
type IntakeService struct {
	parser     TextParser
	candidates CandidateStore
	dedup      Deduplicator
	files      FileStore
	log        zerolog.Logger
	tracer     trace.Tracer
}

// IntakeOption 配置 IntakeService
type IntakeOption func(*IntakeService)

// WithDeduplicator 使用 Redis 做 MD5 去重；不设置时回退到数据库查询
func WithDeduplicator(d Deduplicator) IntakeOption {
	return func(s *IntakeService) { s.dedup = d }
}

// WithFileStore 存档原件和解析文本
func WithFileStore(f FileStore) IntakeOption {
	return func(s *IntakeService) { s.files = f }
}

// WithLogger 设置日志
func WithLogger(l zerolog.Logger) IntakeOption {
	return func(s *IntakeService) { s.log = l }
}

// NewIntakeService 创建入库服务
func NewIntakeService(parser TextParser, candidates CandidateStore, opts ...IntakeOption) *IntakeService {
	s := &IntakeService{
		parser:     parser,
		candidates: candidates,
		log:        zerolog.Nop(),
		tracer:     otel.Tracer("mock-interview-go/processor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest 处理一份上传的简历
func (s *IntakeService) Ingest(ctx context.Context, fileName, contentType string, data []byte) (res *IntakeResult, err error) {
	ctx, span := s.tracer.Start(ctx, "processor.Ingest", trace.WithAttributes(
		attribute.String("file.name", tracing.SafeAttributeValue("file.name", fileName, tracing.DefaultMaxLength)),
		attribute.Int("file.size", len(data)),
	))
	defer func() {
		switch {
		case err != nil:
			tracing.RecordError(span, err, intakeErrorType(err))
			metrics.ResumesIngested.WithLabelValues("failed").Inc()
		case res.Duplicate:
			metrics.ResumesIngested.WithLabelValues("duplicate").Inc()
		default:
			metrics.ResumesIngested.WithLabelValues("created").Inc()
		}
		span.End()
	}()

	if len(data) == 0 {
		return nil, newIntakeError("", fileName, "validate", ErrEmptyFile, nil)
	}
	if !ValidateFileType(fileName, contentType) {
		return nil, newIntakeError("", fileName, "validate", ErrUnsupportedFile, nil)
	}

	fileMD5 := utils.CalculateMD5(data)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, newIntakeError("", fileName, "id", ErrDatabaseFailed, err)
	}
	candidateID := id.String()
	log := s.log.With().Str("candidate_id", candidateID).Str("file", fileName).Logger()

	existing, claimed := s.claim(ctx, fileMD5, candidateID, log)
	if existing != nil {
		log.Info().Str("existing_id", existing.ID).Msg("重复上传的简历，返回已有候选人")
		return &IntakeResult{
			Candidate: existing,
			Missing:   existing.MissingFields(),
			Duplicate: true,
		}, nil
	}
	// 失败时释放 MD5 映射，允许重新上传
	release := func() {
		if claimed {
			if err := s.dedup.RemoveMD5(context.WithoutCancel(ctx), fileMD5); err != nil {
				log.Warn().Err(err).Msg("释放MD5映射失败")
			}
		}
	}

	text, err := s.parser.Extract(ctx, fileName, data)
	if err != nil {
		release()
		return nil, newIntakeError(candidateID, fileName, "parse", ErrParseTextFailed, err)
	}
	info := ExtractCandidateInfo(text)

	c := &types.Candidate{
		ID:             candidateID,
		Name:           info.Name,
		Email:          info.Email,
		Phone:          info.Phone,
		ResumeText:     info.Text,
		ResumeFileName: fileName,
		ResumeMD5:      fileMD5,
		Status:         types.CandidateStatusIncomplete,
	}

	if s.files != nil {
		ext := strings.ToLower(filepath.Ext(fileName))
		if c.ResumeObjectKey, err = s.files.UploadResumeFile(ctx, candidateID, ext, data); err != nil {
			release()
			return nil, newIntakeError(candidateID, fileName, "store", ErrStoreFileFailed, err)
		}
		if c.ParsedTextKey, err = s.files.UploadParsedText(ctx, candidateID, text); err != nil {
			release()
			return nil, newIntakeError(candidateID, fileName, "store", ErrStoreFileFailed, err)
		}
	}

	if err := s.candidates.CreateCandidate(ctx, c); err != nil {
		release()
		return nil, newIntakeError(candidateID, fileName, "create", ErrDatabaseFailed, err)
	}

	missing := c.MissingFields()
	log.Info().Strs("missing", missing).Msg("简历入库完成")
	return &IntakeResult{Candidate: c, Missing: missing}, nil
}

// claim 抢占 MD5。命中已有候选人时返回该候选人；claimed 表示映射由本次写入
func (s *IntakeService) claim(ctx context.Context, fileMD5, candidateID string, log zerolog.Logger) (*types.Candidate, bool) {
	if s.dedup == nil {
		existingID, err := s.candidates.FindCandidateByResumeMD5(ctx, fileMD5)
		if err != nil || existingID == "" {
			return nil, false
		}
		return s.lookup(ctx, existingID, log), false
	}

	dup, existingID, err := s.dedup.CheckAndSetMD5(ctx, fileMD5, candidateID)
	if err != nil {
		// Redis 不可用时不去重，直接入库
		log.Warn().Err(err).Msg("MD5去重检查失败")
		return nil, false
	}
	if !dup {
		return nil, true
	}
	if c := s.lookup(ctx, existingID, log); c != nil {
		return c, false
	}

	// 映射指向已删除的候选人，改为指向本次上传
	if err := s.dedup.RemoveMD5(ctx, fileMD5); err != nil {
		log.Warn().Err(err).Msg("清理失效MD5映射失败")
		return nil, false
	}
	dup, _, err = s.dedup.CheckAndSetMD5(ctx, fileMD5, candidateID)
	return nil, err == nil && !dup
}

func (s *IntakeService) lookup(ctx context.Context, candidateID string, log zerolog.Logger) *types.Candidate {
	c, err := s.candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Debug().Err(err).Str("existing_id", candidateID).Msg("MD5映射的候选人不存在")
		}
		return nil
	}
	return c
}

func intakeErrorType(err error) tracing.ErrorType {
	switch {
	case errors.Is(err, ErrDatabaseFailed):
		return tracing.ErrorTypeDatabase
	case errors.Is(err, ErrStoreFileFailed):
		return tracing.ErrorTypeObjectStore
	case errors.Is(err, ErrParseTextFailed):
		return tracing.ErrorTypeParse
	}
	return tracing.ErrorTypeValidation
}
