package handler

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"mock-interview-go/internal/constants"
	"mock-interview-go/internal/interview"
	"mock-interview-go/internal/processor"
	"mock-interview-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
)

// ResumeIntake 简历上传入库
type ResumeIntake interface {
	Ingest(ctx context.Context, fileName, contentType string, data []byte) (*processor.IntakeResult, error)
}

// CandidateRepository 看板和候选人管理用到的存储操作
type CandidateRepository interface {
	CreateCandidate(ctx context.Context, c *types.Candidate) error
	GetCandidate(ctx context.Context, candidateID string) (*types.Candidate, error)
	UpdateCandidate(ctx context.Context, candidateID string, upd types.IdentityUpdate) (*types.Candidate, error)
	DeleteCandidate(ctx context.Context, candidateID string) error
	ListCandidates(ctx context.Context, f types.CandidateFilter) (*types.CandidatePage, error)
	Stats(ctx context.Context) (*types.DashboardStats, error)
	ListUnfinished(ctx context.Context) ([]types.UnfinishedInterview, error)
	ListMessages(ctx context.Context, candidateID string) ([]types.ChatMessage, error)
}

// ResumeFiles 简历对象存储，未配置 MinIO 时为 nil
type ResumeFiles interface {
	GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	DeleteCandidateObjects(ctx context.Context, resumeKey, parsedKey string) error
}

// CandidateCache Redis 中与候选人相关的数据，未配置 Redis 时为 nil
type CandidateCache interface {
	RemoveMD5(ctx context.Context, md5 string) error
	RemoveFromLeaderboard(ctx context.Context, candidateID string) error
	DeleteSnapshot(ctx context.Context, candidateID string) error
	TopScores(ctx context.Context, n int64) ([]types.LeaderboardEntry, error)
}

// CandidateHandler 候选人上传、资料补全和看板接口
type CandidateHandler struct {
	intake   ResumeIntake
	repo     CandidateRepository
	files    ResumeFiles
	cache    CandidateCache
	sessions *interview.Manager
	log      zerolog.Logger
}

// CandidateHandlerOption 可选依赖
type CandidateHandlerOption func(*CandidateHandler)

// WithResumeFiles 启用简历下载链接和删除时的对象清理
func WithResumeFiles(f ResumeFiles) CandidateHandlerOption {
	return func(h *CandidateHandler) { h.files = f }
}

// WithCandidateCache 启用排行榜和删除时的缓存清理
func WithCandidateCache(c CandidateCache) CandidateHandlerOption {
	return func(h *CandidateHandler) { h.cache = c }
}

// WithCandidateLogger 设置日志
func WithCandidateLogger(l zerolog.Logger) CandidateHandlerOption {
	return func(h *CandidateHandler) { h.log = l }
}

// NewCandidateHandler 创建处理器
func NewCandidateHandler(intake ResumeIntake, repo CandidateRepository, sessions *interview.Manager, opts ...CandidateHandlerOption) *CandidateHandler {
	h := &CandidateHandler{
		intake:   intake,
		repo:     repo,
		sessions: sessions,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// UploadResponse 简历上传结果
type UploadResponse struct {
	Candidate     *types.Candidate `json:"candidate"`
	MissingFields []string         `json:"missing_fields"`
	Duplicate     bool             `json:"duplicate"`
	FileSize      string           `json:"file_size"`
	PhoneDisplay  string           `json:"phone_display"`
}

// CandidateDetail 候选人详情
type CandidateDetail struct {
	*types.Candidate
	MissingFields []string               `json:"missing_fields"`
	PhoneDisplay  string                 `json:"phone_display"`
	ResumeURL     string                 `json:"resume_url,omitempty"`
	Session       *types.SessionSnapshot `json:"session,omitempty"`
}

type identityRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

func (r identityRequest) update() types.IdentityUpdate {
	upd := types.IdentityUpdate{Name: r.Name, Email: r.Email}
	if r.Phone != nil {
		phone := processor.NormalizeTo10Digits(*r.Phone)
		upd.Phone = &phone
	}
	return upd
}

// Upload POST /candidates/upload，multipart 字段 file
func (h *CandidateHandler) Upload(ctx context.Context, c *app.RequestContext) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeError(c, badRequest("文件未找到"))
		return
	}
	if fileHeader.Size > constants.MaxResumeFileSize {
		writeError(c, badRequest(fmt.Sprintf("文件超过 %s", processor.FormatFileSize(constants.MaxResumeFileSize))))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(c, fmt.Errorf("打开文件失败: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(c, fmt.Errorf("读取上传文件内容失败: %w", err))
		return
	}

	res, err := h.intake.Ingest(ctx, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		writeError(c, err)
		return
	}

	status := consts.StatusCreated
	if res.Duplicate {
		status = consts.StatusOK
	}
	c.JSON(status, UploadResponse{
		Candidate:     res.Candidate,
		MissingFields: nonNil(res.Missing),
		Duplicate:     res.Duplicate,
		FileSize:      processor.FormatFileSize(int64(len(data))),
		PhoneDisplay:  processor.FormatPhoneIndia(res.Candidate.Phone),
	})
}

// Create POST /candidates，没有简历时直接登记身份信息
func (h *CandidateHandler) Create(ctx context.Context, c *app.RequestContext) {
	var req identityRequest
	if err := c.BindJSON(&req); err != nil {
		writeError(c, badRequest(err.Error()))
		return
	}
	upd := req.update()
	cand := &types.Candidate{Status: types.CandidateStatusIncomplete}
	if upd.Name != nil {
		cand.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil {
		cand.Email = strings.TrimSpace(*upd.Email)
	}
	if upd.Phone != nil {
		cand.Phone = *upd.Phone
	}
	if err := h.repo.CreateCandidate(ctx, cand); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusCreated, h.detail(ctx, cand))
}

// Update PATCH /candidates/:id，补全缺失的身份字段
func (h *CandidateHandler) Update(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	var req identityRequest
	if err := c.BindJSON(&req); err != nil {
		writeError(c, badRequest(err.Error()))
		return
	}
	cand, err := h.repo.UpdateCandidate(ctx, id, req.update())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, h.detail(ctx, cand))
}

// Get GET /candidates/:id
func (h *CandidateHandler) Get(ctx context.Context, c *app.RequestContext) {
	cand, err := h.repo.GetCandidate(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, h.detail(ctx, cand))
}

func (h *CandidateHandler) detail(ctx context.Context, cand *types.Candidate) CandidateDetail {
	d := CandidateDetail{
		Candidate:     cand,
		MissingFields: nonNil(cand.MissingFields()),
		PhoneDisplay:  processor.FormatPhoneIndia(cand.Phone),
	}
	if h.files != nil && cand.ResumeObjectKey != "" {
		url, err := h.files.GetPresignedURL(ctx, cand.ResumeObjectKey, 0)
		if err != nil {
			h.log.Warn().Err(err).Str("candidate_id", cand.ID).Msg("生成简历下载链接失败")
		} else {
			d.ResumeURL = url
		}
	}
	if s, err := h.sessions.Get(cand.ID); err == nil {
		snap := s.Snapshot()
		d.Session = &snap
	}
	return d
}

// Delete DELETE /candidates/:id，同时清理会话、对象存储和缓存
func (h *CandidateHandler) Delete(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	cand, err := h.repo.GetCandidate(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.repo.DeleteCandidate(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	h.sessions.Remove(id)

	log := h.log.With().Str("candidate_id", id).Logger()
	if h.files != nil {
		if err := h.files.DeleteCandidateObjects(ctx, cand.ResumeObjectKey, cand.ParsedTextKey); err != nil {
			log.Warn().Err(err).Msg("清理简历对象失败")
		}
	}
	if h.cache != nil {
		if cand.ResumeMD5 != "" {
			if err := h.cache.RemoveMD5(ctx, cand.ResumeMD5); err != nil {
				log.Warn().Err(err).Msg("清理MD5映射失败")
			}
		}
		if err := h.cache.RemoveFromLeaderboard(ctx, id); err != nil {
			log.Warn().Err(err).Msg("移出排行榜失败")
		}
		if err := h.cache.DeleteSnapshot(ctx, id); err != nil {
			log.Warn().Err(err).Msg("删除会话快照失败")
		}
	}
	log.Info().Msg("候选人已删除")
	c.Status(consts.StatusNoContent)
}

// List GET /candidates?search=&status=&sort=&page=&size=
func (h *CandidateHandler) List(ctx context.Context, c *app.RequestContext) {
	f := types.CandidateFilter{
		Search: c.Query("search"),
		Status: types.CandidateStatus(c.Query("status")),
		SortBy: types.SortField(c.DefaultQuery("sort", string(types.SortByCreatedAt))),
	}
	switch f.Status {
	case "", types.CandidateStatusIncomplete, types.CandidateStatusInProgress, types.CandidateStatusCompleted:
	default:
		writeError(c, badRequest("未知的状态: "+string(f.Status)))
		return
	}
	switch f.SortBy {
	case types.SortByCreatedAt, types.SortByName, types.SortByScore:
	default:
		writeError(c, badRequest("未知的排序字段: "+string(f.SortBy)))
		return
	}
	var err error
	if f.Page, err = intQuery(c, "page"); err != nil {
		writeError(c, err)
		return
	}
	if f.Size, err = intQuery(c, "size"); err != nil {
		writeError(c, err)
		return
	}

	page, err := h.repo.ListCandidates(ctx, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, page)
}

func intQuery(c *app.RequestContext, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest(key + " 必须是非负整数")
	}
	return v, nil
}

// Stats GET /candidates/stats
func (h *CandidateHandler) Stats(ctx context.Context, c *app.RequestContext) {
	stats, err := h.repo.Stats(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, stats)
}

// Unfinished GET /candidates/unfinished，欢迎回来提示
func (h *CandidateHandler) Unfinished(ctx context.Context, c *app.RequestContext) {
	items, err := h.repo.ListUnfinished(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"items": items})
}

// Messages GET /candidates/:id/messages
func (h *CandidateHandler) Messages(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	if _, err := h.repo.GetCandidate(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	msgs, err := h.repo.ListMessages(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"messages": msgs})
}

// Leaderboard GET /leaderboard?limit=
func (h *CandidateHandler) Leaderboard(ctx context.Context, c *app.RequestContext) {
	if h.cache == nil {
		c.JSON(consts.StatusServiceUnavailable, utils.H{"error": "排行榜不可用"})
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		writeError(c, err)
		return
	}
	top, err := h.cache.TopScores(ctx, int64(limit))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"items": top})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
