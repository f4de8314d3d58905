package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mock-interview-go/internal/constants"
	"mock-interview-go/internal/storage/models"
	"mock-interview-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateCandidate 新建候选人，ID 为空时生成 UUIDv7
func (r *InterviewRepository) CreateCandidate(ctx context.Context, c *types.Candidate) error {
	if c.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("生成候选人ID失败: %w", err)
		}
		c.ID = id.String()
	}
	if c.Status == "" {
		c.Status = types.CandidateStatusIncomplete
	}
	row := models.Candidate{
		CandidateID:         c.ID,
		Name:                c.Name,
		Email:               c.Email,
		Phone:               c.Phone,
		ResumeText:          c.ResumeText,
		ResumeFileName:      c.ResumeFileName,
		ResumeObjectKey:     c.ResumeObjectKey,
		ParsedTextObjectKey: c.ParsedTextKey,
		ResumeMD5:           c.ResumeMD5,
		Status:              string(c.Status),
	}
	if err := r.db.WithContext(ctx).Omit("Interview").Create(&row).Error; err != nil {
		return fmt.Errorf("创建候选人失败: %w", err)
	}
	c.CreatedAt, c.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

// GetCandidate 读取候选人及面试（题目按顺序）
func (r *InterviewRepository) GetCandidate(ctx context.Context, candidateID string) (*types.Candidate, error) {
	var row models.Candidate
	err := r.db.WithContext(ctx).
		Preload("Interview").
		Preload("Interview.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("candidate_id = ?", candidateID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCandidateNotFound
	}
	if err != nil {
		return nil, err
	}
	return candidateFromModel(&row), nil
}

// FindCandidateByResumeMD5 按简历指纹查找，Redis 映射失效时兜底
func (r *InterviewRepository) FindCandidateByResumeMD5(ctx context.Context, md5 string) (string, error) {
	var row models.Candidate
	err := r.db.WithContext(ctx).Select("candidate_id").
		Where("resume_md5 = ?", md5).
		Order("created_at DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrCandidateNotFound
	}
	if err != nil {
		return "", err
	}
	return row.CandidateID, nil
}

// UpdateCandidate 补充身份字段，只修改非 nil 的字段
func (r *InterviewRepository) UpdateCandidate(ctx context.Context, candidateID string, upd types.IdentityUpdate) (*types.Candidate, error) {
	changes := map[string]interface{}{}
	if upd.Name != nil {
		changes["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil {
		changes["email"] = strings.TrimSpace(*upd.Email)
	}
	if upd.Phone != nil {
		changes["phone"] = strings.TrimSpace(*upd.Phone)
	}

	db := r.db.WithContext(ctx)
	if err := candidateExists(db, candidateID); err != nil {
		return nil, err
	}
	if len(changes) > 0 {
		if err := db.Model(&models.Candidate{}).Where("candidate_id = ?", candidateID).Updates(changes).Error; err != nil {
			return nil, fmt.Errorf("更新候选人失败: %w", err)
		}
	}
	return r.GetCandidate(ctx, candidateID)
}

// DeleteCandidate 删除候选人及其面试、题目和聊天记录
func (r *InterviewRepository) DeleteCandidate(ctx context.Context, candidateID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("candidate_id = ?", candidateID).Delete(&models.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("删除聊天记录失败: %w", err)
		}
		if err := deleteInterviewOf(tx, candidateID); err != nil {
			return err
		}
		res := tx.Where("candidate_id = ?", candidateID).Delete(&models.Candidate{})
		if res.Error != nil {
			return fmt.Errorf("删除候选人失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCandidateNotFound
		}
		return nil
	})
}

// ListCandidates 看板分页列表
func (r *InterviewRepository) ListCandidates(ctx context.Context, f types.CandidateFilter) (*types.CandidatePage, error) {
	page, size := f.Page, f.Size
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	filtered := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Candidate{})
		if s := strings.TrimSpace(f.Search); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?)", like, like, "%"+s+"%")
		}
		if f.Status != "" {
			q = q.Where("status = ?", string(f.Status))
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("统计候选人失败: %w", err)
	}

	order := "created_at DESC"
	switch f.SortBy {
	case types.SortByName:
		order = "name ASC"
	case types.SortByScore:
		// 没有分数的排在最后
		order = "final_score IS NULL, final_score DESC"
	}

	var rows []models.Candidate
	if err := filtered().Order(order).Order("candidate_id ASC").
		Offset((page - 1) * size).Limit(size).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询候选人失败: %w", err)
	}

	out := &types.CandidatePage{
		Items:      make([]types.CandidateSummary, 0, len(rows)),
		Page:       page,
		Size:       size,
		TotalCount: total,
	}
	for _, row := range rows {
		out.Items = append(out.Items, types.CandidateSummary{
			ID:         row.CandidateID,
			Name:       row.Name,
			Email:      row.Email,
			Phone:      row.Phone,
			Status:     types.CandidateStatus(row.Status),
			FinalScore: row.FinalScore,
			CreatedAt:  row.CreatedAt.Unix(),
		})
	}
	return out, nil
}

// Stats 看板统计
func (r *InterviewRepository) Stats(ctx context.Context) (*types.DashboardStats, error) {
	var row struct {
		Total       int64
		Completed   int64
		InProgress  int64
		HighScorers int64
	}
	err := r.db.WithContext(ctx).Raw(`SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS in_progress,
		COALESCE(SUM(CASE WHEN final_score >= ? THEN 1 ELSE 0 END), 0) AS high_scorers
		FROM candidates`,
		string(types.CandidateStatusCompleted),
		string(types.CandidateStatusInProgress),
		constants.HighScoreThreshold,
	).Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("统计看板数据失败: %w", err)
	}
	return &types.DashboardStats{
		Total:       row.Total,
		Completed:   row.Completed,
		InProgress:  row.InProgress,
		HighScorers: row.HighScorers,
	}, nil
}

// ListUnfinished 有未结束面试的候选人，用于欢迎回来提示
func (r *InterviewRepository) ListUnfinished(ctx context.Context) ([]types.UnfinishedInterview, error) {
	var rows []models.Candidate
	err := r.db.WithContext(ctx).
		Preload("Interview").
		Preload("Interview.Questions").
		Where("status = ? OR (status = ? AND candidate_id IN (?))",
			string(types.CandidateStatusInProgress),
			string(types.CandidateStatusIncomplete),
			r.db.Model(&models.Interview{}).Select("candidate_id"),
		).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]types.UnfinishedInterview, 0, len(rows))
	for _, row := range rows {
		if row.Interview == nil || row.Interview.CompletedAt != nil {
			continue
		}
		answered := 0
		for _, q := range row.Interview.Questions {
			if q.Answer != nil {
				answered++
			}
		}
		out = append(out, types.UnfinishedInterview{
			CandidateID: row.CandidateID,
			Name:        row.Name,
			Status:      types.CandidateStatus(row.Status),
			Answered:    answered,
			Total:       len(row.Interview.Questions),
			StartedAt:   row.Interview.StartedAt.Unix(),
		})
	}
	return out, nil
}
