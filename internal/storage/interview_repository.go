package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mock-interview-go/internal/config"
	"mock-interview-go/internal/constants"
	"mock-interview-go/internal/interview"
	"mock-interview-go/internal/storage/models"
	"mock-interview-go/internal/types"

	guuid "github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrCandidateNotFound 候选人不存在
	ErrCandidateNotFound = errors.New("候选人不存在")
	// ErrInterviewNotFound 候选人还没有面试记录
	ErrInterviewNotFound = errors.New("面试记录不存在")
	// ErrInterviewFinished 面试已有结果，completed_at 写入后不再变化
	ErrInterviewFinished = interview.ErrAlreadyFinished
)

// EventRouting 面试结束事件的投递目标
type EventRouting struct {
	Exchange             string
	CompletedRoutingKey  string
	TerminatedRoutingKey string
}

// EventRoutingFromConfig 从 RabbitMQ 配置读取路由
func EventRoutingFromConfig(cfg *config.RabbitMQConfig) EventRouting {
	return EventRouting{
		Exchange:             cfg.InterviewEventsExchange,
		CompletedRoutingKey:  cfg.CompletedRoutingKey,
		TerminatedRoutingKey: cfg.TerminatedRoutingKey,
	}
}

// InterviewRepository 候选人、面试和聊天记录的持久化
type InterviewRepository struct {
	db      *gorm.DB
	routing EventRouting
}

// NewInterviewRepository 创建仓储
func NewInterviewRepository(db *gorm.DB, routing EventRouting) *InterviewRepository {
	return &InterviewRepository{db: db, routing: routing}
}

func (r *InterviewRepository) interviewIDFor(tx *gorm.DB, candidateID string) (string, error) {
	var iv models.Interview
	err := tx.Select("interview_id").Where("candidate_id = ?", candidateID).Take(&iv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrInterviewNotFound
	}
	if err != nil {
		return "", err
	}
	return iv.InterviewID, nil
}

func candidateExists(tx *gorm.DB, candidateID string) error {
	var n int64
	if err := tx.Model(&models.Candidate{}).Where("candidate_id = ?", candidateID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrCandidateNotFound
	}
	return nil
}

// StartInterview 写入新面试及其题目，候选人进入 in-progress。旧面试会被替换
func (r *InterviewRepository) StartInterview(ctx context.Context, candidateID string, iv *types.Interview) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := candidateExists(tx, candidateID); err != nil {
			return err
		}
		if err := deleteInterviewOf(tx, candidateID); err != nil {
			return err
		}

		row := models.Interview{
			InterviewID:          iv.ID,
			CandidateID:          candidateID,
			CurrentQuestionIndex: iv.CurrentQuestionIndex,
			StartedAt:            iv.StartedAt,
			IsPaused:             iv.IsPaused,
		}
		if err := tx.Omit("Questions").Create(&row).Error; err != nil {
			return fmt.Errorf("创建面试记录失败: %w", err)
		}
		if len(iv.Questions) > 0 {
			rows := make([]models.InterviewQuestion, len(iv.Questions))
			for i, q := range iv.Questions {
				rows[i] = questionToModel(iv.ID, i, q)
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("写入面试题目失败: %w", err)
			}
		}
		return tx.Model(&models.Candidate{}).Where("candidate_id = ?", candidateID).Updates(map[string]interface{}{
			"status":        string(types.CandidateStatusInProgress),
			"final_score":   nil,
			"final_summary": "",
		}).Error
	})
}

func deleteInterviewOf(tx *gorm.DB, candidateID string) error {
	sub := tx.Model(&models.Interview{}).Select("interview_id").Where("candidate_id = ?", candidateID)
	if err := tx.Where("interview_id IN (?)", sub).Delete(&models.InterviewQuestion{}).Error; err != nil {
		return fmt.Errorf("删除旧题目失败: %w", err)
	}
	if err := tx.Where("candidate_id = ?", candidateID).Delete(&models.Interview{}).Error; err != nil {
		return fmt.Errorf("删除旧面试失败: %w", err)
	}
	return nil
}

// UpdateQuestion 覆盖第 index 题的作答进度
func (r *InterviewRepository) UpdateQuestion(ctx context.Context, candidateID string, index int, q types.Question) error {
	db := r.db.WithContext(ctx)
	interviewID, err := r.interviewIDFor(db, candidateID)
	if err != nil {
		return err
	}
	return db.Model(&models.InterviewQuestion{}).
		Where("interview_id = ? AND position = ?", interviewID, index).
		Updates(questionProgress(q)).Error
}

// AdvanceQuestion 移动当前题目指针并记录新题的开始时间
func (r *InterviewRepository) AdvanceQuestion(ctx context.Context, candidateID string, index int, q types.Question) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		interviewID, err := r.interviewIDFor(tx, candidateID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Interview{}).Where("interview_id = ?", interviewID).
			Update("current_question_index", index).Error; err != nil {
			return err
		}
		return tx.Model(&models.InterviewQuestion{}).
			Where("interview_id = ? AND position = ?", interviewID, index).
			Updates(questionProgress(q)).Error
	})
}

// CompleteInterview 写入最终结果，同一事务内登记 outbox 事件
func (r *InterviewRepository) CompleteInterview(ctx context.Context, candidateID string, c types.Completion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cand models.Candidate
		err := tx.Where("candidate_id = ?", candidateID).Take(&cand).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCandidateNotFound
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.Interview{}).
			Where("candidate_id = ? AND interview_id = ? AND completed_at IS NULL", candidateID, c.InterviewID).
			Updates(map[string]interface{}{
				"completed_at":       c.CompletedAt,
				"total_score":        c.TotalScore,
				"terminated":         c.Terminated,
				"termination_reason": c.Reason,
				"is_paused":          false,
			})
		if res.Error != nil {
			return fmt.Errorf("更新面试结果失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Interview{}).
				Where("candidate_id = ? AND interview_id = ?", candidateID, c.InterviewID).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return ErrInterviewFinished
			}
			return ErrInterviewNotFound
		}

		score := c.TotalScore
		if err := tx.Model(&models.Candidate{}).Where("candidate_id = ?", candidateID).Updates(map[string]interface{}{
			"status":        string(types.CandidateStatusCompleted),
			"final_score":   &score,
			"final_summary": c.Summary,
		}).Error; err != nil {
			return fmt.Errorf("更新候选人状态失败: %w", err)
		}

		eventType, routingKey := constants.EventInterviewCompleted, r.routing.CompletedRoutingKey
		if c.Terminated {
			eventType, routingKey = constants.EventInterviewTerminated, r.routing.TerminatedRoutingKey
		}
		payload, err := json.Marshal(types.InterviewFinishedEvent{
			CandidateID: candidateID,
			InterviewID: c.InterviewID,
			Name:        cand.Name,
			Email:       cand.Email,
			TotalScore:  c.TotalScore,
			Terminated:  c.Terminated,
			Reason:      c.Reason,
			CompletedAt: c.CompletedAt.Unix(),
		})
		if err != nil {
			return fmt.Errorf("序列化结束事件失败: %w", err)
		}
		return tx.Create(&models.OutboxMessage{
			AggregateID:      candidateID,
			EventType:        eventType,
			Payload:          string(payload),
			TargetExchange:   r.routing.Exchange,
			TargetRoutingKey: routingKey,
			Status:           constants.OutboxStatusPending,
		}).Error
	})
}

// SetPaused 记录暂停标记
func (r *InterviewRepository) SetPaused(ctx context.Context, candidateID string, paused bool) error {
	res := r.db.WithContext(ctx).Model(&models.Interview{}).
		Where("candidate_id = ?", candidateID).
		Update("is_paused", paused)
	return res.Error
}

// AppendMessage 追加一条聊天记录，ID 为空时生成
func (r *InterviewRepository) AppendMessage(ctx context.Context, candidateID string, msg types.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = guuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	meta, err := metadataJSON(msg.Metadata)
	if err != nil {
		return fmt.Errorf("序列化消息元数据失败: %w", err)
	}
	return r.db.WithContext(ctx).Create(&models.ChatMessage{
		MessageID:   msg.ID,
		CandidateID: candidateID,
		Type:        string(msg.Type),
		Content:     msg.Content,
		QuestionID:  msg.QuestionID,
		Metadata:    meta,
		Timestamp:   msg.Timestamp,
	}).Error
}

// ListMessages 按写入顺序返回聊天记录
func (r *InterviewRepository) ListMessages(ctx context.Context, candidateID string) ([]types.ChatMessage, error) {
	var rows []models.ChatMessage
	if err := r.db.WithContext(ctx).Where("candidate_id = ?", candidateID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.ChatMessage, 0, len(rows))
	for i := range rows {
		msg, err := messageFromModel(&rows[i])
		if err != nil {
			return nil, fmt.Errorf("解析消息 %s 失败: %w", rows[i].MessageID, err)
		}
		out = append(out, msg)
	}
	return out, nil
}
