package storage

import (
	"encoding/json"

	"mock-interview-go/internal/storage/models"
	"mock-interview-go/internal/types"

	"gorm.io/datatypes"
)

func candidateFromModel(m *models.Candidate) *types.Candidate {
	c := &types.Candidate{
		ID:              m.CandidateID,
		Name:            m.Name,
		Email:           m.Email,
		Phone:           m.Phone,
		ResumeText:      m.ResumeText,
		ResumeFileName:  m.ResumeFileName,
		ResumeObjectKey: m.ResumeObjectKey,
		ParsedTextKey:   m.ParsedTextObjectKey,
		ResumeMD5:       m.ResumeMD5,
		Status:          types.CandidateStatus(m.Status),
		FinalScore:      m.FinalScore,
		FinalSummary:    m.FinalSummary,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.Interview != nil {
		c.Interview = interviewFromModel(m.Interview)
	}
	return c
}

func interviewFromModel(m *models.Interview) *types.Interview {
	iv := &types.Interview{
		ID:                   m.InterviewID,
		CurrentQuestionIndex: m.CurrentQuestionIndex,
		StartedAt:            m.StartedAt,
		CompletedAt:          m.CompletedAt,
		IsPaused:             m.IsPaused,
		TotalScore:           m.TotalScore,
		Terminated:           m.Terminated,
		TerminationReason:    m.TerminationReason,
		Questions:            make([]types.Question, len(m.Questions)),
	}
	for i := range m.Questions {
		iv.Questions[i] = questionFromModel(&m.Questions[i])
	}
	return iv
}

func questionFromModel(m *models.InterviewQuestion) types.Question {
	return types.Question{
		ID:            m.QuestionID,
		Text:          m.Text,
		Difficulty:    types.Difficulty(m.Difficulty),
		TimeLimit:     m.TimeLimit,
		StartedAt:     m.StartedAt,
		TimeRemaining: m.TimeRemaining,
		Answer:        m.Answer,
		Score:         m.Score,
		Feedback:      m.Feedback,
		AnsweredAt:    m.AnsweredAt,
	}
}

func questionToModel(interviewID string, position int, q types.Question) models.InterviewQuestion {
	return models.InterviewQuestion{
		QuestionID:    q.ID,
		InterviewID:   interviewID,
		Position:      position,
		Text:          q.Text,
		Difficulty:    string(q.Difficulty),
		TimeLimit:     q.TimeLimit,
		StartedAt:     q.StartedAt,
		TimeRemaining: q.TimeRemaining,
		Answer:        q.Answer,
		Score:         q.Score,
		Feedback:      q.Feedback,
		AnsweredAt:    q.AnsweredAt,
	}
}

// questionProgress 题目中随作答变化的列，nil 指针会写成 NULL
func questionProgress(q types.Question) map[string]interface{} {
	return map[string]interface{}{
		"started_at":     q.StartedAt,
		"time_remaining": q.TimeRemaining,
		"answer":         q.Answer,
		"score":          q.Score,
		"feedback":       q.Feedback,
		"answered_at":    q.AnsweredAt,
	}
}

func messageFromModel(m *models.ChatMessage) (types.ChatMessage, error) {
	msg := types.ChatMessage{
		ID:         m.MessageID,
		Type:       types.MessageType(m.Type),
		Content:    m.Content,
		Timestamp:  m.Timestamp,
		QuestionID: m.QuestionID,
	}
	if len(m.Metadata) > 0 && string(m.Metadata) != "null" {
		var meta types.MessageMetadata
		if err := json.Unmarshal(m.Metadata, &meta); err != nil {
			return msg, err
		}
		msg.Metadata = &meta
	}
	return msg, nil
}

func metadataJSON(meta *types.MessageMetadata) (datatypes.JSON, error) {
	if meta == nil {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
