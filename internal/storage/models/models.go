package models

import (
	"time"

	"gorm.io/datatypes"
)

// Candidate 候选人主表
type Candidate struct {
	CandidateID         string    `gorm:"type:char(36);primaryKey"`
	Name                string    `gorm:"type:varchar(255);index:idx_candidates_name"`
	Email               string    `gorm:"type:varchar(255);index:idx_candidates_email"`
	Phone               string    `gorm:"type:varchar(50)"`
	ResumeText          string    `gorm:"type:text"`
	ResumeFileName      string    `gorm:"type:varchar(255)"`
	ResumeObjectKey     string    `gorm:"type:varchar(1024)"`
	ParsedTextObjectKey string    `gorm:"type:varchar(1024)"`
	ResumeMD5           string    `gorm:"type:char(32);index:idx_candidates_resume_md5"`
	Status              string    `gorm:"type:varchar(20);default:'incomplete';not null;index:idx_candidates_status"`
	FinalScore          *float64  `gorm:"type:double"`
	FinalSummary        string    `gorm:"type:text"`
	CreatedAt           time.Time `gorm:"precision:6;index:idx_candidates_created_at"`
	UpdatedAt           time.Time `gorm:"precision:6"`

	Interview *Interview `gorm:"foreignKey:CandidateID;references:CandidateID"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// Interview 面试记录，与候选人一一对应
type Interview struct {
	InterviewID          string     `gorm:"type:char(36);primaryKey"`
	CandidateID          string     `gorm:"type:char(36);not null;uniqueIndex:idx_interviews_candidate_id"`
	CurrentQuestionIndex int        `gorm:"not null;default:0"`
	StartedAt            time.Time  `gorm:"precision:6"`
	CompletedAt          *time.Time `gorm:"precision:6"`
	IsPaused             bool       `gorm:"not null;default:false"`
	TotalScore           float64    `gorm:"type:double;not null;default:0"`
	Terminated           bool       `gorm:"not null;default:false"`
	TerminationReason    string     `gorm:"type:varchar(50)"`
	CreatedAt            time.Time  `gorm:"precision:6"`
	UpdatedAt            time.Time  `gorm:"precision:6"`

	Questions []InterviewQuestion `gorm:"foreignKey:InterviewID;references:InterviewID"`
}

func (Interview) TableName() string {
	return "interviews"
}

// InterviewQuestion 面试中的单道题，Position 从 0 开始
type InterviewQuestion struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement"`
	QuestionID    string     `gorm:"type:char(36);not null;uniqueIndex:idx_iq_question_id"`
	InterviewID   string     `gorm:"type:char(36);not null;uniqueIndex:idx_iq_interview_position"`
	Position      int        `gorm:"not null;uniqueIndex:idx_iq_interview_position"`
	Text          string     `gorm:"type:text;not null"`
	Difficulty    string     `gorm:"type:varchar(10);not null"`
	TimeLimit     int        `gorm:"not null"`
	StartedAt     *time.Time `gorm:"precision:6"`
	TimeRemaining int        `gorm:"not null"`
	Answer        *string    `gorm:"type:text"`
	Score         *float64   `gorm:"type:double"`
	Feedback      *string    `gorm:"type:text"`
	AnsweredAt    *time.Time `gorm:"precision:6"`
}

func (InterviewQuestion) TableName() string {
	return "interview_questions"
}

// ChatMessage 聊天记录，只追加。自增 ID 决定展示顺序
type ChatMessage struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement"`
	MessageID   string         `gorm:"type:char(36);not null;uniqueIndex:idx_cm_message_id"`
	CandidateID string         `gorm:"type:char(36);not null;index:idx_cm_candidate_id"`
	Type        string         `gorm:"type:varchar(20);not null"`
	Content     string         `gorm:"type:text;not null"`
	QuestionID  string         `gorm:"type:varchar(36)"`
	Metadata    datatypes.JSON `gorm:"type:json"`
	Timestamp   time.Time      `gorm:"precision:6;not null"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
