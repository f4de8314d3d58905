package types

import (
	"strings"
	"time"
)

// Difficulty 题目难度
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Difficulties 固定的难度顺序，出题时不允许打乱
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Valid 判断难度是否合法
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// CandidateStatus 候选人状态
type CandidateStatus string

const (
	CandidateStatusIncomplete CandidateStatus = "incomplete"
	CandidateStatusInProgress CandidateStatus = "in-progress"
	CandidateStatusCompleted  CandidateStatus = "completed"
)

// MessageType 聊天消息类型
type MessageType string

const (
	MessageTypeSystem   MessageType = "system"
	MessageTypeUser     MessageType = "user"
	MessageTypeQuestion MessageType = "question"
	MessageTypeTimer    MessageType = "timer"
	MessageTypeScore    MessageType = "score"
)

// Question 面试中的一道题
type Question struct {
	ID            string     `json:"id"`
	Text          string     `json:"text"`
	Difficulty    Difficulty `json:"difficulty"`
	TimeLimit     int        `json:"time_limit"` // 秒
	StartedAt     *time.Time `json:"started_at,omitempty"`
	TimeRemaining int        `json:"time_remaining"` // 秒，内部可短暂为负
	Answer        *string    `json:"answer,omitempty"`
	Score         *float64   `json:"score,omitempty"`
	Feedback      *string    `json:"feedback,omitempty"`
	AnsweredAt    *time.Time `json:"answered_at,omitempty"`
}

// Answered 题目是否已作答（手动提交或超时提交）
func (q *Question) Answered() bool {
	return q.Answer != nil
}

// Interview 一次面试，隶属于唯一的候选人
type Interview struct {
	ID                   string     `json:"id"`
	Questions            []Question `json:"questions"`
	CurrentQuestionIndex int        `json:"current_question_index"`
	StartedAt            time.Time  `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	IsPaused             bool       `json:"is_paused"`
	TotalScore           float64    `json:"total_score"`
	Terminated           bool       `json:"terminated"`
	TerminationReason    string     `json:"termination_reason,omitempty"`
}

// Clone 深拷贝，快照对外暴露时使用
func (iv *Interview) Clone() *Interview {
	if iv == nil {
		return nil
	}
	out := *iv
	out.Questions = make([]Question, len(iv.Questions))
	copy(out.Questions, iv.Questions)
	return &out
}

// AnsweredCount 已作答题目数
func (iv *Interview) AnsweredCount() int {
	n := 0
	for i := range iv.Questions {
		if iv.Questions[i].Answered() {
			n++
		}
	}
	return n
}

// Candidate 候选人及其面试记录
type Candidate struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	ResumeText      string          `json:"resume_text,omitempty"`
	ResumeFileName  string          `json:"resume_file_name,omitempty"`
	ResumeObjectKey string          `json:"resume_object_key,omitempty"`
	ParsedTextKey   string          `json:"-"`
	ResumeMD5       string          `json:"-"`
	Status          CandidateStatus `json:"status"`
	Interview       *Interview      `json:"interview,omitempty"`
	FinalScore      *float64        `json:"final_score,omitempty"`
	FinalSummary    string          `json:"final_summary,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// MessageMetadata 消息附带的展示信息
type MessageMetadata struct {
	Difficulty     Difficulty `json:"difficulty,omitempty"`
	QuestionNumber int        `json:"question_number,omitempty"`
	Score          *float64   `json:"score,omitempty"`
	Feedback       string     `json:"feedback,omitempty"`
}

// ChatMessage 追加写入的聊天记录，只用于展示
type ChatMessage struct {
	ID         string           `json:"id"`
	Type       MessageType      `json:"type"`
	Content    string           `json:"content"`
	Timestamp  time.Time        `json:"timestamp"`
	QuestionID string           `json:"question_id,omitempty"`
	Metadata   *MessageMetadata `json:"metadata,omitempty"`
}

// Completion 面试结束时写入存储的结果
type Completion struct {
	InterviewID string    `json:"interview_id"`
	TotalScore  float64   `json:"total_score"`
	Summary     string    `json:"summary"`
	CompletedAt time.Time `json:"completed_at"`
	Terminated  bool      `json:"terminated"`
	Reason      string    `json:"reason,omitempty"`
}

// IdentityUpdate 补充候选人身份字段，nil 表示不修改
type IdentityUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// MissingFields 返回为空的身份字段名，顺序固定为 name, email, phone
func (c *Candidate) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(c.Phone) == "" {
		missing = append(missing, "phone")
	}
	return missing
}

// SessionState 面试会话状态
type SessionState string

const (
	SessionNotStarted SessionState = "not_started"
	SessionActive     SessionState = "active"
	SessionCompleted  SessionState = "completed"
	SessionTerminated SessionState = "terminated"
)

// Finished 是否已进入终态
func (s SessionState) Finished() bool {
	return s == SessionCompleted || s == SessionTerminated
}

// SessionSnapshot 会话的只读视图，供接口返回和 Redis 缓存使用
type SessionSnapshot struct {
	CandidateID          string       `json:"candidate_id"`
	State                SessionState `json:"state"`
	CurrentQuestionIndex int          `json:"current_question_index"`
	CurrentQuestion      *Question    `json:"current_question,omitempty"`
	TimeRemaining        int          `json:"time_remaining"` // 展示用，不会小于 0
	IsPaused             bool         `json:"is_paused"`
	InFlight             bool         `json:"in_flight"`
	Revealing            bool         `json:"revealing"`
	Answered             int          `json:"answered"`
	Total                int          `json:"total"`
	TotalScore           *float64     `json:"total_score,omitempty"`
	TerminationReason    string       `json:"termination_reason,omitempty"`
	LastActivity         time.Time    `json:"last_activity"`
}
