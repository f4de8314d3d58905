package types

// SortField 看板排序字段
type SortField string

const (
	SortByCreatedAt SortField = "created_at"
	SortByName      SortField = "name"
	SortByScore     SortField = "score"
)

// CandidateFilter 看板列表查询条件
type CandidateFilter struct {
	Search string
	Status CandidateStatus
	SortBy SortField
	Page   int
	Size   int
}

// CandidateSummary 看板列表中的一行
type CandidateSummary struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	Status     CandidateStatus `json:"status"`
	FinalScore *float64        `json:"final_score,omitempty"`
	CreatedAt  int64           `json:"created_at"`
}

// CandidatePage 分页结果
type CandidatePage struct {
	Items      []CandidateSummary `json:"items"`
	Page       int                `json:"page"`
	Size       int                `json:"size"`
	TotalCount int64              `json:"total_count"`
}

// DashboardStats 看板统计
type DashboardStats struct {
	Total       int64 `json:"total"`
	Completed   int64 `json:"completed"`
	InProgress  int64 `json:"in_progress"`
	HighScorers int64 `json:"high_scorers"` // finalScore >= 7
}

// UnfinishedInterview 欢迎回来列表中的一项
type UnfinishedInterview struct {
	CandidateID string          `json:"candidate_id"`
	Name        string          `json:"name"`
	Status      CandidateStatus `json:"status"`
	Answered    int             `json:"answered"`
	Total       int             `json:"total"`
	StartedAt   int64           `json:"started_at"`
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	CandidateID string  `json:"candidate_id"`
	Score       float64 `json:"score"`
}

// InterviewFinishedEvent 面试结束事件，经 outbox 投递到消息队列
type InterviewFinishedEvent struct {
	CandidateID string  `json:"candidate_id"`
	InterviewID string  `json:"interview_id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	TotalScore  float64 `json:"total_score"`
	Terminated  bool    `json:"terminated"`
	Reason      string  `json:"reason,omitempty"`
	CompletedAt int64   `json:"completed_at"`
}
