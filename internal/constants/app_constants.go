package constants

import "time"

const (
	// QuestionsPerDifficulty 每个难度抽取的题目数
	QuestionsPerDifficulty = 2
	// TotalQuestions 一场面试的题目总数
	TotalQuestions = 6

	// 各难度单题限时（秒）
	EasyTimeLimitSeconds   = 20
	MediumTimeLimitSeconds = 60
	HardTimeLimitSeconds   = 120

	// DefaultRevealDelay 提交后到展示下一题（或结束）之间的停顿
	DefaultRevealDelay = 2 * time.Second
	// DefaultTickInterval 倒计时步长
	DefaultTickInterval = time.Second

	// MinScore 最低分，空答案也不会得 0 分
	MinScore = 3.0
	// MaxScore 满分
	MaxScore = 10.0
	// TerminationFallbackScore 强制终止且一题未答时使用的分数
	TerminationFallbackScore = 3.0
	// HighScoreThreshold 看板统计中的高分线
	HighScoreThreshold = 7.0

	// TimeoutAnswerText 超时且草稿为空时记录的答案
	TimeoutAnswerText = "No answer provided (time expired)"

	// InterviewRoleTitle 面试岗位名称
	InterviewRoleTitle = "Full-Stack Developer"

	// MaxResumeFileSize 上传简历大小上限
	MaxResumeFileSize = 10 << 20
)

// 事件类型与路由键
const (
	EventInterviewCompleted  = "interview.completed"
	EventInterviewTerminated = "interview.terminated"
)

// Outbox 状态
const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)
