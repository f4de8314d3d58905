package interview

import (
	"context"
	"math/rand"

	"mock-interview-go/internal/scoring"
	"mock-interview-go/internal/types"
)

// Store 会话依赖的持久化操作，所有方法以候选人 ID 为键
type Store interface {
	StartInterview(ctx context.Context, candidateID string, iv *types.Interview) error
	UpdateQuestion(ctx context.Context, candidateID string, index int, q types.Question) error
	AdvanceQuestion(ctx context.Context, candidateID string, index int, q types.Question) error
	CompleteInterview(ctx context.Context, candidateID string, c types.Completion) error
	SetPaused(ctx context.Context, candidateID string, paused bool) error
	AppendMessage(ctx context.Context, candidateID string, msg types.ChatMessage) error
}

// SnapshotCache 保存会话快照，供其他实例或断线重连读取
type SnapshotCache interface {
	SaveSnapshot(ctx context.Context, snap types.SessionSnapshot) error
}

// TerminationLatch 跨实例的一次性终止锁，返回 true 表示本次抢到
type TerminationLatch interface {
	AcquireTerminationLatch(ctx context.Context, candidateID string) (bool, error)
}

// QuestionDrawer 题库抽题
type QuestionDrawer interface {
	Draw(rng *rand.Rand) []types.Question
}

// AnswerScorer 答案评分
type AnswerScorer interface {
	Score(q types.Question, answer string) scoring.Result
}

// InterviewSummarizer 生成最终总结
type InterviewSummarizer interface {
	Summarize(questions []types.Question, candidateName string) string
}

// Deps 会话的必需依赖
type Deps struct {
	Bank       QuestionDrawer
	Scorer     AnswerScorer
	Summarizer InterviewSummarizer
	Store      Store
}
