// Package interview 实现单个候选人的限时面试状态机，以及按候选人 ID 管理会话的 Manager
package interview

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"mock-interview-go/internal/constants"
	"mock-interview-go/internal/metrics"
	"mock-interview-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
)

// SubmitResult 提交结果，Accepted 为 false 表示被忽略（重复、进行中、暂停或空答案）
type SubmitResult struct {
	Accepted      bool    `json:"accepted"`
	QuestionIndex int     `json:"question_index"`
	Score         float64 `json:"score,omitempty"`
	Feedback      string  `json:"feedback,omitempty"`
	TimedOut      bool    `json:"timed_out,omitempty"`
}

// Notice 终止后需要展示给候选人的提示
type Notice struct {
	Triggered  bool    `json:"triggered"`
	Message    string  `json:"message,omitempty"`
	TotalScore float64 `json:"total_score,omitempty"`
}

// Session 一个候选人的面试会话。
// 计时 tick、提交和外部终止三个来源都通过 mu 串行化。
type Session struct {
	mu   sync.Mutex
	o    options
	deps Deps
	log  zerolog.Logger

	candidate types.Candidate
	interview *types.Interview
	state     types.SessionState

	revealing bool // 欢迎语之后、第一题出现之前
	inFlight  bool // 已提交，等待展示下一题或结束
	latched   bool // 终止只允许触发一次
	draft     string

	seq          uint64 // 每次调度或取消续作都会递增，旧续作据此失效
	pending      Timer
	lastActivity time.Time
}

// NewSession 创建尚未开始的会话
func NewSession(candidate types.Candidate, deps Deps, opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(o.clock().UnixNano()))
	}
	candidate.Interview = nil
	return &Session{
		o:            o,
		deps:         deps,
		log:          o.logger.With().Str("candidate_id", candidate.ID).Logger(),
		candidate:    candidate,
		state:        types.SessionNotStarted,
		lastActivity: o.clock(),
	}
}

// RestoreSession 从持久化的未完成面试重建会话，恢复后处于暂停状态，等待候选人继续
func RestoreSession(ctx context.Context, candidate types.Candidate, deps Deps, opts ...Option) (*Session, error) {
	iv := candidate.Interview
	if iv == nil {
		return nil, newSessionError(candidate.ID, "restore", ErrInvalidState, "没有可恢复的面试")
	}
	if iv.CompletedAt != nil {
		return nil, newSessionError(candidate.ID, "restore", ErrInvalidState, "面试已结束")
	}
	if len(iv.Questions) == 0 || iv.CurrentQuestionIndex < 0 || iv.CurrentQuestionIndex >= len(iv.Questions) {
		return nil, newSessionError(candidate.ID, "restore", ErrInvalidState, "题目索引越界")
	}

	s := NewSession(candidate, deps, opts...)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interview = iv.Clone()
	s.state = types.SessionActive
	metrics.ActiveSessions.Inc()

	// 上次在展示下一题之前中断
	if s.currentLocked().Answered() {
		if s.isLastLocked() {
			s.completeLocked(ctx)
			s.saveSnapshotLocked(ctx)
			return s, nil
		}
		s.advanceLocked(ctx)
	}

	if !s.interview.IsPaused {
		s.interview.IsPaused = true
		if err := s.deps.Store.SetPaused(ctx, s.candidate.ID, true); err != nil {
			s.storeFailed("set_paused", err)
		}
	}
	s.appendMessageLocked(ctx, types.ChatMessage{
		Type:    types.MessageTypeSystem,
		Content: welcomeBackMessage(s.candidate.Name, s.interview.CurrentQuestionIndex+1, len(s.interview.Questions)),
	})
	s.saveSnapshotLocked(ctx)
	s.log.Info().Int("question_index", s.interview.CurrentQuestionIndex).Msg("面试会话已恢复")
	return s, nil
}

// Start 抽题并开始面试。身份字段不完整时返回 MissingFieldsError，不抽题也不计时。
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != types.SessionNotStarted {
		return newSessionError(s.candidate.ID, "start", ErrAlreadyStarted, "")
	}
	if missing := s.candidate.MissingFields(); len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return newSessionError(s.candidate.ID, "start", ErrInvalidState, "生成面试ID失败: "+err.Error())
	}
	questions := s.deps.Bank.Draw(s.o.rng)
	if len(questions) == 0 {
		return newSessionError(s.candidate.ID, "start", ErrInvalidState, "题库没有返回题目")
	}

	now := s.o.clock()
	startedAt := now
	questions[0].StartedAt = &startedAt
	questions[0].TimeRemaining = questions[0].TimeLimit

	iv := &types.Interview{ID: id.String(), Questions: questions, StartedAt: now}
	if err := s.deps.Store.StartInterview(ctx, s.candidate.ID, iv.Clone()); err != nil {
		return newSessionError(s.candidate.ID, "start", ErrStoreFailed, err.Error())
	}

	s.interview = iv
	s.state = types.SessionActive
	s.revealing = true
	s.lastActivity = now
	metrics.SessionsStarted.Inc()
	metrics.ActiveSessions.Inc()

	s.appendMessageLocked(ctx, types.ChatMessage{
		Type:    types.MessageTypeSystem,
		Content: welcomeMessage(s.candidate.Name),
	})
	s.scheduleLocked(s.revealFirstLocked)
	s.saveSnapshotLocked(ctx)

	s.log.Info().Str("interview_id", iv.ID).Msg("面试已开始")
	return nil
}

// Tick 倒计时前进一秒。只有在进行中、未暂停、当前题未作答且没有提交在途时生效。
// 倒计时到 0 时自动提交草稿，草稿为空则记录超时答案。
func (s *Session) Tick(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tickableLocked() {
		return false
	}

	q := s.currentLocked()
	q.TimeRemaining--
	if q.TimeRemaining <= 0 {
		s.timeoutLocked(ctx)
	} else if err := s.deps.Store.UpdateQuestion(ctx, s.candidate.ID, s.interview.CurrentQuestionIndex, *q); err != nil {
		s.storeFailed("update_question", err)
	}
	s.saveSnapshotLocked(ctx)
	return true
}

// Submit 提交当前题的答案。重复提交或已有提交在途时直接忽略，不排队。
func (s *Session) Submit(ctx context.Context, text string) SubmitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	answer := strings.TrimSpace(text)
	if answer == "" || !s.acceptingLocked() {
		metrics.RejectedSubmissions.Inc()
		s.log.Debug().Bool("empty", answer == "").Msg("忽略提交")
		return SubmitResult{}
	}

	s.lastActivity = s.o.clock()
	res := s.submitLocked(ctx, answer, answer, "manual")
	s.saveSnapshotLocked(ctx)
	return res
}

// SetDraft 保存候选人正在输入的答案，超时时会被自动提交
func (s *Session) SetDraft(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != types.SessionActive {
		return newSessionError(s.candidate.ID, "draft", ErrInvalidState, string(s.state))
	}
	s.draft = text
	s.lastActivity = s.o.clock()
	return nil
}

// Pause 暂停倒计时
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != types.SessionActive {
		return newSessionError(s.candidate.ID, "pause", ErrInvalidState, string(s.state))
	}
	if s.interview.IsPaused {
		return newSessionError(s.candidate.ID, "pause", ErrInvalidState, "已经处于暂停状态")
	}

	s.interview.IsPaused = true
	s.lastActivity = s.o.clock()
	if err := s.deps.Store.SetPaused(ctx, s.candidate.ID, true); err != nil {
		s.storeFailed("set_paused", err)
	}
	s.appendMessageLocked(ctx, types.ChatMessage{Type: types.MessageTypeSystem, Content: pauseMessage})
	s.saveSnapshotLocked(ctx)
	s.log.Info().Int("question_index", s.interview.CurrentQuestionIndex).Msg("面试已暂停")
	return nil
}

// Resume 从暂停处继续倒计时
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != types.SessionActive || !s.interview.IsPaused {
		return newSessionError(s.candidate.ID, "resume", ErrInvalidState, "面试未暂停")
	}

	s.interview.IsPaused = false
	s.lastActivity = s.o.clock()
	if err := s.deps.Store.SetPaused(ctx, s.candidate.ID, false); err != nil {
		s.storeFailed("set_paused", err)
	}
	s.appendMessageLocked(ctx, types.ChatMessage{Type: types.MessageTypeSystem, Content: resumeMessage})
	s.saveSnapshotLocked(ctx)
	s.log.Info().Int("question_index", s.interview.CurrentQuestionIndex).Msg("面试已继续")
	return nil
}

// Terminate 强制结束面试，每个会话最多生效一次。已完成的面试不受影响。
// 得分为已答题目的平均分，一题未答时使用保底分。
func (s *Session) Terminate(ctx context.Context, reason Reason) Notice {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != types.SessionActive || s.latched {
		return Notice{}
	}
	s.latched = true

	if s.o.latch != nil {
		acquired, err := s.o.latch.AcquireTerminationLatch(ctx, s.candidate.ID)
		if err != nil {
			s.log.Warn().Err(err).Msg("获取终止锁失败，按本地状态继续终止")
		} else if !acquired {
			// 其他实例负责写入结果，本地只停止会话
			s.cancelPendingLocked()
			s.inFlight = false
			s.state = types.SessionTerminated
			metrics.ActiveSessions.Dec()
			s.log.Info().Msg("终止已由其他实例处理")
			return Notice{}
		}
	}

	s.cancelPendingLocked()

	var sum float64
	answered := 0
	for i := range s.interview.Questions {
		if sc := s.interview.Questions[i].Score; sc != nil {
			sum += *sc
			answered++
		}
	}
	total := constants.TerminationFallbackScore
	if answered > 0 {
		total = sum / float64(answered)
	}

	summary := reason.Summary()
	s.finishLocked(ctx, total, summary, reason)
	s.appendMessageLocked(ctx, types.ChatMessage{Type: types.MessageTypeSystem, Content: summary})
	s.saveSnapshotLocked(ctx)

	s.log.Warn().Str("reason", string(reason)).Int("answered", answered).Float64("total_score", total).Msg("面试被终止")
	return Notice{Triggered: true, Message: reason.Notice(), TotalScore: total}
}

// Snapshot 返回当前会话视图，倒计时展示值不小于 0
func (s *Session) Snapshot() types.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Interview 返回面试记录的拷贝，未开始时为 nil
func (s *Session) Interview() *types.Interview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interview.Clone()
}

func (s *Session) CandidateID() string {
	return s.candidate.ID
}

func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActivity 候选人最后一次主动操作的时间，计时 tick 不算
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) currentLocked() *types.Question {
	return &s.interview.Questions[s.interview.CurrentQuestionIndex]
}

func (s *Session) isLastLocked() bool {
	return s.interview.CurrentQuestionIndex == len(s.interview.Questions)-1
}

func (s *Session) tickableLocked() bool {
	return s.state == types.SessionActive &&
		!s.revealing &&
		!s.inFlight &&
		!s.interview.IsPaused &&
		!s.currentLocked().Answered()
}

func (s *Session) acceptingLocked() bool {
	return s.tickableLocked()
}

func (s *Session) timeoutLocked(ctx context.Context) {
	q := s.currentLocked()
	metrics.QuestionTimeouts.WithLabelValues(string(q.Difficulty)).Inc()

	draft := strings.TrimSpace(s.draft)
	if draft == "" {
		s.submitLocked(ctx, constants.TimeoutAnswerText, "", "timeout")
		return
	}
	s.submitLocked(ctx, draft, draft, "timeout")
}

func (s *Session) submitLocked(ctx context.Context, stored, scoringInput, source string) SubmitResult {
	idx := s.interview.CurrentQuestionIndex
	q := s.currentLocked()
	res := s.deps.Scorer.Score(*q, scoringInput)

	now := s.o.clock()
	answer, score, feedback := stored, res.Score, res.Feedback
	q.Answer = &answer
	q.Score = &score
	q.Feedback = &feedback
	q.AnsweredAt = &now
	q.TimeRemaining = 0

	s.inFlight = true
	s.draft = ""

	if err := s.deps.Store.UpdateQuestion(ctx, s.candidate.ID, idx, *q); err != nil {
		s.storeFailed("update_question", err)
	}
	if stored != constants.TimeoutAnswerText {
		s.appendMessageLocked(ctx, types.ChatMessage{
			Type:       types.MessageTypeUser,
			Content:    stored,
			QuestionID: q.ID,
		})
	}
	s.appendMessageLocked(ctx, types.ChatMessage{
		Type:       types.MessageTypeScore,
		Content:    scoreMessage(score, feedback),
		QuestionID: q.ID,
		Metadata: &types.MessageMetadata{
			Difficulty:     q.Difficulty,
			QuestionNumber: idx + 1,
			Score:          &score,
			Feedback:       feedback,
		},
	})
	metrics.AnswerScores.WithLabelValues(string(q.Difficulty), source).Observe(score)

	if s.isLastLocked() {
		s.scheduleLocked(s.completeLocked)
	} else {
		s.scheduleLocked(s.advanceLocked)
	}

	s.log.Info().
		Int("question_index", idx).
		Str("source", source).
		Float64("score", score).
		Msg("答案已评分")
	return SubmitResult{
		Accepted:      true,
		QuestionIndex: idx,
		Score:         score,
		Feedback:      feedback,
		TimedOut:      source == "timeout",
	}
}

func (s *Session) revealFirstLocked(ctx context.Context) {
	s.revealing = false
	s.appendQuestionLocked(ctx)
}

func (s *Session) advanceLocked(ctx context.Context) {
	s.inFlight = false
	s.interview.CurrentQuestionIndex++

	q := s.currentLocked()
	now := s.o.clock()
	q.StartedAt = &now
	q.TimeRemaining = q.TimeLimit

	if err := s.deps.Store.AdvanceQuestion(ctx, s.candidate.ID, s.interview.CurrentQuestionIndex, *q); err != nil {
		s.storeFailed("advance_question", err)
	}
	s.appendQuestionLocked(ctx)
}

// completeLocked 总分为 6 题之和除以题目总数，未作答的题按 0 分计
func (s *Session) completeLocked(ctx context.Context) {
	var sum float64
	for i := range s.interview.Questions {
		if sc := s.interview.Questions[i].Score; sc != nil {
			sum += *sc
		}
	}
	total := sum / float64(len(s.interview.Questions))

	questions := make([]types.Question, len(s.interview.Questions))
	copy(questions, s.interview.Questions)
	summary := s.deps.Summarizer.Summarize(questions, s.candidate.Name)

	s.finishLocked(ctx, total, summary, "")
	s.appendMessageLocked(ctx, types.ChatMessage{
		Type:    types.MessageTypeSystem,
		Content: completionMessage(total, summary),
	})
	s.log.Info().Float64("total_score", total).Msg("面试已完成")
}

func (s *Session) finishLocked(ctx context.Context, total float64, summary string, reason Reason) {
	now := s.o.clock()
	s.inFlight = false
	s.interview.CompletedAt = &now
	s.interview.TotalScore = total

	outcome := "completed"
	if reason != "" {
		outcome = "terminated"
		s.state = types.SessionTerminated
		s.interview.Terminated = true
		s.interview.TerminationReason = string(reason)
	} else {
		s.state = types.SessionCompleted
	}

	err := s.deps.Store.CompleteInterview(ctx, s.candidate.ID, types.Completion{
		InterviewID: s.interview.ID,
		TotalScore:  total,
		Summary:     summary,
		CompletedAt: now,
		Terminated:  reason != "",
		Reason:      string(reason),
	})
	switch {
	case errors.Is(err, ErrAlreadyFinished):
		s.log.Warn().Msg("面试结果已存在，忽略本次写入")
	case err != nil:
		s.storeFailed("complete_interview", err)
	}
	metrics.SessionsFinished.WithLabelValues(outcome, string(reason)).Inc()
	metrics.ActiveSessions.Dec()
}

func (s *Session) appendQuestionLocked(ctx context.Context) {
	q := s.currentLocked()
	s.appendMessageLocked(ctx, types.ChatMessage{
		Type:       types.MessageTypeQuestion,
		Content:    q.Text,
		QuestionID: q.ID,
		Metadata: &types.MessageMetadata{
			Difficulty:     q.Difficulty,
			QuestionNumber: s.interview.CurrentQuestionIndex + 1,
		},
	})
}

func (s *Session) appendMessageLocked(ctx context.Context, msg types.ChatMessage) {
	msg.Timestamp = s.o.clock()
	if err := s.deps.Store.AppendMessage(ctx, s.candidate.ID, msg); err != nil {
		s.storeFailed("append_message", err)
	}
}

// scheduleLocked 在展示停顿之后执行续作。续作执行时若会话已被终止或序号已变化则直接丢弃。
func (s *Session) scheduleLocked(next func(ctx context.Context)) {
	s.seq++
	seq := s.seq
	s.pending = s.o.scheduler.AfterFunc(s.o.revealDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if seq != s.seq || s.state != types.SessionActive {
			return
		}
		s.pending = nil

		ctx, cancel := context.WithTimeout(context.Background(), s.o.storeTimeout)
		defer cancel()
		next(ctx)
		s.saveSnapshotLocked(ctx)
	})
}

func (s *Session) cancelPendingLocked() {
	s.seq++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

func (s *Session) snapshotLocked() types.SessionSnapshot {
	snap := types.SessionSnapshot{
		CandidateID:  s.candidate.ID,
		State:        s.state,
		Total:        constants.TotalQuestions,
		LastActivity: s.lastActivity,
	}
	if s.interview == nil {
		return snap
	}

	q := *s.currentLocked()
	if q.TimeRemaining < 0 {
		q.TimeRemaining = 0
	}
	snap.CurrentQuestionIndex = s.interview.CurrentQuestionIndex
	snap.CurrentQuestion = &q
	snap.TimeRemaining = q.TimeRemaining
	snap.IsPaused = s.interview.IsPaused
	snap.InFlight = s.inFlight
	snap.Revealing = s.revealing
	snap.Answered = s.interview.AnsweredCount()
	snap.Total = len(s.interview.Questions)
	snap.TerminationReason = s.interview.TerminationReason
	if s.interview.CompletedAt != nil {
		total := s.interview.TotalScore
		snap.TotalScore = &total
	}
	return snap
}

func (s *Session) saveSnapshotLocked(ctx context.Context) {
	if s.o.snapshots == nil {
		return
	}
	if err := s.o.snapshots.SaveSnapshot(ctx, s.snapshotLocked()); err != nil {
		s.log.Warn().Err(err).Msg("写入会话快照失败")
	}
}

func (s *Session) storeFailed(op string, err error) {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	s.log.Error().Err(err).Str("op", op).Msg("写入会话存储失败")
}
