package interview

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"mock-interview-go/internal/questionbank"
	"mock-interview-go/internal/scoring"
	"mock-interview-go/internal/types"

	"github.com/stretchr/testify/require"
)

type questionWrite struct {
	index int
	q     types.Question
}

// fakeStore 记录会话对存储的所有调用
type fakeStore struct {
	mu          sync.Mutex
	started     []*types.Interview
	updates     []questionWrite
	advances    []questionWrite
	completions []types.Completion
	paused      []bool
	messages    []types.ChatMessage
	startErr    error
}

func (f *fakeStore) StartInterview(_ context.Context, _ string, iv *types.Interview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, iv)
	return nil
}

func (f *fakeStore) UpdateQuestion(_ context.Context, _ string, index int, q types.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, questionWrite{index: index, q: q})
	return nil
}

func (f *fakeStore) AdvanceQuestion(_ context.Context, _ string, index int, q types.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advances = append(f.advances, questionWrite{index: index, q: q})
	return nil
}

func (f *fakeStore) CompleteInterview(_ context.Context, _ string, c types.Completion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, c)
	return nil
}

func (f *fakeStore) SetPaused(_ context.Context, _ string, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = append(f.paused, paused)
	return nil
}

func (f *fakeStore) AppendMessage(_ context.Context, _ string, msg types.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) lastMessage() types.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[len(f.messages)-1]
}

func (f *fakeStore) messagesOfType(t types.MessageType) []types.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.ChatMessage
	for _, m := range f.messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// answeredWrites 只统计写入了答案的 UpdateQuestion
func (f *fakeStore) answeredWrites(index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.updates {
		if u.index == index && u.q.Answer != nil {
			n++
		}
	}
	return n
}

type manualTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// manualScheduler 只记录续作，由测试决定何时执行
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
	delays []time.Duration
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{f: f}
	s.timers = append(s.timers, t)
	s.delays = append(s.delays, d)
	return t
}

func (s *manualScheduler) take() []*manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	timers := s.timers
	s.timers = nil
	return timers
}

// RunPending 执行所有未被取消的续作
func (s *manualScheduler) RunPending() int {
	n := 0
	for _, t := range s.take() {
		if t.stopped || t.fired {
			continue
		}
		t.fired = true
		t.f()
		n++
	}
	return n
}

// FireAll 无视取消强制执行，模拟 Stop 没能拦住已经触发的定时器
func (s *manualScheduler) FireAll() {
	for _, t := range s.take() {
		t.fired = true
		t.f()
	}
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedScorer 按顺序返回预设分数
type scriptedScorer struct {
	mu     sync.Mutex
	scores []float64
	calls  int
}

func (s *scriptedScorer) Score(_ types.Question, _ string) scoring.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	score := s.scores[s.calls%len(s.scores)]
	s.calls++
	return scoring.Result{Score: score, Feedback: "scripted"}
}

type fakeCache struct {
	mu    sync.Mutex
	snaps []types.SessionSnapshot
}

func (c *fakeCache) SaveSnapshot(_ context.Context, snap types.SessionSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, snap)
	return nil
}

type fakeLatch struct {
	acquired bool
	err      error
	calls    int
}

func (l *fakeLatch) AcquireTerminationLatch(_ context.Context, _ string) (bool, error) {
	l.calls++
	return l.acquired, l.err
}

var errBoom = errors.New("boom")

func testCandidate() types.Candidate {
	return types.Candidate{
		ID:    "cand-1",
		Name:  "Jane Doe",
		Email: "jane@example.com",
		Phone: "9876543210",
	}
}

type harness struct {
	session *Session
	store   *fakeStore
	sched   *manualScheduler
	clock   *fakeClock
}

func newHarness(t *testing.T, scorer AnswerScorer, opts ...Option) *harness {
	t.Helper()
	bank, err := questionbank.NewDefaultBank()
	require.NoError(t, err)
	if scorer == nil {
		scorer = scoring.NewDefaultScorer()
	}

	h := &harness{store: &fakeStore{}, sched: &manualScheduler{}, clock: newFakeClock()}
	deps := Deps{
		Bank:       bank,
		Scorer:     scorer,
		Summarizer: scoring.NewSummarizer(""),
		Store:      h.store,
	}
	base := []Option{
		WithScheduler(h.sched),
		WithClock(h.clock.Now),
		WithRand(rand.New(rand.NewSource(1))),
	}
	h.session = NewSession(testCandidate(), deps, append(base, opts...)...)
	return h
}

// startRevealed 开始面试并跳过第一题前的展示停顿
func (h *harness) startRevealed(t *testing.T) {
	t.Helper()
	require.NoError(t, h.session.Start(context.Background()))
	require.Equal(t, 1, h.sched.RunPending())
}

func (h *harness) current() types.Question {
	snap := h.session.Snapshot()
	return *snap.CurrentQuestion
}
