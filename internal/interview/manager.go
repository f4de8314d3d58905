package interview

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"mock-interview-go/internal/types"

	"github.com/rs/zerolog"
)

// Manager 按候选人 ID 保存会话，所有操作都显式传入 ID
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	deps Deps
	opts []Option
	o    options

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewManager 创建会话管理器，opts 会应用到每个新会话。
// 通过 WithRand 传入的随机源只用于给各会话派生独立的随机源。
func NewManager(deps Deps, opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	rng := o.rng
	if rng == nil {
		rng = rand.New(rand.NewSource(o.clock().UnixNano()))
	}
	return &Manager{
		sessions: make(map[string]*Session),
		deps:     deps,
		opts:     opts,
		o:        o,
		rng:      rng,
	}
}

func (m *Manager) logger() zerolog.Logger {
	return m.o.logger
}

func (m *Manager) sessionOptions() []Option {
	m.rngMu.Lock()
	seed := m.rng.Int63()
	m.rngMu.Unlock()

	opts := make([]Option, 0, len(m.opts)+1)
	opts = append(opts, m.opts...)
	return append(opts, WithRand(rand.New(rand.NewSource(seed))))
}

// Open 返回候选人的会话，不存在或上一场已结束时创建新会话
func (m *Manager) Open(candidate types.Candidate) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[candidate.ID]; ok && !s.State().Finished() {
		return s
	}
	s := NewSession(candidate, m.deps, m.sessionOptions()...)
	m.sessions[candidate.ID] = s
	return s
}

// Start 打开并开始会话
func (m *Manager) Start(ctx context.Context, candidate types.Candidate) (*Session, error) {
	s := m.Open(candidate)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Get 查找会话
func (m *Manager) Get(candidateID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[candidateID]
	if !ok {
		return nil, newSessionError(candidateID, "get", ErrSessionNotFound, "")
	}
	return s, nil
}

// Remove 从内存中移除会话，不影响已持久化的数据
func (m *Manager) Remove(candidateID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, candidateID)
}

// Restore 根据持久化的未完成面试重建会话。内存中已有进行中的会话时直接返回它。
func (m *Manager) Restore(ctx context.Context, candidate types.Candidate) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[candidate.ID]; ok && s.State() == types.SessionActive {
		return s, nil
	}
	s, err := RestoreSession(ctx, candidate, m.deps, m.sessionOptions()...)
	if err != nil {
		return nil, err
	}
	m.sessions[candidate.ID] = s
	return s, nil
}

// HandleVisibility 处理前端上报的可见性变化，失去焦点即终止面试
func (m *Manager) HandleVisibility(ctx context.Context, candidateID string, visible bool) (Notice, error) {
	s, err := m.Get(candidateID)
	if err != nil {
		return Notice{}, err
	}
	if visible {
		return Notice{}, nil
	}
	return s.Terminate(ctx, ReasonTabSwitch), nil
}

// Len 内存中的会话数
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) list() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// TickAll 对所有会话推进一次倒计时，返回实际发生变化的会话数
func (m *Manager) TickAll(ctx context.Context) int {
	ticked := 0
	for _, s := range m.list() {
		if s.Tick(ctx) {
			ticked++
		}
	}
	return ticked
}

// EvictIdle 终止超过 idle 未操作的会话，并从内存中移除已结束的会话
func (m *Manager) EvictIdle(ctx context.Context, idle time.Duration) (terminated, evicted int) {
	now := m.o.clock()
	log := m.logger()

	for _, s := range m.list() {
		state := s.State()
		if state == types.SessionActive && now.Sub(s.LastActivity()) > idle {
			if s.Terminate(ctx, ReasonAbandoned).Triggered {
				terminated++
				log.Info().Str("candidate_id", s.CandidateID()).Msg("长时间未操作，面试已终止")
			}
			state = s.State()
		}
		if state.Finished() || (state == types.SessionNotStarted && now.Sub(s.LastActivity()) > idle) {
			m.removeIfSame(s)
			evicted++
		}
	}
	return terminated, evicted
}

func (m *Manager) removeIfSame(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.CandidateID()]; ok && cur == s {
		delete(m.sessions, s.CandidateID())
	}
}
