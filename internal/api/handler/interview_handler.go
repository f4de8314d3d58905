package handler

import (
	"context"

	"mock-interview-go/internal/interview"
	"mock-interview-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// CandidateReader 开始和恢复面试前读取候选人
type CandidateReader interface {
	GetCandidate(ctx context.Context, candidateID string) (*types.Candidate, error)
}

// SnapshotReader 会话不在本实例时从 Redis 读取最近的快照
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, candidateID string) (*types.SessionSnapshot, error)
}

// InterviewHandler 驱动面试状态机的接口，所有操作都以候选人 ID 定位会话
type InterviewHandler struct {
	sessions   *interview.Manager
	candidates CandidateReader
	snapshots  SnapshotReader
}

// NewInterviewHandler snapshots 可以为 nil
func NewInterviewHandler(sessions *interview.Manager, candidates CandidateReader, snapshots SnapshotReader) *InterviewHandler {
	return &InterviewHandler{sessions: sessions, candidates: candidates, snapshots: snapshots}
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type draftRequest struct {
	Text string `json:"text"`
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

type terminateRequest struct {
	Reason string `json:"reason"`
}

// Start POST /interviews/:id/start
func (h *InterviewHandler) Start(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	cand, err := h.candidates.GetCandidate(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	if cand.Status == types.CandidateStatusCompleted {
		writeError(c, &interview.SessionError{CandidateID: id, Op: "start", BaseErr: interview.ErrInvalidState, Detail: "面试已完成"})
		return
	}

	live, err := h.sessions.Get(id)
	switch {
	case err == nil && live.State() == types.SessionNotStarted:
		// 上次因信息不完整没能开始，用补全后的资料重新打开
		h.sessions.Remove(id)
	case err != nil && cand.Interview != nil && cand.Interview.CompletedAt == nil:
		writeError(c, &interview.SessionError{CandidateID: id, Op: "start", BaseErr: interview.ErrInvalidState, Detail: "存在未完成的面试，请先恢复"})
		return
	}

	s, err := h.sessions.Start(ctx, *cand)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, s.Snapshot())
}

// Answer POST /interviews/:id/answer，重复提交返回 accepted=false
func (h *InterviewHandler) Answer(ctx context.Context, c *app.RequestContext) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req answerRequest
	if err := c.BindJSON(&req); err != nil {
		writeError(c, badRequest(err.Error()))
		return
	}
	res := s.Submit(ctx, req.Answer)
	c.JSON(consts.StatusOK, utils.H{"result": res, "session": s.Snapshot()})
}

// Draft PUT /interviews/:id/draft
func (h *InterviewHandler) Draft(ctx context.Context, c *app.RequestContext) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req draftRequest
	if err := c.BindJSON(&req); err != nil {
		writeError(c, badRequest(err.Error()))
		return
	}
	if err := s.SetDraft(req.Text); err != nil {
		writeError(c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}

// Pause POST /interviews/:id/pause
func (h *InterviewHandler) Pause(ctx context.Context, c *app.RequestContext) {
	h.transition(ctx, c, (*interview.Session).Pause)
}

// Resume POST /interviews/:id/resume
func (h *InterviewHandler) Resume(ctx context.Context, c *app.RequestContext) {
	h.transition(ctx, c, (*interview.Session).Resume)
}

func (h *InterviewHandler) transition(ctx context.Context, c *app.RequestContext, op func(*interview.Session, context.Context) error) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := op(s, ctx); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, s.Snapshot())
}

// Restore POST /interviews/:id/restore，欢迎回来后继续未完成的面试
func (h *InterviewHandler) Restore(ctx context.Context, c *app.RequestContext) {
	cand, err := h.candidates.GetCandidate(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	s, err := h.sessions.Restore(ctx, *cand)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, s.Snapshot())
}

// Visibility POST /interviews/:id/visibility，页面失去焦点即终止
func (h *InterviewHandler) Visibility(ctx context.Context, c *app.RequestContext) {
	var req visibilityRequest
	if err := c.BindJSON(&req); err != nil {
		writeError(c, badRequest(err.Error()))
		return
	}
	notice, err := h.sessions.HandleVisibility(ctx, c.Param("id"), req.Visible)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, notice)
}

// Terminate POST /interviews/:id/terminate
func (h *InterviewHandler) Terminate(ctx context.Context, c *app.RequestContext) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	req := terminateRequest{Reason: string(interview.ReasonTabSwitch)}
	if len(c.Request.Body()) > 0 {
		if err := c.BindJSON(&req); err != nil {
			writeError(c, badRequest(err.Error()))
			return
		}
	}
	reason := interview.Reason(req.Reason)
	if !reason.Valid() {
		writeError(c, badRequest("未知的终止原因: "+req.Reason))
		return
	}
	c.JSON(consts.StatusOK, s.Terminate(ctx, reason))
}

// Snapshot GET /interviews/:id
func (h *InterviewHandler) Snapshot(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	if s, err := h.sessions.Get(id); err == nil {
		c.JSON(consts.StatusOK, s.Snapshot())
		return
	}
	if h.snapshots != nil {
		snap, err := h.snapshots.GetSnapshot(ctx, id)
		if err == nil {
			c.JSON(consts.StatusOK, snap)
			return
		}
		if statusFor(err) != consts.StatusNotFound {
			writeError(c, err)
			return
		}
	}
	writeError(c, &interview.SessionError{CandidateID: id, Op: "snapshot", BaseErr: interview.ErrSessionNotFound})
}

func (h *InterviewHandler) session(c *app.RequestContext) (*interview.Session, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return s, true
}
