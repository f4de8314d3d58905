package router_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"sync"
	"testing"
	"time"

	"mock-interview-go/internal/api/handler"
	"mock-interview-go/internal/api/router"
	"mock-interview-go/internal/config"
	"mock-interview-go/internal/constants"
	"mock-interview-go/internal/interview"
	"mock-interview-go/internal/parser"
	"mock-interview-go/internal/processor"
	"mock-interview-go/internal/questionbank"
	"mock-interview-go/internal/scoring"
	"mock-interview-go/internal/storage"
	"mock-interview-go/internal/types"
	"mock-interview-go/pkg/ratelimit"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// manualScheduler 续作由测试手动触发，避免依赖真实的展示延迟
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(_ time.Duration, f func()) interview.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) RunPending() {
	s.mu.Lock()
	timers := s.timers
	s.timers = nil
	s.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

type testEnv struct {
	h         *server.Hertz
	repo      *storage.InterviewRepository
	rdb       *storage.Redis
	manager   *interview.Manager
	scheduler *manualScheduler
}

func newTestEnv(t *testing.T, limiter *ratelimit.TokenBucket) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:router%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	_, err = storage.NewMySQLWithDB(db, "test")
	require.NoError(t, err)
	repo := storage.NewInterviewRepository(db, storage.EventRouting{})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	rdb := storage.NewRedisFromClient(client, &config.RedisConfig{}, time.Hour)

	bank, err := questionbank.NewDefaultBank()
	require.NoError(t, err)
	sched := &manualScheduler{}
	manager := interview.NewManager(interview.Deps{
		Bank:       bank,
		Scorer:     scoring.NewDefaultScorer(),
		Summarizer: scoring.NewSummarizer(bank.Role()),
		Store:      repo,
	}, interview.WithScheduler(sched), interview.WithSnapshotCache(rdb), interview.WithTerminationLatch(rdb))

	intake := processor.NewIntakeService(parser.NewDocumentParser(nil), repo, processor.WithDeduplicator(rdb))

	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	router.RegisterRoutes(h, router.Handlers{
		Candidates:    handler.NewCandidateHandler(intake, repo, manager, handler.WithCandidateCache(rdb)),
		Interviews:    handler.NewInterviewHandler(manager, repo, rdb),
		UploadLimiter: limiter,
	})
	return &testEnv{h: h, repo: repo, rdb: rdb, manager: manager, scheduler: sched}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *ut.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	return ut.PerformRequest(e.h.Engine, method, path,
		&ut.Body{Body: bytes.NewReader(raw), Len: len(raw)},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
}

func (e *testEnv) upload(t *testing.T, fileName string, data []byte) *ut.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return ut.PerformRequest(e.h.Engine, http.MethodPost, "/api/v1/candidates/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: w.FormDataContentType()},
	)
}

// createCandidate 直接登记身份完整的候选人
func (e *testEnv) createCandidate(t *testing.T, name string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/candidates", map[string]string{
		"name":  name,
		"email": "someone@example.com",
		"phone": "+91 98765 43210",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var detail handler.CandidateDetail
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &detail))
	return detail.ID
}

func decode[T any](t *testing.T, resp *ut.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &v), resp.Body.String())
	return v
}

func buildDOCX(t *testing.T, lines ...string) []byte {
	t.Helper()
	var doc bytes.Buffer
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, l := range lines {
		doc.WriteString("<w:p><w:r><w:t>" + l + "</w:t></w:r></w:p>")
	}
	doc.WriteString("</w:body></w:document>")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write(doc.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/health", "/api/v1/health"} {
		resp := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, resp.Code, path)
	}
}

func TestUploadResumeAndDuplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	docx := buildDOCX(t, "Priya Sharma", "Email: priya@example.com", "Phone: +91 98765-43210", "React, Node.js")

	resp := env.upload(t, "priya.docx", docx)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	first := decode[handler.UploadResponse](t, resp)
	assert.False(t, first.Duplicate)
	assert.Empty(t, first.MissingFields)
	assert.Equal(t, "Priya Sharma", first.Candidate.Name)
	assert.Equal(t, "9876543210", first.Candidate.Phone)
	assert.Equal(t, "(+91) 9876543210", first.PhoneDisplay)

	resp = env.upload(t, "copy.docx", docx)
	require.Equal(t, http.StatusOK, resp.Code)
	second := decode[handler.UploadResponse](t, resp)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Candidate.ID, second.Candidate.ID)
}

func TestUploadRejectsBadFiles(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.upload(t, "photo.png", []byte("not a resume"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// 没有 PDF 解析器时 .pdf 无法解析
	resp = env.upload(t, "resume.pdf", []byte("%PDF-1.4"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(t, http.MethodPost, "/api/v1/candidates/upload", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUploadRateLimited(t *testing.T) {
	env := newTestEnv(t, ratelimit.NewTokenBucket(1, 1))
	docx := buildDOCX(t, "Priya Sharma", "priya@example.com")

	resp := env.upload(t, "a.docx", docx)
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = env.upload(t, "a.docx", docx)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))
}

func TestStartRequiresCompleteIdentity(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/candidates", map[string]string{"name": "Arjun Mehta"})
	require.Equal(t, http.StatusCreated, resp.Code)
	detail := decode[handler.CandidateDetail](t, resp)
	assert.Equal(t, []string{"email", "phone"}, detail.MissingFields)

	start := "/api/v1/interviews/" + detail.ID + "/start"
	resp = env.do(t, http.MethodPost, start, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	body := decode[map[string]any](t, resp)
	assert.ElementsMatch(t, []any{"email", "phone"}, body["missing_fields"])

	resp = env.do(t, http.MethodPatch, "/api/v1/candidates/"+detail.ID, map[string]string{
		"email": "arjun@example.com",
		"phone": "98765 43210",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[handler.CandidateDetail](t, resp).MissingFields)

	resp = env.do(t, http.MethodPost, start, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	snap := decode[types.SessionSnapshot](t, resp)
	assert.Equal(t, types.SessionActive, snap.State)
	assert.True(t, snap.Revealing)
}

func TestInterviewFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createCandidate(t, "Neha Gupta")
	base := "/api/v1/interviews/" + id

	resp := env.do(t, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.do(t, http.MethodPost, base+"/start", nil)
	assert.Equal(t, http.StatusConflict, resp.Code)

	env.scheduler.RunPending()

	resp = env.do(t, http.MethodPut, base+"/draft", map[string]string{"text": "use hooks"})
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = env.do(t, http.MethodPost, base+"/answer", map[string]string{"answer": "React hooks like useState and useEffect manage state and side effects in function components."})
	require.Equal(t, http.StatusOK, resp.Code)
	answered := decode[struct {
		Result  interview.SubmitResult `json:"result"`
		Session types.SessionSnapshot  `json:"session"`
	}](t, resp)
	assert.True(t, answered.Result.Accepted)
	assert.True(t, answered.Session.InFlight)

	// 在途期间的重复提交被忽略
	resp = env.do(t, http.MethodPost, base+"/answer", map[string]string{"answer": "again"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"accepted":false`)

	env.scheduler.RunPending()
	resp = env.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	snap := decode[types.SessionSnapshot](t, resp)
	assert.Equal(t, 1, snap.CurrentQuestionIndex)
	assert.Equal(t, 1, snap.Answered)

	resp = env.do(t, http.MethodPost, base+"/pause", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decode[types.SessionSnapshot](t, resp).IsPaused)
	resp = env.do(t, http.MethodPost, base+"/pause", nil)
	assert.Equal(t, http.StatusConflict, resp.Code)
	resp = env.do(t, http.MethodPost, base+"/resume", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[types.SessionSnapshot](t, resp).IsPaused)

	resp = env.do(t, http.MethodPost, base+"/terminate", map[string]string{"reason": "bored"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(t, http.MethodPost, base+"/terminate", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	notice := decode[interview.Notice](t, resp)
	assert.True(t, notice.Triggered)
	assert.Equal(t, interview.ReasonTabSwitch.Notice(), notice.Message)

	// 终止只生效一次
	resp = env.do(t, http.MethodPost, base+"/terminate", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[interview.Notice](t, resp).Triggered)

	resp = env.do(t, http.MethodGet, "/api/v1/candidates/"+id, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	detail := decode[handler.CandidateDetail](t, resp)
	assert.Equal(t, types.CandidateStatusCompleted, detail.Status)
	require.NotNil(t, detail.FinalScore)
	require.NotNil(t, detail.Session)
	assert.Equal(t, types.SessionTerminated, detail.Session.State)

	resp = env.do(t, http.MethodPost, base+"/start", nil)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = env.do(t, http.MethodGet, "/api/v1/candidates/"+id+"/messages", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	msgs := decode[struct {
		Messages []types.ChatMessage `json:"messages"`
	}](t, resp)
	assert.NotEmpty(t, msgs.Messages)
}

func TestVisibilityLossTerminates(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createCandidate(t, "Rahul Verma")
	base := "/api/v1/interviews/" + id

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, base+"/start", nil).Code)
	env.scheduler.RunPending()

	resp := env.do(t, http.MethodPost, base+"/visibility", map[string]bool{"visible": true})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[interview.Notice](t, resp).Triggered)

	resp = env.do(t, http.MethodPost, base+"/visibility", map[string]bool{"visible": false})
	require.Equal(t, http.StatusOK, resp.Code)
	notice := decode[interview.Notice](t, resp)
	assert.True(t, notice.Triggered)
	assert.InDelta(t, constants.TerminationFallbackScore, notice.TotalScore, 0.001)
}

func TestRestoreUnfinishedInterview(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createCandidate(t, "Kavya Iyer")
	base := "/api/v1/interviews/" + id

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, base+"/start", nil).Code)
	env.scheduler.RunPending()

	// 模拟服务重启：内存会话丢失，快照仍在 Redis
	env.manager.Remove(id)

	resp := env.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, types.SessionActive, decode[types.SessionSnapshot](t, resp).State)

	resp = env.do(t, http.MethodGet, "/api/v1/candidates/unfinished", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	unfinished := decode[struct {
		Items []types.UnfinishedInterview `json:"items"`
	}](t, resp)
	require.Len(t, unfinished.Items, 1)
	assert.Equal(t, id, unfinished.Items[0].CandidateID)

	resp = env.do(t, http.MethodPost, base+"/start", nil)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = env.do(t, http.MethodPost, base+"/restore", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	snap := decode[types.SessionSnapshot](t, resp)
	assert.Equal(t, types.SessionActive, snap.State)
	assert.True(t, snap.IsPaused, "恢复后等待候选人继续")
	assert.Equal(t, 0, snap.CurrentQuestionIndex)

	resp = env.do(t, http.MethodPost, base+"/resume", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[types.SessionSnapshot](t, resp).IsPaused)
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/v1/candidates/missing"},
		{http.MethodPatch, "/api/v1/candidates/missing"},
		{http.MethodDelete, "/api/v1/candidates/missing"},
		{http.MethodGet, "/api/v1/candidates/missing/messages"},
		{http.MethodGet, "/api/v1/interviews/missing"},
		{http.MethodPost, "/api/v1/interviews/missing/start"},
		{http.MethodPost, "/api/v1/interviews/missing/pause"},
		{http.MethodPost, "/api/v1/interviews/missing/answer"},
	} {
		resp := env.do(t, tc.method, tc.path, map[string]string{})
		assert.Equal(t, http.StatusNotFound, resp.Code, "%s %s", tc.method, tc.path)
	}
}

func TestListStatsAndDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.createCandidate(t, "Aditi Rao")
	env.createCandidate(t, "Vikram Singh")

	resp := env.do(t, http.MethodGet, "/api/v1/candidates?sort=name&search=aditi", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	page := decode[types.CandidatePage](t, resp)
	require.Len(t, page.Items, 1)
	assert.Equal(t, a, page.Items[0].ID)

	for _, q := range []string{"status=unknown", "sort=age", "page=-1", "size=abc"} {
		resp = env.do(t, http.MethodGet, "/api/v1/candidates?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code, q)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/candidates/stats", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 2, decode[types.DashboardStats](t, resp).Total)

	require.NoError(t, env.rdb.RecordFinalScore(context.Background(), a, 8.5))
	resp = env.do(t, http.MethodGet, "/api/v1/leaderboard?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	board := decode[struct {
		Items []types.LeaderboardEntry `json:"items"`
	}](t, resp)
	require.Len(t, board.Items, 1)
	assert.Equal(t, a, board.Items[0].CandidateID)

	resp = env.do(t, http.MethodDelete, "/api/v1/candidates/"+a, nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	resp = env.do(t, http.MethodGet, "/api/v1/candidates/"+a, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.do(t, http.MethodGet, "/api/v1/leaderboard", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[struct {
		Items []types.LeaderboardEntry `json:"items"`
	}](t, resp).Items)
}
