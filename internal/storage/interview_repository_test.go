package storage_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"mock-interview-go/internal/constants"
	"mock-interview-go/internal/storage"
	"mock-interview-go/internal/storage/models"
	"mock-interview-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testRouting = storage.EventRouting{
	Exchange:             "interview.events.exchange",
	CompletedRoutingKey:  "interview.completed",
	TerminatedRoutingKey: "interview.terminated",
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	_, err = storage.NewMySQLWithDB(db, "test")
	require.NoError(t, err)
	return db
}

func newRepo(t *testing.T) (*storage.InterviewRepository, *gorm.DB) {
	db := newTestDB(t)
	return storage.NewInterviewRepository(db, testRouting), db
}

func createCandidate(t *testing.T, repo *storage.InterviewRepository, name, email, phone string) *types.Candidate {
	t.Helper()
	c := &types.Candidate{Name: name, Email: email, Phone: phone}
	require.NoError(t, repo.CreateCandidate(context.Background(), c))
	return c
}

func sampleInterview(id string, started time.Time) *types.Interview {
	iv := &types.Interview{ID: id, StartedAt: started}
	limits := map[types.Difficulty]int{types.DifficultyEasy: 20, types.DifficultyMedium: 60, types.DifficultyHard: 120}
	for i, d := range []types.Difficulty{"Easy", "Easy", "Medium", "Medium", "Hard", "Hard"} {
		iv.Questions = append(iv.Questions, types.Question{
			ID:            fmt.Sprintf("%s-q%d", id, i),
			Text:          fmt.Sprintf("question %d", i),
			Difficulty:    d,
			TimeLimit:     limits[d],
			TimeRemaining: limits[d],
		})
	}
	return iv
}

func TestCreateAndGetCandidate(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	c := createCandidate(t, repo, "Jane Doe", "jane@example.com", "")
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, types.CandidateStatusIncomplete, c.Status)

	got, err := repo.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.Name)
	assert.Nil(t, got.Interview)
	assert.Equal(t, []string{"phone"}, got.MissingFields())

	_, err = repo.GetCandidate(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrCandidateNotFound)
}

func TestUpdateCandidateOnlyTouchesGivenFields(t *testing.T) {
	repo, _ := newRepo(t)
	c := createCandidate(t, repo, "Jane Doe", "jane@example.com", "")

	phone := " 9876543210 "
	got, err := repo.UpdateCandidate(context.Background(), c.ID, types.IdentityUpdate{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "9876543210", got.Phone)
	assert.Equal(t, "Jane Doe", got.Name)

	_, err = repo.UpdateCandidate(context.Background(), "missing", types.IdentityUpdate{Phone: &phone})
	assert.ErrorIs(t, err, storage.ErrCandidateNotFound)
}

func TestInterviewLifecycle(t *testing.T) {
	repo, db := newRepo(t)
	ctx := context.Background()
	c := createCandidate(t, repo, "Jane Doe", "jane@example.com", "9876543210")

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	iv := sampleInterview("iv-1", started)
	require.NoError(t, repo.StartInterview(ctx, c.ID, iv))

	got, err := repo.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CandidateStatusInProgress, got.Status)
	require.NotNil(t, got.Interview)
	require.Len(t, got.Interview.Questions, 6)
	assert.Equal(t, "iv-1-q0", got.Interview.Questions[0].ID)
	assert.Equal(t, types.DifficultyHard, got.Interview.Questions[5].Difficulty)

	// 作答第一题
	answer, score, feedback := "HTML5 adds semantic tags", 6.8, "Good concise explanation."
	answeredAt := started.Add(5 * time.Second)
	q := iv.Questions[0]
	q.Answer, q.Score, q.Feedback, q.AnsweredAt = &answer, &score, &feedback, &answeredAt
	q.TimeRemaining = 15
	require.NoError(t, repo.UpdateQuestion(ctx, c.ID, 0, q))

	next := iv.Questions[1]
	nextStarted := started.Add(7 * time.Second)
	next.StartedAt = &nextStarted
	require.NoError(t, repo.AdvanceQuestion(ctx, c.ID, 1, next))
	require.NoError(t, repo.SetPaused(ctx, c.ID, true))

	got, err = repo.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Interview.CurrentQuestionIndex)
	assert.True(t, got.Interview.IsPaused)
	require.NotNil(t, got.Interview.Questions[0].Answer)
	assert.Equal(t, answer, *got.Interview.Questions[0].Answer)
	assert.Equal(t, 15, got.Interview.Questions[0].TimeRemaining)
	assert.NotNil(t, got.Interview.Questions[1].StartedAt)
	assert.Nil(t, got.Interview.Questions[1].Answer)

	unfinished, err := repo.ListUnfinished(ctx)
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	assert.Equal(t, 1, unfinished[0].Answered)
	assert.Equal(t, 6, unfinished[0].Total)

	completedAt := started.Add(10 * time.Minute)
	require.NoError(t, repo.CompleteInterview(ctx, c.ID, types.Completion{
		InterviewID: "iv-1",
		TotalScore:  6.8,
		Summary:     "summary text",
		CompletedAt: completedAt,
		Terminated:  true,
		Reason:      "tab_switch",
	}))

	got, err = repo.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CandidateStatusCompleted, got.Status)
	require.NotNil(t, got.FinalScore)
	assert.InDelta(t, 6.8, *got.FinalScore, 1e-9)
	assert.Equal(t, "summary text", got.FinalSummary)
	assert.True(t, got.Interview.Terminated)
	assert.False(t, got.Interview.IsPaused)
	assert.NotNil(t, got.Interview.CompletedAt)

	var outbox []models.OutboxMessage
	require.NoError(t, db.Find(&outbox).Error)
	require.Len(t, outbox, 1)
	assert.Equal(t, constants.EventInterviewTerminated, outbox[0].EventType)
	assert.Equal(t, "interview.terminated", outbox[0].TargetRoutingKey)
	assert.Equal(t, constants.OutboxStatusPending, outbox[0].Status)

	var event types.InterviewFinishedEvent
	require.NoError(t, json.Unmarshal([]byte(outbox[0].Payload), &event))
	assert.Equal(t, c.ID, event.CandidateID)
	assert.Equal(t, "jane@example.com", event.Email)
	assert.Equal(t, completedAt.Unix(), event.CompletedAt)

	unfinished, err = repo.ListUnfinished(ctx)
	require.NoError(t, err)
	assert.Empty(t, unfinished)

	// 已结束的面试不能被再次写入
	err = repo.CompleteInterview(ctx, c.ID, types.Completion{
		InterviewID: "iv-1",
		TotalScore:  9.5,
		Summary:     "late completion",
		CompletedAt: completedAt.Add(time.Minute),
	})
	assert.ErrorIs(t, err, storage.ErrInterviewFinished)

	got, err = repo.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.InDelta(t, 6.8, *got.FinalScore, 1e-9)
	assert.Equal(t, "summary text", got.FinalSummary)
	assert.True(t, got.Interview.Terminated)
	var after []models.OutboxMessage
	require.NoError(t, db.Find(&after).Error)
	assert.Len(t, after, 1)

	err = repo.CompleteInterview(ctx, c.ID, types.Completion{InterviewID: "iv-missing", CompletedAt: completedAt})
	assert.ErrorIs(t, err, storage.ErrInterviewNotFound)
}

func TestStartInterviewReplacesPrevious(t *testing.T) {
	repo, db := newRepo(t)
	ctx := context.Background()
	c := createCandidate(t, repo, "Jane Doe", "jane@example.com", "9876543210")

	require.NoError(t, repo.StartInterview(ctx, c.ID, sampleInterview("iv-1", time.Now())))
	require.NoError(t, repo.StartInterview(ctx, c.ID, sampleInterview("iv-2", time.Now())))

	var count int64
	require.NoError(t, db.Model(&models.InterviewQuestion{}).Count(&count).Error)
	assert.EqualValues(t, 6, count)

	got, err := repo.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "iv-2", got.Interview.ID)

	assert.ErrorIs(t, repo.StartInterview(ctx, "missing", sampleInterview("iv-3", time.Now())), storage.ErrCandidateNotFound)
	assert.ErrorIs(t, repo.UpdateQuestion(ctx, "missing", 0, types.Question{}), storage.ErrInterviewNotFound)
}

func TestMessagesKeepOrderAndMetadata(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	c := createCandidate(t, repo, "Jane Doe", "jane@example.com", "9876543210")

	score := 7.5
	require.NoError(t, repo.AppendMessage(ctx, c.ID, types.ChatMessage{Type: types.MessageTypeSystem, Content: "welcome"}))
	require.NoError(t, repo.AppendMessage(ctx, c.ID, types.ChatMessage{
		Type:       types.MessageTypeQuestion,
		Content:    "Question 1",
		QuestionID: "q-1",
		Metadata:   &types.MessageMetadata{Difficulty: types.DifficultyEasy, QuestionNumber: 1},
	}))
	require.NoError(t, repo.AppendMessage(ctx, c.ID, types.ChatMessage{
		Type:     types.MessageTypeScore,
		Content:  "Score: 7.5/10",
		Metadata: &types.MessageMetadata{Score: &score, Feedback: "ok"},
	}))

	msgs, err := repo.ListMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "welcome", msgs[0].Content)
	assert.NotEmpty(t, msgs[0].ID)
	assert.Nil(t, msgs[0].Metadata)
	require.NotNil(t, msgs[1].Metadata)
	assert.Equal(t, 1, msgs[1].Metadata.QuestionNumber)
	require.NotNil(t, msgs[2].Metadata.Score)
	assert.Equal(t, 7.5, *msgs[2].Metadata.Score)
}

func TestDeleteCandidateCascades(t *testing.T) {
	repo, db := newRepo(t)
	ctx := context.Background()
	c := createCandidate(t, repo, "Jane Doe", "jane@example.com", "9876543210")
	require.NoError(t, repo.StartInterview(ctx, c.ID, sampleInterview("iv-1", time.Now())))
	require.NoError(t, repo.AppendMessage(ctx, c.ID, types.ChatMessage{Type: types.MessageTypeSystem, Content: "hi"}))

	require.NoError(t, repo.DeleteCandidate(ctx, c.ID))

	for _, model := range []interface{}{&models.Candidate{}, &models.Interview{}, &models.InterviewQuestion{}, &models.ChatMessage{}} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		assert.Zero(t, n)
	}
	assert.ErrorIs(t, repo.DeleteCandidate(ctx, c.ID), storage.ErrCandidateNotFound)
}

func TestListCandidatesAndStats(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	alice := createCandidate(t, repo, "Alice Smith", "alice@example.com", "9000000001")
	bob := createCandidate(t, repo, "Bob Jones", "bob@corp.io", "9000000002")
	carol := createCandidate(t, repo, "Carol White", "carol@example.com", "8000000003")

	finish := func(c *types.Candidate, id string, score float64) {
		require.NoError(t, repo.StartInterview(ctx, c.ID, sampleInterview(id, time.Now())))
		require.NoError(t, repo.CompleteInterview(ctx, c.ID, types.Completion{InterviewID: id, TotalScore: score, CompletedAt: time.Now()}))
	}
	finish(alice, "iv-a", 8.2)
	finish(bob, "iv-b", 5.1)
	require.NoError(t, repo.StartInterview(ctx, carol.ID, sampleInterview("iv-c", time.Now())))

	page, err := repo.ListCandidates(ctx, types.CandidateFilter{Search: "EXAMPLE"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.TotalCount)

	page, err = repo.ListCandidates(ctx, types.CandidateFilter{Search: "000000002"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, bob.ID, page.Items[0].ID)

	page, err = repo.ListCandidates(ctx, types.CandidateFilter{SortBy: types.SortByScore})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, []string{alice.ID, bob.ID, carol.ID}, []string{page.Items[0].ID, page.Items[1].ID, page.Items[2].ID})

	page, err = repo.ListCandidates(ctx, types.CandidateFilter{SortBy: types.SortByName, Page: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, carol.ID, page.Items[0].ID)

	page, err = repo.ListCandidates(ctx, types.CandidateFilter{Status: types.CandidateStatusInProgress, Size: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Size)
	require.Len(t, page.Items, 1)
	assert.Equal(t, carol.ID, page.Items[0].ID)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.DashboardStats{Total: 3, Completed: 2, InProgress: 1, HighScorers: 1}, *stats)
}

func TestFindCandidateByResumeMD5(t *testing.T) {
	repo, _ := newRepo(t)
	c := &types.Candidate{Name: "Jane", ResumeMD5: "abc123"}
	require.NoError(t, repo.CreateCandidate(context.Background(), c))

	id, err := repo.FindCandidateByResumeMD5(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, c.ID, id)

	_, err = repo.FindCandidateByResumeMD5(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrCandidateNotFound)
}
