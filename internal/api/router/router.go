package router

import (
	"context"
	"math"
	"strconv"

	"mock-interview-go/internal/api/handler"
	"mock-interview-go/pkg/ratelimit"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Handlers 需要注册的处理器
type Handlers struct {
	Candidates *handler.CandidateHandler
	Interviews *handler.InterviewHandler
	// UploadLimiter 为 nil 时上传不限流
	UploadLimiter *ratelimit.TokenBucket
}

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, hs Handlers) {
	health := func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	}
	h.GET("/health", health)

	api := h.Group("/api/v1")
	api.GET("/health", health)

	candidates := api.Group("/candidates")
	if hs.UploadLimiter != nil {
		candidates.POST("/upload", RateLimit(hs.UploadLimiter), hs.Candidates.Upload)
	} else {
		candidates.POST("/upload", hs.Candidates.Upload)
	}
	candidates.POST("", hs.Candidates.Create)
	candidates.GET("", hs.Candidates.List)
	candidates.GET("/stats", hs.Candidates.Stats)
	candidates.GET("/unfinished", hs.Candidates.Unfinished)
	candidates.GET("/:id", hs.Candidates.Get)
	candidates.PATCH("/:id", hs.Candidates.Update)
	candidates.DELETE("/:id", hs.Candidates.Delete)
	candidates.GET("/:id/messages", hs.Candidates.Messages)

	interviews := api.Group("/interviews")
	interviews.GET("/:id", hs.Interviews.Snapshot)
	interviews.POST("/:id/start", hs.Interviews.Start)
	interviews.POST("/:id/answer", hs.Interviews.Answer)
	interviews.PUT("/:id/draft", hs.Interviews.Draft)
	interviews.POST("/:id/pause", hs.Interviews.Pause)
	interviews.POST("/:id/resume", hs.Interviews.Resume)
	interviews.POST("/:id/restore", hs.Interviews.Restore)
	interviews.POST("/:id/visibility", hs.Interviews.Visibility)
	interviews.POST("/:id/terminate", hs.Interviews.Terminate)

	api.GET("/leaderboard", hs.Candidates.Leaderboard)
}

// RateLimit 令牌桶限流，超限返回 429 和 Retry-After
func RateLimit(tb *ratelimit.TokenBucket) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		if tb.Allow() {
			ctx.Next(c)
			return
		}
		secs := int(math.Ceil(tb.RetryAfter().Seconds()))
		if secs < 1 {
			secs = 1
		}
		ctx.Header("Retry-After", strconv.Itoa(secs))
		ctx.AbortWithStatusJSON(consts.StatusTooManyRequests, utils.H{"error": "请求过于频繁，请稍后再试"})
	}
}
