// Package metrics 定义服务的 Prometheus 指标
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mock_interview"

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started_total",
		Help:      "Total number of interview sessions started",
	})

	// SessionsFinished outcome: completed / terminated
	SessionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_finished_total",
		Help:      "Total number of interview sessions finished, by outcome and reason",
	}, []string{"outcome", "reason"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Current number of interview sessions that are running",
	})

	AnswerScores = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "answer_score",
		Help:      "Scores given to submitted answers",
		Buckets:   []float64{3, 4, 5, 6, 7, 8, 9, 10},
	}, []string{"difficulty", "source"})

	QuestionTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "question_timeouts_total",
		Help:      "Questions auto-submitted because the countdown expired",
	}, []string{"difficulty"})

	RejectedSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejected_submissions_total",
		Help:      "Submissions ignored because the question was answered, in flight, paused or empty",
	})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_errors_total",
		Help:      "Session store write failures, by operation",
	}, []string{"op"})

	// OutboxPublished result: sent / retry / failed
	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_messages_total",
		Help:      "Outbox relay publish attempts, by result",
	}, []string{"result"})

	ResumesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resumes_ingested_total",
		Help:      "Uploaded resumes, by result",
	}, []string{"result"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// Middleware 记录 HTTP 请求数和耗时，path 使用路由模板避免标签爆炸
func Middleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{
			"method": string(c.Method()),
			"path":   path,
			"status": strconv.Itoa(c.Response.StatusCode()),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	}
}

// Handler 以 Hertz handler 的形式暴露 /metrics
func Handler() app.HandlerFunc {
	h := promhttp.Handler()
	return func(ctx context.Context, c *app.RequestContext) {
		req, err := adaptor.GetCompatRequest(&c.Request)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		h.ServeHTTP(adaptor.GetCompatResponseWriter(&c.Response), req.WithContext(ctx))
	}
}
