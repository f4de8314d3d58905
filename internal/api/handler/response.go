package handler

import (
	"errors"

	"mock-interview-go/internal/interview"
	"mock-interview-go/internal/logger"
	"mock-interview-go/internal/processor"
	"mock-interview-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// ErrBadRequest 请求参数不合法
var ErrBadRequest = errors.New("请求参数错误")

func badRequest(detail string) error {
	return &requestError{detail: detail}
}

type requestError struct {
	detail string
}

func (e *requestError) Error() string {
	return ErrBadRequest.Error() + ": " + e.detail
}

func (e *requestError) Is(target error) bool {
	return target == ErrBadRequest
}

// statusFor 错误到 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, interview.ErrMissingFields):
		return consts.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrCandidateNotFound),
		errors.Is(err, storage.ErrInterviewNotFound),
		errors.Is(err, interview.ErrSessionNotFound),
		errors.Is(err, storage.ErrNotFound):
		return consts.StatusNotFound
	case errors.Is(err, interview.ErrInvalidState),
		errors.Is(err, interview.ErrAlreadyStarted),
		errors.Is(err, interview.ErrAlreadyFinished):
		return consts.StatusConflict
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, processor.ErrUnsupportedFile),
		errors.Is(err, processor.ErrEmptyFile),
		errors.Is(err, processor.ErrParseTextFailed):
		return consts.StatusBadRequest
	}
	return consts.StatusInternalServerError
}

// writeError 统一错误响应，缺失字段时附带字段列表
func writeError(c *app.RequestContext, err error) {
	status := statusFor(err)
	body := utils.H{"error": err.Error()}

	var mf *interview.MissingFieldsError
	if errors.As(err, &mf) {
		body["missing_fields"] = mf.Fields
	}
	if status == consts.StatusInternalServerError {
		logger.Error().Err(err).Str("path", string(c.Path())).Msg("请求处理失败")
	}
	c.JSON(status, body)
}
