package interview

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingFields   = errors.New("候选人身份信息不完整")
	ErrInvalidState    = errors.New("当前状态不允许该操作")
	ErrAlreadyStarted  = errors.New("面试已经开始")
	ErrSessionNotFound = errors.New("面试会话不存在")
	ErrStoreFailed     = errors.New("会话存储写入失败")
	// ErrAlreadyFinished 面试结果已落库，不允许再次写入
	ErrAlreadyFinished = errors.New("面试已经结束")
)

// MissingFieldsError 列出缺失的身份字段，errors.Is(err, ErrMissingFields) 为真
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingFields, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingFields
}

// SessionError 会话操作失败的详细信息
type SessionError struct {
	CandidateID string
	Op          string
	BaseErr     error
	Detail      string
}

func (e *SessionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 候选人:%s): %s", e.BaseErr, e.Op, e.CandidateID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 候选人:%s)", e.BaseErr, e.Op, e.CandidateID)
}

func (e *SessionError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *SessionError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func newSessionError(candidateID, op string, base error, detail string) error {
	return &SessionError{CandidateID: candidateID, Op: op, BaseErr: base, Detail: detail}
}
