package processor

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFile = errors.New("不支持的简历文件类型")
	ErrEmptyFile       = errors.New("简历文件为空")
	ErrParseTextFailed = errors.New("提取简历文本失败")
	ErrStoreFileFailed = errors.New("上传简历文件失败")
	ErrDatabaseFailed  = errors.New("数据库操作失败")
)

// IntakeError 简历入库某一步失败的详细信息
type IntakeError struct {
	CandidateID string
	FileName    string
	Op          string
	BaseErr     error
	Detail      string
}

func (e *IntakeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 文件:%s, ID:%s): %s", e.BaseErr, e.Op, e.FileName, e.CandidateID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 文件:%s, ID:%s)", e.BaseErr, e.Op, e.FileName, e.CandidateID)
}

func (e *IntakeError) Unwrap() error {
	return e.BaseErr
}

func (e *IntakeError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func newIntakeError(candidateID, fileName, op string, base error, cause error) error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &IntakeError{CandidateID: candidateID, FileName: fileName, Op: op, BaseErr: base, Detail: detail}
}
