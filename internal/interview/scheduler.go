package interview

import "time"

// Timer 可取消的延迟任务
type Timer interface {
	Stop() bool
}

// Scheduler 调度提交后的延迟续作（展示下一题或结束面试）
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealScheduler 基于 time.AfterFunc 的调度器
func RealScheduler() Scheduler {
	return realScheduler{}
}
